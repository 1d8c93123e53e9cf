// Package deflate decodes a raw DEFLATE stream (RFC 1951) while recording,
// for every output byte, which bits of the stream produced it and how many
// bits it cost — the per-byte ledger the rename search ranks identifiers
// against. It does not compress; compression is left to an external
// collaborator (see the pack package), and this package only ever reads
// the bytes that collaborator already produced.
package deflate

import "runtime"

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "deflate: " + string(e) }

var ErrCorrupt error = Error("stream is corrupted")

func errRecover(err *error) {
	switch ex := recover().(type) {
	case nil:
	case runtime.Error:
		panic(ex)
	case error:
		*err = ex
	default:
		panic(ex)
	}
}

// lengthExtra[i] is (extraBits, baseLength) for length code 257+i, per
// RFC 1951 §3.2.5.
var lengthExtra = [29][2]uint32{
	{0, 3}, {0, 4}, {0, 5}, {0, 6}, {0, 7}, {0, 8}, {0, 9}, {0, 10},
	{1, 11}, {1, 13}, {1, 15}, {1, 17},
	{2, 19}, {2, 23}, {2, 27}, {2, 31},
	{3, 35}, {3, 43}, {3, 51}, {3, 59},
	{4, 67}, {4, 83}, {4, 99}, {4, 115},
	{5, 131}, {5, 163}, {5, 195}, {5, 227},
	{0, 258},
}

// distExtra[i] is (extraBits, baseDistance) for distance code i.
var distExtra = [30][2]uint32{
	{0, 1}, {0, 2}, {0, 3}, {0, 4},
	{1, 5}, {1, 7},
	{2, 9}, {2, 13},
	{3, 17}, {3, 25},
	{4, 33}, {4, 49},
	{5, 65}, {5, 97},
	{6, 129}, {6, 193},
	{7, 257}, {7, 385},
	{8, 513}, {8, 769},
	{9, 1025}, {9, 1537},
	{10, 2049}, {10, 3073},
	{11, 4097}, {11, 6145},
	{12, 8193}, {12, 12289},
	{13, 16385}, {13, 24577},
}

// codeLengthOrder is the order code-length-alphabet lengths are transmitted
// in for a dynamic Huffman block header (RFC 1951 §3.2.7).
var codeLengthOrder = [19]uint32{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

const endOfBlockSymbol = 256

// BitstreamItem records the exact bits a single decode step consumed:
// where they started, how many there were, and their value (LSB first).
type BitstreamItem struct {
	Pos    int // bit offset from the start of the stream
	Length int
	Bits   uint32
}

// Bitstream is a LSB-first bit cursor over a DEFLATE stream that groups
// consecutive reads into named "items" via TakeItem, mirroring how the
// format's own grammar is read one field at a time.
type Bitstream struct {
	data      []byte
	pos       int
	itemStart int
}

// NewBitstream returns a cursor positioned at the start of data.
func NewBitstream(data []byte) *Bitstream {
	return &Bitstream{data: data}
}

// GetBit reads a single bit, panicking with ErrCorrupt if data is exhausted.
func (b *Bitstream) GetBit() uint32 {
	byteIdx := b.pos >> 3
	if byteIdx >= len(b.data) {
		panic(ErrCorrupt)
	}
	bit := uint32(b.data[byteIdx]>>(uint(b.pos)&7)) & 1
	b.pos++
	return bit
}

// GetBits reads numBits bits, LSB first, combining them into one value.
func (b *Bitstream) GetBits(numBits uint32) uint32 {
	var value uint32
	for i := uint32(0); i < numBits; i++ {
		value |= b.GetBit() << i
	}
	return value
}

// TakeItem returns a BitstreamItem covering every bit read since the last
// TakeItem call (or since stream start), without disturbing the cursor's
// final position: it rewinds to replay those bits into BitstreamItem.Bits.
func (b *Bitstream) TakeItem() BitstreamItem {
	length := b.pos - b.itemStart
	if length > 32 {
		panic(Error("item wider than 32 bits"))
	}
	pos := b.itemStart
	b.pos = pos
	bits := b.GetBits(uint32(length))
	b.itemStart = b.pos
	return BitstreamItem{Pos: pos, Length: length, Bits: bits}
}

// Pos reports the cursor's current bit offset.
func (b *Bitstream) Pos() int { return b.pos }

// Len reports the bitstream's total length in bits.
func (b *Bitstream) Len() int { return len(b.data) * 8 }

// huffmanEntry is one (value, codeLength) pair of a canonical Huffman code.
type huffmanEntry struct {
	value  uint32
	length uint32
}

// HuffmanBuilder accumulates (value, bitLength) assignments before Build
// sorts them into the canonical order Huffman.Read expects.
type HuffmanBuilder struct {
	codes []huffmanEntry
}

// AddCode records one value's code length; a zero length means the value is
// unused and is silently dropped, matching canonical Huffman code
// construction.
func (h *HuffmanBuilder) AddCode(value, numBits uint32) {
	if numBits > 0 {
		h.codes = append(h.codes, huffmanEntry{value, numBits})
	}
}

// AddCodes assigns the same code length to every value in [lo, hi].
func (h *HuffmanBuilder) AddCodes(lo, hi, numBits uint32) {
	if numBits == 0 {
		return
	}
	for v := lo; v <= hi; v++ {
		h.codes = append(h.codes, huffmanEntry{v, numBits})
	}
}

// Build sorts the accumulated codes by (length, value) and returns a
// decoder. Canonical Huffman assigns consecutive codes of increasing value
// within each length, so after sorting, the running difference between
// consecutive codes of the same length is always exactly one: reading can
// walk the sorted list directly instead of building an explicit code table.
func (h *HuffmanBuilder) Build() *Huffman {
	sorted := make([]huffmanEntry, len(h.codes))
	copy(sorted, h.codes)
	sortEntries(sorted)
	return &Huffman{codes: sorted}
}

func sortEntries(e []huffmanEntry) {
	// insertion sort: code alphabets here are at most ~288 entries and
	// this only runs once per block header.
	for i := 1; i < len(e); i++ {
		for j := i; j > 0; j-- {
			a, b := e[j-1], e[j]
			if a.length < b.length || (a.length == b.length && a.value <= b.value) {
				break
			}
			e[j-1], e[j] = e[j], e[j-1]
		}
	}
}

// Huffman is a canonical-code decoder built by HuffmanBuilder.
type Huffman struct {
	codes []huffmanEntry
}

// Read decodes the next symbol. It walks codes (sorted by ascending code
// length, the canonical order) extending the accumulated code word by one
// bit whenever the next entry needs more bits than have been read so far,
// and treating a decremented-to-zero running code as a match — the same
// arithmetic the reference packer's own bitstream disassembler uses, kept
// bit-for-bit identical so the two never disagree about where a code ends.
func (h *Huffman) Read(b *Bitstream) uint32 {
	var code, numBits uint32
	for _, entry := range h.codes {
		for numBits < entry.length {
			code = (code << 1) | b.GetBit()
			numBits++
		}
		if code == 0 {
			return entry.value
		}
		code--
	}
	panic(ErrCorrupt)
}

// LzKind distinguishes the three shapes a decoded stream element can take.
type LzKind int

const (
	LzLiteral LzKind = iota
	LzMatch
	LzEndOfBlock
)

// LzItem is one decoded literal/length-distance pair/end-of-block marker,
// carrying the BitstreamItems that produced it for disassembly.
type LzItem struct {
	Kind   LzKind
	Byte   byte // LzLiteral
	Length uint32
	Offset uint32 // LzMatch

	Item       BitstreamItem // LzLiteral, LzEndOfBlock: the symbol's own bits
	LengthBase BitstreamItem // LzMatch
	LengthExt  BitstreamItem
	OffsetBase BitstreamItem
	OffsetExt  BitstreamItem
}

// BlockType distinguishes how a block's Huffman tables were built. Values
// match the raw two-bit BTYPE field so Analysis.BlockType can be copied
// straight from it for the rename search's block_type==2 check.
type BlockType int

const (
	BlockStored BlockType = iota
	BlockStatic
	BlockDynamic
)

// HeaderCodeKind distinguishes the three ways a dynamic header's code-length
// alphabet symbol can be interpreted.
type HeaderCodeKind int

const (
	HeaderLength HeaderCodeKind = iota
	HeaderRepeat
	HeaderSkip
)

// HeaderCode is one decoded code-length-alphabet symbol from a dynamic
// block's header, kept for disassembly.
type HeaderCode struct {
	Kind      HeaderCodeKind
	HuffItem  BitstreamItem
	CountItem BitstreamItem // HeaderRepeat, HeaderSkip
	Count     uint32        // HeaderRepeat, HeaderSkip
	Length    uint32        // HeaderLength
}

// DynamicHeader holds the decoded preamble of a dynamic Huffman block.
type DynamicHeader struct {
	HuffHeaderItem   BitstreamItem
	HLit, HDist, HCLen uint32
	HeaderLengths    []HuffLengthEntry
	HeaderCodes      []HeaderCode
}

// HuffLengthEntry is one (code, length) pair read while decoding the
// code-length alphabet itself (before it decodes the real tables).
type HuffLengthEntry struct {
	Code, Length uint32
	Item         BitstreamItem
}

// Block is one decoded DEFLATE block.
type Block struct {
	HeaderItem BitstreamItem
	Type       BlockType
	Dynamic    *DynamicHeader // nil for BlockStatic and BlockStored
	Items      []LzItem
}

// Analysis is the full per-byte ledger produced by Analyze.
type Analysis struct {
	Blocks []Block

	// Unpacked is the decompressed byte stream.
	Unpacked []byte
	// LiteralIndex[i] is the index into Unpacked of the literal byte that
	// ultimately produced Unpacked[i] when byte i was copied by a match:
	// the (transitively resolved) origin of whatever earlier byte the match
	// copied it from. A byte emitted as a literal holds SentinelIndex — it
	// has no earlier origin of its own.
	LiteralIndex []int
	// Cost[i] is the number of compressed bits attributed to byte i, after
	// the redistribution pass has folded each match-copy's share back onto
	// its literal origin.
	Cost []float64
	// BlockType[i] is a copy of the BTYPE of the block that produced byte i.
	BlockType []BlockType
}

// SentinelIndex marks a byte in Analysis.LiteralIndex that was itself
// emitted as a literal, i.e. has no earlier origin to point to.
const SentinelIndex = -1

// Analyze decodes a raw DEFLATE stream and returns its per-byte analysis.
// err is non-nil (ErrCorrupt, or an Error describing the defect) if the
// stream is malformed; Analyze never returns a partial Analysis alongside
// an error.
func Analyze(data []byte) (an *Analysis, err error) {
	defer errRecover(&err)

	bs := NewBitstream(data)
	a := &Analysis{}

	for {
		final := bs.GetBit() == 1
		blockType := bs.GetBits(2)
		headerItem := bs.TakeItem()

		var block Block
		block.HeaderItem = headerItem

		switch blockType {
		case 0:
			block.Type = BlockStored
			bs.pos = (bs.pos + 7) &^ 7 // stored data starts on a byte boundary
			length := bs.GetBits(16)
			if bs.GetBits(16) != ^length&0xffff {
				panic(ErrCorrupt)
			}
			bs.itemStart = bs.pos
			for i := uint32(0); i < length; i++ {
				v := byte(bs.GetBits(8))
				block.Items = append(block.Items, LzItem{Kind: LzLiteral, Item: bs.TakeItem(), Byte: v})
				a.Cost = append(a.Cost, 8)
				a.Unpacked = append(a.Unpacked, v)
				a.LiteralIndex = append(a.LiteralIndex, SentinelIndex)
				a.BlockType = append(a.BlockType, BlockStored)
			}
		case 1:
			block.Type = BlockStatic
			litLen, dist := staticTables()
			block.Items = decodeBlock(bs, a, BlockStatic, litLen, dist)
		case 2:
			block.Type = BlockDynamic
			header, litLen, dist := readDynamicHeader(bs)
			block.Dynamic = header
			block.Items = decodeBlock(bs, a, BlockDynamic, litLen, dist)
		default:
			panic(Error("unsupported block type"))
		}

		a.Blocks = append(a.Blocks, block)
		if final {
			break
		}
	}

	redistributeCost(a)
	return a, nil
}

func staticTables() (litLen, dist *Huffman) {
	var lb HuffmanBuilder
	lb.AddCodes(0, 143, 8)
	lb.AddCodes(144, 255, 9)
	lb.AddCodes(256, 279, 7)
	lb.AddCodes(280, 287, 8)

	var db HuffmanBuilder
	db.AddCodes(0, 31, 5)

	return lb.Build(), db.Build()
}

func readDynamicHeader(bs *Bitstream) (*DynamicHeader, *Huffman, *Huffman) {
	hlit := bs.GetBits(5)
	hdist := bs.GetBits(5)
	hclen := bs.GetBits(4)
	huffHeaderItem := bs.TakeItem()

	var hb HuffmanBuilder
	var headerLengths []HuffLengthEntry
	for i := uint32(0); i < hclen+4; i++ {
		code := codeLengthOrder[i]
		length := bs.GetBits(3)
		hb.AddCode(code, length)
		headerLengths = append(headerLengths, HuffLengthEntry{Code: code, Length: length, Item: bs.TakeItem()})
	}
	huffHeader := hb.Build()

	total := hlit + 257 + hdist + 1
	lengths := make([]uint32, total)
	var codes []HeaderCode
	pos := uint32(0)
	for pos < total {
		sym := huffHeader.Read(bs)
		huffItem := bs.TakeItem()
		switch sym {
		case 16:
			count := bs.GetBits(2) + 3
			countItem := bs.TakeItem()
			if pos == 0 || pos+count > total {
				panic(ErrCorrupt)
			}
			codes = append(codes, HeaderCode{Kind: HeaderRepeat, HuffItem: huffItem, CountItem: countItem, Count: count})
			for i := uint32(0); i < count; i++ {
				lengths[pos] = lengths[pos-1]
				pos++
			}
		case 17:
			count := bs.GetBits(3) + 3
			countItem := bs.TakeItem()
			if pos+count > total {
				panic(ErrCorrupt)
			}
			codes = append(codes, HeaderCode{Kind: HeaderSkip, HuffItem: huffItem, CountItem: countItem, Count: count})
			for i := uint32(0); i < count; i++ {
				lengths[pos] = 0
				pos++
			}
		case 18:
			count := bs.GetBits(7) + 11
			countItem := bs.TakeItem()
			if pos+count > total {
				panic(ErrCorrupt)
			}
			codes = append(codes, HeaderCode{Kind: HeaderSkip, HuffItem: huffItem, CountItem: countItem, Count: count})
			for i := uint32(0); i < count; i++ {
				lengths[pos] = 0
				pos++
			}
		default:
			codes = append(codes, HeaderCode{Kind: HeaderLength, HuffItem: huffItem, Length: sym})
			lengths[pos] = sym
			pos++
		}
	}

	var lb HuffmanBuilder
	for code := uint32(0); code < hlit+257; code++ {
		lb.AddCode(code, lengths[code])
	}
	var db HuffmanBuilder
	for code := uint32(0); code < hdist+1; code++ {
		db.AddCode(code, lengths[hlit+257+code])
	}

	return &DynamicHeader{
		HuffHeaderItem: huffHeaderItem,
		HLit:           hlit,
		HDist:          hdist,
		HCLen:          hclen,
		HeaderLengths:  headerLengths,
		HeaderCodes:    codes,
	}, lb.Build(), db.Build()
}

// decodeBlock decodes one block's literal/length/distance stream, appending
// each produced byte to a.Unpacked and its provisional cost/origin to
// a.Cost/a.LiteralIndex (final cost redistribution happens once, across all
// blocks, at the end of Analyze).
func decodeBlock(bs *Bitstream, a *Analysis, bt BlockType, litLen, dist *Huffman) []LzItem {
	var items []LzItem
	for {
		sym := litLen.Read(bs)
		symItem := bs.TakeItem()

		if sym == endOfBlockSymbol {
			items = append(items, LzItem{Kind: LzEndOfBlock, Item: symItem})
			return items
		}

		if sym < endOfBlockSymbol {
			a.Cost = append(a.Cost, float64(symItem.Length))
			a.Unpacked = append(a.Unpacked, byte(sym))
			a.LiteralIndex = append(a.LiteralIndex, SentinelIndex)
			a.BlockType = append(a.BlockType, bt)
			items = append(items, LzItem{Kind: LzLiteral, Item: symItem, Byte: byte(sym)})
			continue
		}

		if sym-257 >= uint32(len(lengthExtra)) {
			panic(ErrCorrupt)
		}
		le := lengthExtra[sym-257]
		length := le[1] + bs.GetBits(le[0])
		lengthExt := bs.TakeItem()

		distCode := dist.Read(bs)
		distBase := bs.TakeItem()
		if distCode >= uint32(len(distExtra)) {
			panic(ErrCorrupt)
		}
		de := distExtra[distCode]
		distance := de[1] + bs.GetBits(de[0])
		distExt := bs.TakeItem()
		if int(distance) > len(a.Unpacked) {
			panic(ErrCorrupt)
		}

		cost := float64(symItem.Length+lengthExt.Length+distBase.Length+distExt.Length) / float64(length)

		items = append(items, LzItem{
			Kind: LzMatch, Length: length, Offset: distance,
			LengthBase: symItem, LengthExt: lengthExt, OffsetBase: distBase, OffsetExt: distExt,
		})

		copyBase := len(a.Unpacked) - int(distance)
		for i := uint32(0); i < length; i++ {
			srcIdx := copyBase + int(i)
			origin := a.LiteralIndex[srcIdx]
			if origin == SentinelIndex {
				origin = srcIdx
			}
			a.LiteralIndex = append(a.LiteralIndex, origin)
			a.Unpacked = append(a.Unpacked, a.Unpacked[srcIdx])
			a.Cost = append(a.Cost, cost)
			a.BlockType = append(a.BlockType, bt)
		}
	}
}

// redistributeCost folds each match-copy byte's share of cost back onto the
// literal byte it ultimately originated from, in one pass: for every copy
// byte, the delta between its origin's current cost and its own is divided
// by the origin's total reference count (+1, for the origin itself) and
// moved from the origin to the copy. Every copy of the same origin receives
// an equal, independent share — none of these deltas interact, so they can
// all be computed against the pre-pass cost array and applied afterward.
func redistributeCost(a *Analysis) {
	refCount := make([]int, len(a.Unpacked))
	for _, idx := range a.LiteralIndex {
		if idx != SentinelIndex {
			refCount[idx]++
		}
	}
	shifted := make([]float64, len(a.Unpacked))
	for i, idx := range a.LiteralIndex {
		if idx == SentinelIndex {
			continue
		}
		delta := (a.Cost[idx] - a.Cost[i]) / float64(refCount[idx]+1)
		shifted[i] += delta
		shifted[idx] -= delta
	}
	for i := range a.Cost {
		a.Cost[i] += shifted[i]
	}
}
