// Command tic packs Lua source into a cartridge's compressed code chunk,
// extracts it back out, builds empty cartridges, and prints a packed chunk's
// character distribution and per-byte bit-cost heat-map for inspection. It
// prints no disassembly listing of the decoded blocks.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dsnet/golib/strconv"
	"github.com/fsnotify/fsnotify"

	"github.com/exoticorn/tic-tool/cartridge"
	"github.com/exoticorn/tic-tool/pack"
)

// Exit codes (§7): 0 success, 1 usage error, everything else an I/O or
// decode failure reported with a one-line message on stderr.
const (
	exitOK = iota
	exitUsage
	exitIO
	exitContainer
	exitDecompress
	exitMissingCode
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}
	switch args[0] {
	case "pack":
		return runPack(args[1:])
	case "extract":
		return runExtract(args[1:])
	case "empty":
		return runEmpty(args[1:])
	case "analyze":
		return runAnalyze(args[1:])
	default:
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tic <pack|extract|empty|analyze> ...")
}

func fail(code int, format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return code
}

func runPack(args []string) int {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	var noTransform, autoRename, strip, newPalette, watch bool
	var iterations string
	fs.BoolVar(&noTransform, "no-transform", false, "don't transform source (whitespace/directives)")
	fs.BoolVar(&noTransform, "k", false, "shorthand for -no-transform")
	fs.BoolVar(&autoRename, "auto-rename", false, "run the identifier rename search")
	fs.BoolVar(&autoRename, "a", false, "shorthand for -auto-rename")
	fs.BoolVar(&strip, "strip", false, "drop chunks other than code and new palette")
	fs.BoolVar(&strip, "s", false, "shorthand for -strip")
	fs.BoolVar(&newPalette, "new-palette", false, "force a new-palette chunk")
	fs.BoolVar(&newPalette, "n", false, "shorthand for -new-palette")
	fs.BoolVar(&watch, "watch", false, "rebuild whenever the input file changes")
	fs.BoolVar(&watch, "w", false, "shorthand for -watch")
	fs.StringVar(&iterations, "iterations", "", "cap on the rename search's outer loop, e.g. 1e2")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		usage()
		return exitUsage
	}
	if noTransform && autoRename {
		return fail(exitUsage, "tic: -no-transform and -auto-rename are mutually exclusive")
	}

	maxIterations := 0
	if iterations != "" {
		n, err := strconv.ParsePrefix(iterations, strconv.AutoParse)
		if err != nil {
			return fail(exitUsage, "tic: invalid -iterations value %q: %v", iterations, err)
		}
		maxIterations = int(n)
	}

	opts := pack.Options{
		NoTransform: noTransform,
		AutoRename:  autoRename,
		Strip:       strip,
		NewPalette:  newPalette,
		Iterations:  maxIterations,
	}

	input, output := fs.Arg(0), fs.Arg(1)
	if code := doPack(input, output, opts); code != exitOK {
		return code
	}
	if !watch {
		return exitOK
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fail(exitIO, "tic: %v", err)
	}
	defer watcher.Close()
	if err := watcher.Add(input); err != nil {
		return fail(exitIO, "tic: %v", err)
	}

	var last time.Time
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return exitOK
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Debounce bursts of events a single save can trigger.
			if time.Since(last) < 20*time.Millisecond {
				continue
			}
			last = time.Now()
			fmt.Println()
			doPack(input, output, opts)
		case err, ok := <-watcher.Errors:
			if !ok {
				return exitOK
			}
			fmt.Fprintf(os.Stderr, "tic: watch error: %v\n", err)
		}
	}
}

// doPack runs one pack pass, reporting failures on stderr the same way the
// top-level command would, but returning rather than exiting so -watch can
// keep looping after a failed rebuild.
func doPack(input, output string, opts pack.Options) int {
	code, rest, err := loadCodeFrom(input)
	if err != nil {
		return fail(exitMissingCode, "tic: %v", err)
	}

	chunk, err := pack.Pack(code, opts)
	if err != nil {
		return fail(exitDecompress, "tic: %v", err)
	}

	var out []cartridge.Chunk
	for _, c := range rest {
		if !opts.Strip || c.Type == cartridge.TypeNewPalette {
			out = append(out, c)
		}
	}
	out = append(out, chunk)
	if opts.NewPalette {
		out = append(out, cartridge.Chunk{Type: cartridge.TypeNewPalette})
	}

	if err := cartridge.Save(output, out); err != nil {
		return fail(exitIO, "tic: %v", err)
	}
	fmt.Printf("Uncompressed size: %5d bytes\n", len(code))
	fmt.Printf("  Compressed size: %5d bytes (chunk type 0x%02x)\n", len(chunk.Data), chunk.Type)
	return exitOK
}

// loadCodeFrom reads input as a cartridge if it has a .tic extension,
// otherwise treats it as raw source.
func loadCodeFrom(input string) ([]byte, []cartridge.Chunk, error) {
	if strings.ToLower(filepath.Ext(input)) == ".tic" {
		chunks, err := cartridge.Load(input)
		if err != nil {
			return nil, nil, err
		}
		return pack.LoadCode(chunks)
	}
	code, err := os.ReadFile(input)
	if err != nil {
		return nil, nil, err
	}
	return code, nil, nil
}

func runExtract(args []string) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		usage()
		return exitUsage
	}
	input, output := fs.Arg(0), fs.Arg(1)

	chunks, err := cartridge.Load(input)
	if err != nil {
		return fail(exitContainer, "tic: %v", err)
	}
	code, err := pack.Extract(chunks)
	if err != nil {
		return fail(exitMissingCode, "tic: %v", err)
	}
	if err := os.WriteFile(output, code, 0644); err != nil {
		return fail(exitIO, "tic: %v", err)
	}
	return exitOK
}

func runEmpty(args []string) int {
	fs := flag.NewFlagSet("empty", flag.ContinueOnError)
	var newPalette bool
	fs.BoolVar(&newPalette, "new-palette", false, "use a new palette")
	fs.BoolVar(&newPalette, "n", false, "shorthand for -new-palette")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		usage()
		return exitUsage
	}
	if err := cartridge.Save(fs.Arg(0), pack.Empty(newPalette)); err != nil {
		return fail(exitIO, "tic: %v", err)
	}
	return exitOK
}

func runAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	width := fs.Int("width", 80, "heat-map line width")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		usage()
		return exitUsage
	}
	input := fs.Arg(0)

	var payload []byte
	if strings.ToLower(filepath.Ext(input)) == ".tic" {
		chunks, err := cartridge.Load(input)
		if err != nil {
			return fail(exitContainer, "tic: %v", err)
		}
		for _, c := range chunks {
			if c.Type == cartridge.TypeCompressedCode {
				payload = c.Data
			}
		}
		if payload == nil {
			return fail(exitMissingCode, "tic: no compressed code chunk found")
		}
	} else {
		raw, err := os.ReadFile(input)
		if err != nil {
			return fail(exitIO, "tic: %v", err)
		}
		compressed, err := pack.Compress(raw)
		if err != nil {
			return fail(exitDecompress, "tic: %v", err)
		}
		payload = compressed
	}

	an, err := pack.Analyze(payload)
	if err != nil {
		return fail(exitDecompress, "tic: %v", err)
	}

	printCharDistribution(an.Unpacked)
	fmt.Println()
	an.PrintHeatmap(os.Stdout, *width)
	return exitOK
}

// charCount pairs a byte value with its occurrence count in printCharDistribution.
type charCount struct {
	b byte
	n int
}

// printCharDistribution reports the unique-byte count of code, plus a
// log-scaled block-shaded density bar, one cell per distinct byte value,
// ordered from most to least frequent.
func printCharDistribution(code []byte) {
	counts := map[byte]int{}
	for _, c := range code {
		counts[c]++
	}
	ordered := make([]charCount, 0, len(counts))
	for b, n := range counts {
		ordered = append(ordered, charCount{b, n})
	}
	sortByCountDesc(ordered)

	fmt.Printf("Number of unique chars: %d\n", len(ordered))
	if len(code) == 0 {
		return
	}

	blocks := []rune{'█', '▓', '▒', '░', ' '}
	var bar strings.Builder
	for _, cc := range ordered {
		heat := math.Log(float64(cc.n)*float64(len(ordered))/float64(len(code))) / math.Log(1.5)
		heat = clamp(0.5-heat/4, 0, 1) * float64(len(blocks)-1)
		idx := int(clamp(heat-0.5, 0, float64(len(blocks)-1)))
		bar.WriteRune(blocks[idx])
	}
	fmt.Println(bar.String())
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// sortByCountDesc orders cc by descending count, matching the original
// tool's density-bar ordering (most frequent byte first).
func sortByCountDesc(cc []charCount) {
	for i := 1; i < len(cc); i++ {
		for j := i; j > 0 && cc[j].n > cc[j-1].n; j-- {
			cc[j], cc[j-1] = cc[j-1], cc[j]
		}
	}
}
