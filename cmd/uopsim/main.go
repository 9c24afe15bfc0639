// Command uopsim runs a cycle-accurate out-of-order micro-op core
// simulator over a hex-encoded machine-code image, either fed straight
// through the RISC passthrough frontend or cracked by the x86-64
// frontend.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/archlab/uopsim/bpred"
	"github.com/archlab/uopsim/frontend/risc"
	"github.com/archlab/uopsim/frontend/x64"
	"github.com/archlab/uopsim/mem"
	"github.com/archlab/uopsim/ooo"
	"github.com/archlab/uopsim/sim"
	"github.com/archlab/uopsim/uop"
)

// Memory layout constants, per spec §6.3.
const (
	userStart = 0x8000
	stackBase = 0x100000
	stackSize = 16 * 1024
)

var (
	logLevel  = flag.Int("l", 0, "log level 0-7 (0 silent, 7 verbose)")
	verbose   = flag.Bool("v", false, "equivalent to -l 7")
	hexCode   = flag.String("m", "", "machine code as a hex string")
	inputPath = flag.String("i", "", "read machine code hex from a file")
	frontend  = flag.String("f", "risc", "frontend: risc or x64")
	timeIt    = flag.Bool("t", false, "measure wall time")
	help      = flag.Bool("h", false, "print banner and help")
)

func main() {
	flag.Parse()

	if *help {
		printBanner()
		flag.PrintDefaults()
		os.Exit(0)
	}

	level := *logLevel
	if *verbose {
		level = 7
	}

	code, err := loadCode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "uopsim: %v\n", err)
		os.Exit(2)
	}

	if level >= 3 {
		fmt.Fprintf(os.Stderr, "uopsim: loaded %d bytes, frontend=%s\n", len(code), *frontend)
	}

	start := time.Now()
	summary, err := run(code, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uopsim: %v\n", err)
		os.Exit(2)
	}

	fmt.Println(summary.String())
	if level >= 1 {
		fmt.Printf("final rip=0x%x rax=0x%x\n", summary.ARF.IP, summary.ARF.GP[1])
	}
	if *timeIt {
		fmt.Fprintf(os.Stderr, "wall time: %s\n", time.Since(start))
	}

	os.Exit(0)
}

func printBanner() {
	fmt.Println("uopsim — cycle-accurate out-of-order micro-op core simulator")
	fmt.Println("usage: uopsim [-l N] [-v] -m HEX | -i PATH [-f risc|x64] [-t]")
}

// loadCode resolves the machine-code image from -m or -i, stripping
// '#'-prefixed comments and whitespace from hex text (spec §6.1).
func loadCode() ([]byte, error) {
	var text string
	switch {
	case *hexCode != "":
		text = *hexCode
	case *inputPath != "":
		data, err := os.ReadFile(*inputPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", *inputPath, err)
		}
		text = string(data)
	default:
		return nil, fmt.Errorf("one of -m or -i is required")
	}
	return decodeHex(text)
}

func decodeHex(text string) ([]byte, error) {
	var clean strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		clean.WriteString(line)
	}
	hex := strings.Join(strings.Fields(clean.String()), "")
	if len(hex)%2 != 0 {
		return nil, fmt.Errorf("hex input has odd length")
	}
	out := make([]byte, len(hex)/2)
	for i := range out {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q: %w", hex[i*2:i*2+2], err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// run sets up the memory image, core, and frontend, then drives the
// simulator to completion.
func run(code []byte, level int) (sim.Summary, error) {
	mm := mem.NewManager(mem.DefaultConfig())
	if err := mapImage(mm, code); err != nil {
		return sim.Summary{}, err
	}

	core := ooo.New(ooo.Config{
		Widths:   ooo.DefaultWidths(),
		Table:    uop.NewTable(nil),
		Mem:      mm,
		Pred:     bpred.New(bpred.DefaultConfig()),
		RobCap:   64,
		LqCap:    16,
		QueueCap: 16,
		IDRACap:  16,
	})

	var fe sim.Frontend
	switch *frontend {
	case "risc":
		fe = risc.New(mm, bpred.New(bpred.DefaultConfig()), userStart)
	case "x64":
		fe = x64.New(mm, bpred.New(bpred.DefaultConfig()), userStart)
	default:
		return sim.Summary{}, fmt.Errorf("unknown frontend %q (want risc or x64)", *frontend)
	}

	s := sim.New(sim.Config{Core: core, Frontend: fe, Mem: mm, Entry: userStart, MaxCycles: 10_000_000})
	summary := s.Run()
	if level >= 7 {
		fmt.Fprintf(os.Stderr, "uopsim: %d cycles, %d committed, %d flushes\n", summary.Cycles, summary.Committed, summary.FlushCount)
	}
	return summary, nil
}

// mapImage maps enough code pages at userStart to hold code and the
// stack's 16 KiB region at stackBase, per spec §6.3's layout, then
// writes the program image into the code pages.
func mapImage(mm *mem.Manager, code []byte) error {
	if err := mapPages(mm, userStart, len(code), mem.RWXRead|mem.RWXWrite|mem.RWXExec, "code"); err != nil {
		return err
	}
	if _, err := mm.Write(userStart, code, 0); err != nil {
		return err
	}
	return mapPages(mm, stackBase, stackSize, mem.RWXRead|mem.RWXWrite, "stack")
}

func mapPages(mm *mem.Manager, base uint64, length int, rwx mem.RWX, name string) error {
	pages := (length + mem.PageSize - 1) / mem.PageSize
	if pages == 0 {
		pages = 1
	}
	for i := 0; i < pages; i++ {
		addr := base + uint64(i)*mem.PageSize
		if err := mm.MapFrame(addr, 0, rwx, name); err != nil {
			return err
		}
		if err := mm.MapPage(addr, addr, 0, rwx); err != nil {
			return err
		}
	}
	return nil
}
