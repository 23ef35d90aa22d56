package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gentam/nand"
	"github.com/gentam/nand/internal/nandsim"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	atexit.Exit(1)
}

var flags struct {
	base    string
	nvram   string
	rev     int
	clock   string
	blocks  int
	pins    string
	wp      string
	sim     bool
	simBad  []int
	verbose bool
}

var rootCmd = &cobra.Command{
	Use:   "nandctl",
	Short: "Read, program and inspect raw NAND flash through the SoC NAND controller.",
	Long: `nandctl drives the on-chip NAND flash controller directly through /dev/mem. ` +
		`On first use the device is identified from its ONFI parameter page and the ` +
		`configuration is persisted to the boot NVRAM block.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.base, "base", "0x04011000", "physical address of the controller register window")
	pf.StringVar(&flags.nvram, "nvram", "0x07000100", "physical address of the NVRAM configuration words")
	pf.IntVar(&flags.rev, "rev", 0, "controller revision (1-3, 0 reads VERSION)")
	pf.StringVar(&flags.clock, "clock", "100MHz", "controller core clock")
	pf.IntVar(&flags.blocks, "blocks", 0, "device block count (0 reads the ONFI parameter page)")
	pf.StringVar(&flags.pins, "pins", "", "comma separated pins to switch to the NAND function")
	pf.StringVar(&flags.wp, "wp", "", "WP# pin to drive high")
	pf.BoolVar(&flags.sim, "sim", false, "use an in-memory simulated controller")
	pf.IntSliceVar(&flags.simBad, "sim-bad", nil, "blocks marked bad on the simulated device")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log bring-up and ECC events")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

var hostInitialized atomic.Bool

// open brings up the controller selected by the persistent flags.
func open() *nand.Controller {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var clk physic.Frequency
	if err := clk.Set(flags.clock); err != nil {
		fatalf("invalid clock %q: %v", flags.clock, err)
	}
	opts := []nand.Option{nand.WithLogger(log), nand.WithClock(clk)}
	if flags.rev != 0 {
		opts = append(opts, nand.WithRevision(nand.ChipRevision(flags.rev)))
	}
	if flags.blocks > 0 {
		opts = append(opts, nand.WithBlockCount(flags.blocks))
	}
	if flags.pins != "" || flags.wp != "" {
		var names []string
		if flags.pins != "" {
			names = strings.Split(flags.pins, ",")
		}
		opts = append(opts, nand.WithPins(&nand.GPIOPins{Names: names, WriteProtect: flags.wp}))
	}

	var regs, nv nand.Registers
	if flags.sim {
		rev := flags.rev
		if rev == 0 {
			rev = int(nand.RevisionV2)
		}
		sim, err := nandsim.New(rev, nandsim.SmallSLC)
		if err != nil {
			fatalf("%v", err)
		}
		sim.MarkBad(flags.simBad...)
		regs, nv = sim, nandsim.NewMem(4)
	} else {
		regs, nv = mapWindows()
	}

	c, err := nand.Bringup(regs, nv, opts...)
	if err != nil {
		fatalf("NAND bring-up failed: %v", err)
	}
	return c
}

func mapWindows() (regs, nv nand.Registers) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			fatalf("host initialization failed: %v", err)
		}
	}
	r, err := nand.Map(parseAddr("base", flags.base), nand.WindowSize)
	if err != nil {
		fatalf("%v", err)
	}
	atexit.Register(func() { r.Close() })

	n, err := nand.Map(parseAddr("nvram", flags.nvram), 16)
	if err != nil {
		fatalf("%v", err)
	}
	atexit.Register(func() { n.Close() })
	return r, n
}

func parseAddr(name, s string) uint64 {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		fatalf("invalid --%s %q: %v", name, s, err)
	}
	return v
}
