package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/basin-os/basin/internal/cli"
	"github.com/basin-os/basin/internal/kernel"
	"github.com/basin-os/basin/internal/log"
	"github.com/basin-os/basin/internal/machine"
	"github.com/basin-os/basin/internal/rv64"
	"github.com/basin-os/basin/internal/tty"
)

// Runner runs one or more ELF images under the basin kernel.
func Runner() cli.Command {
	return &runner{
		log:       log.DefaultLogger(),
		maxSteps:  1 << 20,
		sliceSize: 4096,
	}
}

type runner struct {
	logLevel  slog.Level
	maxSteps  uint64
	sliceSize uint64
	timeout   time.Duration
	interact  bool
	log       *log.Logger
}

func (runner) Description() string {
	return "run ELF images under the kernel"
}

func (runner) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run program.elf [program2.elf ...]

Loads each argument as an RV64 ELF executable, spawns it as a process, and
drives the kernel's cooperative scheduler until every process exits, the
step budget is exhausted, or -timeout elapses.`)

	return err
}

func (r *runner) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Func("loglevel", "set log `level`", func(s string) error {
		return r.logLevel.UnmarshalText([]byte(s))
	})
	fs.Uint64Var(&r.maxSteps, "max-steps", r.maxSteps, "total instruction budget across all processes")
	fs.Uint64Var(&r.sliceSize, "slice", r.sliceSize, "instructions run per scheduling slice")
	fs.DurationVar(&r.timeout, "timeout", 0, "wall-clock timeout (0 disables)")
	fs.BoolVar(&r.interact, "interactive", false, "forward host keystrokes to the guest's input queue")

	return fs
}

// Run loads each path in args and drives the kernel/VM pair until nothing is
// left to schedule.
func (r *runner) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	log.LogLevel.Set(r.logLevel)

	if len(args) == 0 {
		logger.Error("run: at least one ELF image is required")
		return 1
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vm := rv64.New(rv64.WithLogger(logger))
	k := kernel.New(kernel.WithLogger(logger), kernel.WithGuestMemory(vm.Mem))
	m := machine.New(vm, k)

	if err := m.FinishInit(); err != nil {
		logger.Error("finish init", "err", err)
		return 2
	}

	for _, path := range args {
		pid, err := r.spawn(k, path)
		if err != nil {
			logger.Error("load image", "file", path, "err", err)
			return 2
		}

		logger.Info("spawned process", "file", path, "pid", pid)
		k.Scheduler.MarkReady(&k.Processes, pid)
	}

	if r.interact {
		var consoleCtx context.Context
		var cancel context.CancelFunc

		consoleCtx, _, cancel = tty.ConsoleContext(ctx, &k.Input)
		if err := context.Cause(consoleCtx); err != nil {
			logger.Warn("interactive input unavailable", "err", err)
		} else {
			defer cancel()
		}
	}

	logger.Info("starting machine", "max-steps", r.maxSteps, "slice", r.sliceSize)

	var executed uint64

	for executed < r.maxSteps {
		select {
		case <-ctx.Done():
			logger.Warn("run cancelled", "cause", context.Cause(ctx))
			return 2
		default:
		}

		budget := r.sliceSize
		if remaining := r.maxSteps - executed; remaining < budget {
			budget = remaining
		}

		before := vm.Perf.InstructionsExecuted

		ok, err := m.ScheduleAndRunNext(budget)

		executed += vm.Perf.InstructionsExecuted - before

		if err != nil {
			logger.Error("machine fault", "err", err)
			return 2
		}

		if !ok {
			logger.Info("no runnable process left", "instructions", executed)
			return 0
		}

		// A process whose slice ran out without it yielding, blocking, or
		// exiting goes back to the ready set for its next turn.
		if cur := k.Scheduler.GetCurrent(); cur != 0 {
			if p, found := k.Processes.Get(cur); found && p.State == kernel.StateRunning {
				k.Scheduler.MarkReady(&k.Processes, cur)
			}
		}
	}

	logger.Warn("step budget exhausted", "instructions", executed)

	return 0
}

// spawn reads path as an ELF64-LE-RISCV executable and installs it as a new
// process. Unlike the spawn syscall (internal/kernel/spawn.go), which reads
// the image out of already-resident guest memory, this path reads the image
// from the host filesystem the way a boot loader would.
func (r *runner) spawn(k *kernel.Kernel, path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	mem, ok := k.Mem.(*rv64.Memory)
	if !ok {
		return 0, errors.New("run: guest memory does not support host-side ELF loading")
	}

	entry, sp, err := rv64.LoadUserImage(mem, data)
	if err != nil {
		return 0, err
	}

	return k.Processes.Spawn(entry, sp)
}
