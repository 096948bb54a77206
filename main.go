package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kapitanov/chip8emu/internal/config"
	"github.com/kapitanov/chip8emu/internal/debugger"
	"github.com/kapitanov/chip8emu/internal/disasm"
	"github.com/kapitanov/chip8emu/internal/hal"
	"github.com/kapitanov/chip8emu/internal/vm"
	"github.com/spf13/cobra"
)

func main() {
	var (
		configPath string
		verbose    bool
		cfg        *config.Config
		logLevel   = new(slog.LevelVar)
	)

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default is $HOME/.chip8emu.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.Int("tick-rate", 60, "instructions per second")
	flags.Int("scale", 16, "window pixels per screen pixel")
	flags.Bool("paused", false, "start in debug mode")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		if verbose {
			logLevel.Set(slog.LevelDebug)
		}

		var err error
		cfg, err = config.Load(configPath, c.Flags())
		if err != nil {
			return err
		}

		level, err := logLevelFor(cfg, verbose)
		if err != nil {
			return err
		}
		logLevel.Set(level)
		return nil
	}

	cmd.RunE = func(c *cobra.Command, args []string) error {
		machine, err := loadMachine(args[0])
		if err != nil {
			return err
		}

		opts, err := halOptions(cfg)
		if err != nil {
			return err
		}

		h, err := hal.New(opts)
		if err != nil {
			return fmt.Errorf("unable to initialize hal: %w", err)
		}
		defer h.Shutdown()

		schedOpts := []vm.SchedulerOption{vm.WithFramePeriod(cfg.FramePeriod())}
		if cfg.StartPaused {
			schedOpts = append(schedOpts, vm.StartPaused())
		}

		ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = vm.NewScheduler(machine, h, schedOpts...).Run(ctx)
		if ctx.Err() != nil {
			slog.Info("interrupted")
			return nil
		}
		return err
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "disasm PATH_TO_ROM_FILE",
		Short: "Print a listing of a ROM",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			bs, err := readROM(args[0])
			if err != nil {
				return err
			}

			lines, err := disasm.Disassemble(bs)
			if err != nil {
				return err
			}
			return disasm.Write(c.OutOrStdout(), lines)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "debug PATH_TO_ROM_FILE",
		Short: "Step through a ROM in an interactive console",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			machine, err := loadMachine(args[0])
			if err != nil {
				return err
			}

			return debugger.New(machine, c.OutOrStdout()).Run(debugger.Options{
				HistoryFile: cfg.HistoryFile,
			})
		},
	})

	cmd.SetArgs(os.Args[1:])
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

// logLevelFor lets --verbose override the configured log level.
func logLevelFor(cfg *config.Config, verbose bool) (slog.Level, error) {
	if verbose {
		return slog.LevelDebug, nil
	}
	return cfg.Level()
}

func readROM(path string) ([]byte, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load file %q: %w", path, err)
	}
	return bs, nil
}

func loadMachine(path string) (*vm.VM, error) {
	bs, err := readROM(path)
	if err != nil {
		return nil, err
	}

	machine, err := vm.New(bs)
	if err != nil {
		return nil, fmt.Errorf("unable to load %q: %w", path, err)
	}
	return machine, nil
}

func halOptions(cfg *config.Config) (hal.Options, error) {
	keys, err := cfg.KeyMap()
	if err != nil {
		return hal.Options{}, err
	}

	fg, err := config.ParseColor(cfg.Foreground)
	if err != nil {
		return hal.Options{}, err
	}

	bg, err := config.ParseColor(cfg.Background)
	if err != nil {
		return hal.Options{}, err
	}

	return hal.Options{
		Scale:      cfg.Scale,
		Foreground: fg,
		Background: bg,
		Keys:       keys,
		PauseKey:   cfg.Controls.Pause,
		StepKey:    cfg.Controls.Step,
		ResetKey:   cfg.Controls.Reset,
		QuitKey:    cfg.Controls.Quit,
	}, nil
}
