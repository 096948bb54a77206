// Package config loads emulator settings from defaults, an optional YAML
// file, CHIP8EMU_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kapitanov/chip8emu/internal/vm"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	fileName  = ".chip8emu"
	envPrefix = "CHIP8EMU"
)

var ErrInvalid = errors.New("invalid configuration")

type Controls struct {
	Pause string `mapstructure:"pause"`
	Step  string `mapstructure:"step"`
	Reset string `mapstructure:"reset"`
	Quit  string `mapstructure:"quit"`
}

type Config struct {
	TickRate    int               `mapstructure:"tick_rate"`
	Scale       int               `mapstructure:"scale"`
	Foreground  string            `mapstructure:"foreground"`
	Background  string            `mapstructure:"background"`
	Keys        map[string]string `mapstructure:"keys"`
	Controls    Controls          `mapstructure:"controls"`
	LogLevel    string            `mapstructure:"log_level"`
	HistoryFile string            `mapstructure:"history_file"`
	StartPaused bool              `mapstructure:"start_paused"`
}

// DefaultKeys maps the left-hand 4x4 block of a QWERTY keyboard onto the
// hex keypad:
//
//	1 2 3 4        1 2 3 C
//	Q W E R   =>   4 5 6 D
//	A S D F        7 8 9 E
//	Z X C V        A 0 B F
func DefaultKeys() map[string]string {
	return map[string]string{
		"1": "1", "2": "2", "3": "3", "4": "C",
		"Q": "4", "W": "5", "E": "6", "R": "D",
		"A": "7", "S": "8", "D": "9", "F": "E",
		"Z": "A", "X": "0", "C": "B", "V": "F",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tick_rate", 60)
	v.SetDefault("scale", 16)
	v.SetDefault("foreground", "#bea700")
	v.SetDefault("background", "#000000")
	v.SetDefault("keys", DefaultKeys())
	v.SetDefault("controls.pause", "P")
	v.SetDefault("controls.step", "Space")
	v.SetDefault("controls.reset", "Backspace")
	v.SetDefault("controls.quit", "Escape")
	v.SetDefault("log_level", "info")
	v.SetDefault("history_file", filepath.Join("~", ".chip8emu_history"))
	v.SetDefault("start_paused", false)
}

// Load reads the configuration. An empty path means ~/.chip8emu.yaml, which
// may be absent; an explicit path must exist. Flags, when given, override
// everything else for the keys they are bound to.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, flag := range map[string]string{
			"tick_rate":    "tick-rate",
			"scale":        "scale",
			"start_paused": "paused",
		} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("unable to bind flag %q: %w", flag, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config %q: %w", path, err)
		}
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("unable to find home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("unable to read config: %w", err)
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("using config file", "path", used)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	history, err := homedir.Expand(cfg.HistoryFile)
	if err != nil {
		return nil, fmt.Errorf("unable to expand history file: %w", err)
	}
	cfg.HistoryFile = history

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.TickRate < 1 || c.TickRate > 1000 {
		return fmt.Errorf("%w: tick_rate must be within 1..1000, got %d", ErrInvalid, c.TickRate)
	}

	if c.Scale < 1 {
		return fmt.Errorf("%w: scale must be positive, got %d", ErrInvalid, c.Scale)
	}

	if _, err := ParseColor(c.Foreground); err != nil {
		return fmt.Errorf("%w: foreground: %w", ErrInvalid, err)
	}
	if _, err := ParseColor(c.Background); err != nil {
		return fmt.Errorf("%w: background: %w", ErrInvalid, err)
	}

	if _, err := c.KeyMap(); err != nil {
		return err
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// FramePeriod converts the tick rate into a whole number of milliseconds.
func (c *Config) FramePeriod() time.Duration {
	ms := 1000 / c.TickRate
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// KeyMap resolves the key table into host key name -> virtual key.
// Names are lower-cased; hosts must match them case-insensitively.
func (c *Config) KeyMap() (map[string]vm.Key, error) {
	keys := make(map[string]vm.Key, len(c.Keys))

	for name, target := range c.Keys {
		n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(target), "0x"), 16, 8)
		if err != nil || n >= vm.KeyCount {
			return nil, fmt.Errorf("%w: key %q must map to a hex digit 0-F, got %q", ErrInvalid, name, target)
		}
		keys[strings.ToLower(name)] = vm.Key(n)
	}

	return keys, nil
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	return level, nil
}

// ParseColor accepts #RRGGBB and returns 0x00RRGGBB.
func ParseColor(s string) (uint32, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || len(hex) != 6 {
		return 0, fmt.Errorf("color %q is not in #RRGGBB form", s)
	}

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	return uint32(n), nil
}
