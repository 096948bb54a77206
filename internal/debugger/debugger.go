// Package debugger is a line-oriented console for inspecting and stepping a
// machine without a window. Each executed instruction also counts the
// timers down once, the same way the scheduler does.
package debugger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/kapitanov/chip8emu/internal/disasm"
	"github.com/kapitanov/chip8emu/internal/vm"
	"github.com/olekukonko/tablewriter"
)

const (
	defaultDumpLength = 64
	defaultListing    = 8

	// continueLimit caps "continue" so that an idle loop without a
	// breakpoint returns to the prompt.
	continueLimit = 100_000
)

var ErrUsage = errors.New("usage")

var aliases = map[string]string{
	"s":    "step",
	"c":    "continue",
	"b":    "break",
	"q":    "quit",
	"exit": "quit",
}

type command struct {
	usage string
	help  string
	run   func(d *Debugger, args []string) error
}

type Debugger struct {
	vm  *vm.VM
	out io.Writer

	breakpoints map[uint16]struct{}
	last        string
	commands    map[string]*command
}

func New(machine *vm.VM, out io.Writer) *Debugger {
	d := &Debugger{
		vm:          machine,
		out:         out,
		breakpoints: make(map[uint16]struct{}),
	}

	d.commands = map[string]*command{
		"step":     {"step [n]", "execute n instructions (default 1)", (*Debugger).step},
		"continue": {"continue", "run until a breakpoint or an error", (*Debugger).cont},
		"break":    {"break ADDR", "set a breakpoint", (*Debugger).setBreak},
		"delete":   {"delete ADDR", "remove a breakpoint", (*Debugger).deleteBreak},
		"regs":     {"regs", "show registers and timers", (*Debugger).regs},
		"stack":    {"stack", "show the call stack", (*Debugger).stack},
		"mem":      {"mem ADDR [LEN]", "hex dump memory", (*Debugger).mem},
		"dis":      {"dis [n]", "disassemble n instructions from PC", (*Debugger).dis},
		"screen":   {"screen", "print the framebuffer", (*Debugger).screen},
		"key":      {"key press|release K", "set the state of key K (0-F)", (*Debugger).key},
		"reset":    {"reset", "reload the program", (*Debugger).reset},
		"help":     {"help", "list commands", (*Debugger).help},
	}

	return d
}

// Exec runs one command line. An empty line repeats the previous command.
func (d *Debugger) Exec(line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		line = d.last
	}
	if line == "" {
		return false, nil
	}

	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	if full, ok := aliases[name]; ok {
		name = full
	}

	if name == "quit" {
		return true, nil
	}

	cmd, ok := d.commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q, try \"help\"", name)
	}

	d.last = line
	return false, cmd.run(d, args)
}

type Options struct {
	Prompt      string
	HistoryFile string
}

// Run reads commands until quit, EOF or an interrupt on an empty line.
func (d *Debugger) Run(opts Options) error {
	prompt := opts.Prompt
	if prompt == "" {
		prompt = "(chip8) "
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     opts.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          d.out,
	})
	if err != nil {
		return fmt.Errorf("failed to start readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(d.out, "%s\n", d.vm)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := d.Exec(line)
		if err != nil {
			fmt.Fprintf(d.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (d *Debugger) stepOne() error {
	pc := d.vm.PC()
	instr, err := d.vm.Step()
	if err != nil {
		return err
	}
	d.vm.TickTimers()

	fmt.Fprintf(d.out, "0x%03X  %04X  %s\n", pc, instr.Raw, instr)
	return nil
}

func (d *Debugger) step(args []string) error {
	n, err := optionalCount(args, 1)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		if err := d.stepOne(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Debugger) cont(_ []string) error {
	for i := 0; i < continueLimit; i++ {
		if err := d.stepOne(); err != nil {
			return err
		}

		if _, hit := d.breakpoints[d.vm.PC()]; hit {
			fmt.Fprintf(d.out, "breakpoint at 0x%03X\n", d.vm.PC())
			return nil
		}
	}

	slog.Debug("continue limit reached", "n", continueLimit)
	fmt.Fprintf(d.out, "stopped after %d instructions at 0x%03X\n", continueLimit, d.vm.PC())
	return nil
}

func (d *Debugger) setBreak(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: break ADDR", ErrUsage)
	}

	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	d.breakpoints[addr] = struct{}{}
	fmt.Fprintf(d.out, "breakpoint set at 0x%03X\n", addr)
	return nil
}

func (d *Debugger) deleteBreak(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete ADDR", ErrUsage)
	}

	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	if _, ok := d.breakpoints[addr]; !ok {
		return fmt.Errorf("no breakpoint at 0x%03X", addr)
	}
	delete(d.breakpoints, addr)
	return nil
}

func (d *Debugger) regs(_ []string) error {
	table := tablewriter.NewWriter(d.out)
	table.SetHeader([]string{"Reg", "Hex", "Dec", "Reg", "Hex", "Dec"})
	table.SetAutoFormatHeaders(false)

	for x := uint8(0); x < vm.RegisterCount/2; x++ {
		lo, hi := d.vm.Register(x), d.vm.Register(x+8)
		table.Append([]string{
			fmt.Sprintf("V%X", x), fmt.Sprintf("%02X", lo), strconv.Itoa(int(lo)),
			fmt.Sprintf("V%X", x+8), fmt.Sprintf("%02X", hi), strconv.Itoa(int(hi)),
		})
	}

	table.SetFooter([]string{
		"PC", fmt.Sprintf("%03X", d.vm.PC()),
		"I", fmt.Sprintf("%03X", d.vm.Index()),
		"DT/ST", fmt.Sprintf("%d/%d", d.vm.DelayTimer(), d.vm.SoundTimer()),
	})
	table.Render()
	return nil
}

func (d *Debugger) stack(_ []string) error {
	entries := d.vm.Stack()
	if len(entries) == 0 {
		fmt.Fprintln(d.out, "stack is empty")
		return nil
	}

	table := tablewriter.NewWriter(d.out)
	table.SetHeader([]string{"Depth", "Return"})
	for i := len(entries) - 1; i >= 0; i-- {
		table.Append([]string{strconv.Itoa(i), fmt.Sprintf("0x%03X", entries[i])})
	}
	table.Render()
	return nil
}

func (d *Debugger) mem(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: mem ADDR [LEN]", ErrUsage)
	}

	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	n, err := optionalCount(args[1:], defaultDumpLength)
	if err != nil {
		return err
	}

	memory := d.vm.Memory()
	end := min(int(addr)+n, len(memory))

	for row := int(addr); row < end; row += 16 {
		fmt.Fprintf(d.out, "0x%03X  % X\n", row, memory[row:min(row+16, end)])
	}
	return nil
}

func (d *Debugger) dis(args []string) error {
	n, err := optionalCount(args, defaultListing)
	if err != nil {
		return err
	}

	addr := d.vm.PC()
	for i := 0; i < n; i++ {
		word, err := d.vm.OpcodeAt(addr)
		if err != nil {
			break
		}

		line := disasm.Line{Addr: addr, Word: word, Bytes: vm.InstructionSize}
		if instr, err := vm.Decode(word); err == nil {
			line.Instr, line.Valid = instr, true
		}

		marker := "  "
		if addr == d.vm.PC() {
			marker = "=>"
		} else if _, ok := d.breakpoints[addr]; ok {
			marker = "* "
		}

		fmt.Fprintf(d.out, "%s 0x%03X  %04X  %s\n", marker, addr, word, line.Mnemonic())
		addr += vm.InstructionSize
	}
	return nil
}

func (d *Debugger) screen(_ []string) error {
	fmt.Fprint(d.out, d.vm.Display().String())
	return nil
}

func (d *Debugger) key(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: key press|release K", ErrUsage)
	}

	k, err := strconv.ParseUint(args[1], 16, 8)
	if err != nil || k >= vm.KeyCount {
		return fmt.Errorf("key must be a hex digit 0-F, got %q", args[1])
	}

	switch args[0] {
	case "press":
		d.vm.Keyboard().Press(vm.Key(k))
	case "release":
		d.vm.Keyboard().Release(vm.Key(k))
	default:
		return fmt.Errorf("%w: key press|release K", ErrUsage)
	}
	return nil
}

func (d *Debugger) reset(_ []string) error {
	d.vm.Reset()
	fmt.Fprintf(d.out, "%s\n", d.vm)
	return nil
}

func (d *Debugger) help(_ []string) error {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := d.commands[name]
		fmt.Fprintf(d.out, "  %-22s %s\n", cmd.usage, cmd.help)
	}
	fmt.Fprintf(d.out, "  %-22s %s\n", "quit", "leave the debugger")
	fmt.Fprintln(d.out, "  aliases: s=step c=continue b=break q=quit; an empty line repeats the last command")
	return nil
}

func parseAddress(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil || n >= vm.MemorySize {
		return 0, fmt.Errorf("address must be hex within 0x000-0xFFF, got %q", s)
	}
	return uint16(n), nil
}

func optionalCount(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("%w: expected at most one count", ErrUsage)
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", args[0])
	}
	return n, nil
}
