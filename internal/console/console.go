// Package console is the DSL the command line runs. Every script becomes a
// Program whose Main method holds the script's top-level statements.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.trai.ch/dslhost/internal/host/runtime"
)

// Namespace is imported into every console script.
const Namespace = "console"

// DescriptionProperty is the property the describe macro defines.
const DescriptionProperty = "Description"

// Program is the base type of console scripts.
type Program struct {
	runtime.Script

	// Args are the arguments given after the script on the command line.
	Args []string
	// Status is the exit status requested by the script.
	Status int

	out io.Writer
}

// NewProgram returns a program writing to stdout.
func NewProgram(args []string) *Program {
	return &Program{Args: args, out: os.Stdout}
}

// Main runs the script body.
func (p *Program) Main() error {
	_, err := p.Call("Main")
	return err
}

// SetOutput redirects echo and print.
func (p *Program) SetOutput(w io.Writer) {
	p.out = w
	if self := p.Self(); self != nil {
		self.Class().Module.SetOutput(w)
	}
}

// Echo writes values separated by spaces.
func (p *Program) Echo(values ...any) error {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	_, err := fmt.Fprintln(p.out, strings.Join(parts, " "))
	return err
}

// Arg returns the i-th argument, or an empty string.
func (p *Program) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}

// Env returns the value of an environment variable.
func (p *Program) Env(name string) string {
	return os.Getenv(name)
}

// Exit sets the exit status.
func (p *Program) Exit(code int) {
	p.Status = code
}

// Summary returns what the script declared with describe, if anything.
func (p *Program) Summary() string {
	self := p.Self()
	if self == nil {
		return ""
	}
	v, err := self.Get(DescriptionProperty)
	if err != nil || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Library returns the console library: the Program type, string helpers
// and duration extensions on integers.
func Library() *runtime.Library {
	return runtime.NewLibrary("console", Namespace).
		AddType(runtime.MustDescribe[Program](
			runtime.WithConstructor(func() *Program { return NewProgram(nil) }),
			runtime.WithConstructor(NewProgram, "args"),
			runtime.WithHooks("Main"),
		)).
		AddFunc("upper", strings.ToUpper).
		AddFunc("lower", strings.ToLower).
		AddFunc("join", strings.Join).
		AddFunc("repeat", strings.Repeat).
		AddExtension("Seconds", func(n int) time.Duration { return time.Duration(n) * time.Second }).
		AddExtension("Minutes", func(n int) time.Duration { return time.Duration(n) * time.Minute }).
		AddExtension("Hours", func(n int) time.Duration { return time.Duration(n) * time.Hour })
}
