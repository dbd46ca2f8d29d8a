package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/janelia-flyem/omerotools/ome"
)

// RunFunc executes a subcommand with its positional arguments.  Flags have been parsed
// into the variables bound by the subcommand's Setup.
type RunFunc func(ctx context.Context, args []string) error

// Subcommand is one action of a plugin.
type Subcommand struct {
	Name string
	Help string

	// Setup binds the subcommand's flags and returns the function to run.
	Setup func(fs *flag.FlagSet) RunFunc
}

// Control is the set of subcommands a plugin offers for one invocation.
type Control interface {
	Subcommands() []Subcommand
}

// Descriptor names a plugin and knows how to build its control.
type Descriptor struct {
	Name string
	Help string
	New  func(c *Context) Control
}

// Registry holds the plugins known to a host.
type Registry struct {
	mu       sync.RWMutex
	controls map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{controls: make(map[string]Descriptor)}
}

// Register adds a plugin.  Names must be unique.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" || d.New == nil {
		return fmt.Errorf("plugin descriptor needs a name and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.controls[d.Name]; found {
		return fmt.Errorf("plugin %q already registered", d.Name)
	}
	r.controls[d.Name] = d
	return nil
}

func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, found := r.controls[name]
	return d, found
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.controls))
	for name := range r.controls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage writes the registered commands and their help.
func (r *Registry) Usage(w io.Writer) {
	for _, name := range r.Names() {
		d, _ := r.Lookup(name)
		fmt.Fprintf(w, "\t%-10s %s\n", name, d.Help)
	}
}

// Invoke runs a command.  Usage problems are returned as *ome.UsageError.
func (r *Registry) Invoke(ctx context.Context, c *Context, cmd Command) error {
	d, found := r.Lookup(cmd.Name())
	if !found {
		return ome.NewUsageError("unknown command %q", cmd.Name())
	}
	subs := d.New(c).Subcommands()
	subName := cmd.Subcommand()
	var sub *Subcommand
	for i := range subs {
		if subs[i].Name == subName {
			sub = &subs[i]
			break
		}
	}
	if sub == nil {
		return ome.NewUsageError("%s", subcommandUsage(d, subs, subName))
	}

	fs := flag.NewFlagSet(d.Name+" "+sub.Name, flag.ContinueOnError)
	fs.SetOutput(c.Stderr)
	run := sub.Setup(fs)
	args, err := parseInterspersed(fs, cmd.SubcommandArgs())
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return ome.NewUsageError("%s %s: %v", d.Name, sub.Name, err)
	}
	c.Logger.Debugf("Running %q\n", cmd)
	return run(ctx, args)
}

func subcommandUsage(d Descriptor, subs []Subcommand, name string) string {
	msg := fmt.Sprintf("%s: %s\nsubcommands:", d.Name, d.Help)
	if name != "" {
		msg = fmt.Sprintf("%s: unknown subcommand %q\nsubcommands:", d.Name, name)
	}
	for _, s := range subs {
		msg += fmt.Sprintf("\n\t%-10s %s", s.Name, s.Help)
	}
	return msg
}

// parseInterspersed parses flags appearing anywhere among the positional arguments.
// A lone "--" ends flag parsing.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		if len(args) > len(rest) && args[len(args)-len(rest)-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
