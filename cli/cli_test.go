package cli

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"

	"github.com/janelia-flyem/omerotools/ome"
)

type echoControl struct {
	c    *Context
	seen *[]string
}

func (e *echoControl) Subcommands() []Subcommand {
	return []Subcommand{
		{
			Name: "echo",
			Help: "print arguments",
			Setup: func(fs *flag.FlagSet) RunFunc {
				upper := fs.Bool("upper", false, "upper-case output")
				n := fs.Int("n", 1, "repeat count")
				return func(ctx context.Context, args []string) error {
					for i := 0; i < *n; i++ {
						s := strings.Join(args, " ")
						if *upper {
							s = strings.ToUpper(s)
						}
						*e.seen = append(*e.seen, s)
						e.c.Out("%s", s)
					}
					return nil
				}
			},
		},
	}
}

func newTestContext() (*Context, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := &Context{Stdout: &out, Stderr: &errOut, Logger: ome.DiscardLogger()}
	return c, &out, &errOut
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	var seen []string
	d := Descriptor{Name: "echo", Help: "echo things", New: func(c *Context) Control {
		return &echoControl{c: c, seen: &seen}
	}}
	if err := reg.Register(d); err != nil {
		t.Fatalf("Register failed: %v\n", err)
	}
	if err := reg.Register(d); err == nil {
		t.Fatalf("expected duplicate registration to fail\n")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "echo" {
		t.Errorf("bad names: %v\n", names)
	}

	c, out, _ := newTestContext()
	cmd := Command{"echo", "echo", "a", "--upper", "b", "-n", "2"}
	if err := reg.Invoke(context.Background(), c, cmd); err != nil {
		t.Fatalf("Invoke failed: %v\n", err)
	}
	if len(seen) != 2 || seen[0] != "A B" {
		t.Errorf("expected interspersed flags to be parsed, got %v\n", seen)
	}
	if out.String() != "A B\nA B\n" {
		t.Errorf("unexpected output %q\n", out.String())
	}

	err := reg.Invoke(context.Background(), c, Command{"echo", "shout"})
	if ome.ExitCode(err) != ome.DefaultUsageCode {
		t.Errorf("expected usage error for unknown subcommand, got %v\n", err)
	}
	err = reg.Invoke(context.Background(), c, Command{"nope"})
	if ome.ExitCode(err) != ome.DefaultUsageCode {
		t.Errorf("expected usage error for unknown command, got %v\n", err)
	}
	err = reg.Invoke(context.Background(), c, Command{"echo", "echo", "-n", "x"})
	if ome.ExitCode(err) != ome.DefaultUsageCode {
		t.Errorf("expected usage error for bad flag value, got %v\n", err)
	}
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	v := fs.Bool("v", false, "")
	args, err := parseInterspersed(fs, []string{"x", "-v", "--", "-y", "z"})
	if err != nil {
		t.Fatalf("parse failed: %v\n", err)
	}
	if !*v || len(args) != 3 || args[1] != "-y" {
		t.Errorf("unexpected parse: v=%t args=%v\n", *v, args)
	}
}

func TestDie(t *testing.T) {
	c, _, _ := newTestContext()
	err := c.Die(600, "Error: quota cannot be a negative value")
	if ome.ExitCode(err) != 600 || err.Error() != "Error: quota cannot be a negative value" {
		t.Errorf("bad die error: %v\n", err)
	}
}

func TestTableStyles(t *testing.T) {
	tb := NewTableBuilder("user", "used (bytes)", "quota (bytes)", "used")
	tb.SetAlign("lrrr")
	q := int64(200)
	tb.Row(int64(2), int64(50), &q, "25%")
	tb.Row(int64(3), int64(7), nil, "NA")

	expected := ` user | used (bytes) | quota (bytes) | used
------+--------------+---------------+------
 2    |           50 |           200 |  25%
 3    |            7 |          None |   NA
(2 rows)`
	if got := tb.Build(); got != expected {
		t.Errorf("bad sql table:\n%s\nexpected:\n%s\n", got, expected)
	}

	if err := tb.SetStyle("fancy"); err == nil {
		t.Errorf("expected unknown style to fail\n")
	}
	tb.SetStyle(PlainStyle)
	if got := tb.Build(); got != "2,50,200,25%\n3,7,None,NA" {
		t.Errorf("bad plain table: %q\n", got)
	}
	tb.SetStyle(CSVStyle)
	if got := tb.Build(); !strings.HasPrefix(got, "user,used (bytes),quota (bytes),used\n2,50,200,25%") {
		t.Errorf("bad csv table: %q\n", got)
	}
	tb.SetStyle(JSONStyle)
	if got := tb.Build(); !strings.Contains(got, `"quota (bytes)":"None"`) {
		t.Errorf("bad json table: %q\n", got)
	}

	one := NewTableBuilder("a")
	one.Row("x")
	if !strings.HasSuffix(one.Build(), "(1 row)") {
		t.Errorf("expected singular footer: %q\n", one.Build())
	}
}
