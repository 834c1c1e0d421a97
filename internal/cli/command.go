package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-model/pkg/di"
	flag "github.com/spf13/pflag"
)

// Command is one modelctl subcommand.
type Command struct {
	// Flags holds command-specific flags.
	Flags *flag.FlagSet

	// Usage is shown after "modelctl" in help, starting with the command
	// name, e.g. "find <table> <id>".
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Exec runs the command after flags are parsed.
	Exec func(ctx context.Context, c *di.Container, out io.Writer, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-34s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "modelctl <cmd> --help".
func (c *Command) PrintHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: modelctl", c.Usage)
	fmt.Fprintln(w)
	fmt.Fprintln(w, c.Short)

	if c.Flags != nil && c.Flags.HasFlags() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		fmt.Fprint(w, buf.String())
	}
}

// parse parses args into the command flags. done reports that help was
// printed and nothing else should run.
func (c *Command) parse(out io.Writer, args []string) (rest []string, done bool, err error) {
	c.Flags.SetOutput(&strings.Builder{})

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(out)
			return nil, true, nil
		}
		return nil, false, err
	}
	return c.Flags.Args(), false, nil
}
