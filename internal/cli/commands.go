package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-model/dataset"
	"github.com/goliatone/go-model/model"
	"github.com/goliatone/go-model/pkg/di"
	flag "github.com/spf13/pflag"
)

var errUsage = errors.New("wrong number of arguments", errors.CategoryBadInput).
	WithTextCode("USAGE")

func commands() []*Command {
	return []*Command{
		existsCmd(),
		columnsCmd(),
		countCmd(),
		findCmd(),
		findByCmd(),
		allCmd(),
	}
}

// tableType declares an anonymous record type over table.
func tableType(c *di.Container, table string, opts ...model.Option) (*model.Type, error) {
	return c.NewType(table, append([]model.Option{model.WithTable(table)}, opts...)...)
}

// parseValue turns a command line value into an int64 when it looks like
// one, so integer keys match without quoting.
func parseValue(s string) any {
	if s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

func parseWhere(pairs []string) (dataset.Cond, error) {
	cond := dataset.Cond{}
	for _, pair := range pairs {
		col, val, ok := strings.Cut(pair, "=")
		if !ok || col == "" {
			return nil, errors.New("invalid --where "+pair+", expected column=value", errors.CategoryBadInput).
				WithTextCode("BAD_WHERE")
		}
		cond[col] = parseValue(val)
	}
	return cond, nil
}

func printRecord(out io.Writer, r *model.Record) error {
	if r == nil {
		fmt.Fprintln(out, "null")
		return nil
	}
	data, err := json.Marshal(map[string]any(r.Values()))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func existsCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("exists", flag.ContinueOnError),
		Usage: "exists <table>",
		Short: "Report whether a table exists",
		Exec: func(ctx context.Context, c *di.Container, out io.Writer, args []string) error {
			if len(args) != 1 {
				return errUsage
			}
			t, err := tableType(c, args[0])
			if err != nil {
				return err
			}
			ok, err := t.TableExists(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, ok)
			return nil
		},
	}
}

func columnsCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("columns", flag.ContinueOnError),
		Usage: "columns <table>",
		Short: "List the columns of a table",
		Exec: func(ctx context.Context, c *di.Container, out io.Writer, args []string) error {
			if len(args) != 1 {
				return errUsage
			}
			t, err := tableType(c, args[0])
			if err != nil {
				return err
			}
			cols, err := t.Columns(ctx)
			if err != nil {
				return err
			}
			for _, col := range cols {
				fmt.Fprintln(out, col)
			}
			return nil
		},
	}
}

func countCmd() *Command {
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	where := fs.StringArrayP("where", "w", nil, "filter column=value (repeatable)")

	return &Command{
		Flags: fs,
		Usage: "count <table> [--where col=val]...",
		Short: "Count matching rows",
		Exec: func(ctx context.Context, c *di.Container, out io.Writer, args []string) error {
			if len(args) != 1 {
				return errUsage
			}
			cond, err := parseWhere(*where)
			if err != nil {
				return err
			}
			t, err := tableType(c, args[0])
			if err != nil {
				return err
			}
			q, err := t.Filter(cond)
			if err != nil {
				return err
			}
			n, err := q.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, n)
			return nil
		},
	}
}

func findCmd() *Command {
	fs := flag.NewFlagSet("find", flag.ContinueOnError)
	pk := fs.String("pk", model.DefaultPrimaryKey, "primary key column")

	return &Command{
		Flags: fs,
		Usage: "find <table> <key> [--pk col]",
		Short: "Print the row with the given primary key as JSON",
		Exec: func(ctx context.Context, c *di.Container, out io.Writer, args []string) error {
			if len(args) != 2 {
				return errUsage
			}
			t, err := tableType(c, args[0], model.WithPrimaryKey(*pk))
			if err != nil {
				return err
			}
			r, err := t.Find(ctx, parseValue(args[1]))
			if err != nil {
				return err
			}
			return printRecord(out, r)
		},
	}
}

func findByCmd() *Command {
	fs := flag.NewFlagSet("find-by", flag.ContinueOnError)
	cached := fs.Bool("cache", false, "read through the configured cache backend")

	return &Command{
		Flags: fs,
		Usage: "find-by <table> <column> <value> [--cache]",
		Short: "Print the first row whose column equals value",
		Exec: func(ctx context.Context, c *di.Container, out io.Writer, args []string) error {
			if len(args) != 3 {
				return errUsage
			}
			t, err := tableType(c, args[0])
			if err != nil {
				return err
			}
			if *cached {
				if err := t.CacheBy(args[1], 0); err != nil {
					return err
				}
			}
			r, err := t.FindBy(ctx, args[1], parseValue(args[2]))
			if err != nil {
				return err
			}
			return printRecord(out, r)
		},
	}
}

func allCmd() *Command {
	fs := flag.NewFlagSet("all", flag.ContinueOnError)
	where := fs.StringArrayP("where", "w", nil, "filter column=value (repeatable)")
	order := fs.StringSliceP("order", "o", nil, `order columns, e.g. "name DESC"`)

	return &Command{
		Flags: fs,
		Usage: "all <table> [--where col=val]... [--order col]",
		Short: "Print matching rows as JSON lines",
		Exec: func(ctx context.Context, c *di.Container, out io.Writer, args []string) error {
			if len(args) != 1 {
				return errUsage
			}
			cond, err := parseWhere(*where)
			if err != nil {
				return err
			}
			t, err := tableType(c, args[0])
			if err != nil {
				return err
			}
			q, err := t.Filter(cond)
			if err != nil {
				return err
			}
			if len(*order) > 0 {
				q = q.Order(*order...)
			}
			return q.Each(ctx, func(r *model.Record) error {
				return printRecord(out, r)
			})
		},
	}
}
