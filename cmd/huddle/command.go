package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// command 一个子命令；flags 延迟创建，run 接收解析后的位置参数
// command is one CLI subcommand. flags is built lazily; run receives the
// positional arguments left after flag parsing.
type command struct {
	name        string
	summary     string
	usage       string
	flags       func() *pflag.FlagSet
	subcommands []*command
	run         func(args []string) error
}

func (c *command) execute(args []string, help io.Writer) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.printHelp(help)
		return nil
	}

	if len(c.subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		for _, sub := range c.subcommands {
			if sub.name == args[0] {
				return sub.execute(args[1:], help)
			}
		}
		if c.run == nil {
			return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", args[0], c.usage)
		}
	}
	if len(c.subcommands) > 0 && c.run == nil {
		c.printHelp(help)
		return fmt.Errorf("subcommand required")
	}

	if c.flags != nil {
		fs := c.flags()
		fs.SetOutput(io.Discard)
		if err := fs.Parse(args); err != nil {
			if err == pflag.ErrHelp {
				c.printHelp(help)
				return nil
			}
			return fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.usage)
		}
		args = fs.Args()
	}
	return c.run(args)
}

func (c *command) printHelp(w io.Writer) {
	if c.summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.summary)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usage)

	if len(c.subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.name, sub.summary)
		}
		tw.Flush()
	}

	if c.flags != nil {
		var b strings.Builder
		fs := c.flags()
		fs.SetOutput(&b)
		fs.PrintDefaults()
		if b.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", b.String())
		}
	}
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
