package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"huddle/internal/config"
	"huddle/internal/entities"
	"huddle/internal/i18n"
	"huddle/internal/meeting"
	"huddle/internal/recap"
	"huddle/internal/storage"
	"huddle/internal/syncer"
	"huddle/internal/tui"
)

// --- add ---

func (c *cli) addCommand(ctx context.Context) *command {
	var description, due, priority string
	flags := func(name string, withPriority bool) func() *pflag.FlagSet {
		return func() *pflag.FlagSet {
			fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
			fs.StringVarP(&description, "description", "d", "", "Longer description")
			fs.StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
			if withPriority {
				fs.StringVar(&priority, "priority", entities.PriorityMedium, "low, medium or high")
			}
			return fs
		}
	}
	add := func(kind string) func(args []string) error {
		return func(args []string) error {
			title := joinArgs(args)
			if title == "" {
				return fmt.Errorf("usage: huddle add %s <title>", kind)
			}
			return c.add(ctx, kind, title, description, due, priority)
		}
	}
	return &command{
		name:    "add",
		summary: "Add a rock, to-do or issue",
		usage:   "huddle add rock|todo|issue <title> [flags]",
		subcommands: []*command{
			{name: "rock", summary: "Add a rock", usage: "huddle add rock <title> [-d text] [--due date]", flags: flags("rock", false), run: add("rock")},
			{name: "todo", summary: "Add a to-do", usage: "huddle add todo <title> [--due date]", flags: flags("todo", false), run: add("todo")},
			{name: "issue", summary: "Add an issue", usage: "huddle add issue <title> [-d text] [--priority p]", flags: flags("issue", true), run: add("issue")},
		},
	}
}

func (c *cli) add(ctx context.Context, kind, title, description, due, priority string) error {
	cfg, store, err := c.open()
	if err != nil {
		return err
	}
	owner, err := c.owner(cfg)
	if err != nil {
		return err
	}
	repo := entities.NewRepo(store, nil)

	var id string
	switch kind {
	case "rock":
		rock, err := repo.CreateRock(ctx, owner, entities.Rock{Title: title, Description: description, DueDate: due})
		if err != nil {
			return err
		}
		id = rock.ID
	case "todo":
		todo, err := repo.CreateTodo(ctx, owner, entities.Todo{Title: title, DueDate: due})
		if err != nil {
			return err
		}
		id = todo.ID
	case "issue":
		switch priority {
		case entities.PriorityLow, entities.PriorityMedium, entities.PriorityHigh:
		default:
			return fmt.Errorf("invalid priority %q (low, medium or high)", priority)
		}
		issue, err := repo.CreateIssue(ctx, owner, entities.Issue{Name: title, Description: description, Priority: priority})
		if err != nil {
			return err
		}
		id = issue.ID
	}
	fmt.Fprintln(c.out, i18n.T("cli.created", kind, fmt.Sprintf("%q (%s)", title, id)))
	return nil
}

// --- list / archive ---

func (c *cli) listCommand(ctx context.Context) *command {
	return &command{
		name:    "list",
		summary: "List active rocks, to-dos and issues",
		usage:   "huddle list [rocks|todos|issues]",
		run: func(args []string) error {
			kinds := []string{"rocks", "todos", "issues"}
			if len(args) > 0 {
				kinds = args
			}
			return c.list(ctx, kinds)
		},
	}
}

func (c *cli) list(ctx context.Context, kinds []string) error {
	cfg, store, err := c.open()
	if err != nil {
		return err
	}
	owner, err := c.owner(cfg)
	if err != nil {
		return err
	}
	repo := entities.NewRepo(store, nil)

	tw := tabwriter.NewWriter(c.out, 2, 0, 2, ' ', 0)
	defer tw.Flush()
	for _, kind := range kinds {
		collection, ok := entities.CollectionFor(kind)
		if !ok {
			return fmt.Errorf("unknown kind %q (rocks, todos or issues)", kind)
		}
		fmt.Fprintf(tw, "%s\n", strings.ToUpper(collection))
		n := 0
		switch collection {
		case storage.CollectionRocks:
			rocks, err := repo.ListRocks(ctx, owner)
			if err != nil {
				return err
			}
			for _, r := range rocks {
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", r.ID, r.Title, syncer.ToLocal(collection, r.Status), r.Comment)
			}
			n = len(rocks)
		case storage.CollectionTodos:
			todos, err := repo.ListTodos(ctx, owner)
			if err != nil {
				return err
			}
			for _, t := range todos {
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", t.ID, t.Title, syncer.ToLocal(collection, t.Status), t.DueDate)
			}
			n = len(todos)
		case storage.CollectionIssues:
			issues, err := repo.ListIssues(ctx, owner)
			if err != nil {
				return err
			}
			for _, is := range issues {
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", is.ID, is.Name, syncer.ToLocal(collection, is.Status), is.Priority)
			}
			n = len(issues)
		}
		if n == 0 {
			fmt.Fprintf(tw, "  %s\n", i18n.T("empty."+collection))
		}
	}
	return nil
}

func (c *cli) archiveCommand(ctx context.Context) *command {
	return &command{
		name:    "archive",
		summary: "Hide a rock, to-do or issue from meetings",
		usage:   "huddle archive rock|todo|issue <id>",
		run: func(args []string) error {
			if len(args) != 2 {
				return errors.New("usage: huddle archive rock|todo|issue <id>")
			}
			collection, ok := entities.CollectionFor(args[0])
			if !ok {
				return fmt.Errorf("unknown kind %q", args[0])
			}
			cfg, store, err := c.open()
			if err != nil {
				return err
			}
			owner, err := c.owner(cfg)
			if err != nil {
				return err
			}
			if err := entities.NewRepo(store, nil).Archive(ctx, owner, collection, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(c.out, i18n.T("cli.archived", entities.Kind(collection), args[1]))
			return nil
		},
	}
}

// --- history / show / delete ---

func (c *cli) historyCommand(ctx context.Context) *command {
	var limit int
	return &command{
		name:    "history",
		summary: "List completed meetings, newest first",
		usage:   "huddle history [--limit n]",
		flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
			fs.IntVarP(&limit, "limit", "n", 20, "Maximum meetings to show (0 for all)")
			return fs
		},
		run: func(args []string) error {
			cfg, store, err := c.open()
			if err != nil {
				return err
			}
			owner, err := c.owner(cfg)
			if err != nil {
				return err
			}
			summaries, err := meeting.ListSummaries(ctx, store, owner.ID, limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(c.out, i18n.T("history.empty"))
				return nil
			}
			fmt.Fprintln(c.out, i18n.T("history.header"))
			tw := tabwriter.NewWriter(c.out, 2, 0, 2, ' ', 0)
			for _, s := range summaries {
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%d/%d\n",
					s.ID,
					s.StartedAt.Local().Format("2006-01-02 15:04"),
					meeting.FormatDuration(s.Duration()),
					s.Steps.Len(), meeting.StepCount())
			}
			return tw.Flush()
		},
	}
}

func (c *cli) showCommand(ctx context.Context) *command {
	var raw bool
	return &command{
		name:    "show",
		summary: "Show a meeting summary and its recap",
		usage:   "huddle show <id> [--raw]",
		flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
			fs.BoolVar(&raw, "raw", false, "Print markdown without terminal styling")
			return fs
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: huddle show <id>")
			}
			cfg, store, err := c.open()
			if err != nil {
				return err
			}
			owner, err := c.owner(cfg)
			if err != nil {
				return err
			}
			s, err := meeting.GetSummary(ctx, store, owner.ID, args[0])
			if err != nil {
				return fmt.Errorf("meeting %s: %w", args[0], err)
			}
			md := meeting.RenderMarkdown(s, partners(cfg))
			if text, ok, err := recap.Read(recapDir(cfg), s.ID); err == nil && ok {
				md += "\n## " + i18n.T("tui.recap") + "\n\n" + text
			}
			if raw || !isTerminal(c.out) {
				fmt.Fprint(c.out, md)
				return nil
			}
			fmt.Fprintln(c.out, tui.RenderMarkdown(md, 100))
			return nil
		},
	}
}

func (c *cli) deleteCommand(ctx context.Context) *command {
	return &command{
		name:    "delete",
		summary: "Delete a meeting from history",
		usage:   "huddle delete <id>",
		run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: huddle delete <id>")
			}
			cfg, store, err := c.open()
			if err != nil {
				return err
			}
			owner, err := c.owner(cfg)
			if err != nil {
				return err
			}
			if err := meeting.DeleteSummary(ctx, store, owner.ID, args[0]); err != nil {
				return err
			}
			if err := os.Remove(filepath.Join(recapDir(cfg), args[0]+".md")); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.logger.Warn("remove recap failed", "meeting", args[0], "err", err)
			}
			fmt.Fprintln(c.out, i18n.T("cli.deleted", args[0]))
			return nil
		},
	}
}

func recapDir(cfg config.Config) string {
	return filepath.Join(cfg.Storage.BaseDir, "recaps")
}

// --- export / import ---

func (c *cli) exportCommand(ctx context.Context) *command {
	var format, out string
	var all bool
	return &command{
		name:    "export",
		summary: "Export meeting summaries as JSON or YAML files",
		usage:   "huddle export [--format json|yaml] [--out dir] [--all]",
		flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
			fs.StringVarP(&format, "format", "f", storage.FormatJSON, "json or yaml")
			fs.StringVarP(&out, "out", "o", "", "Output directory (default <base>/exports)")
			fs.BoolVar(&all, "all", false, "Export every collection, not only meetings")
			return fs
		},
		run: func(args []string) error {
			cfg, store, err := c.open()
			if err != nil {
				return err
			}
			owner, err := c.owner(cfg)
			if err != nil {
				return err
			}
			dir := strings.TrimSpace(out)
			if dir == "" {
				dir = filepath.Join(cfg.Storage.BaseDir, "exports")
			}
			exporter, err := storage.NewExporter(dir, format)
			if err != nil {
				return err
			}
			collections := []string{storage.CollectionMeetings}
			if all {
				collections = storage.Collections()
			}
			total := 0
			for _, collection := range collections {
				n, err := exporter.Export(ctx, store, collection, owner.ID)
				if err != nil {
					return fmt.Errorf("export %s: %w", collection, err)
				}
				total += n
			}
			fmt.Fprintln(c.out, i18n.T("cli.exported", total, dir))
			return nil
		},
	}
}

func (c *cli) importCommand(ctx context.Context) *command {
	return &command{
		name:    "import",
		summary: "Import documents from a JSON export",
		usage:   "huddle import <file>",
		run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("usage: huddle import <file>")
			}
			_, store, err := c.open()
			if err != nil {
				return err
			}
			n, err := storage.ImportJSON(ctx, args[0], store)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, i18n.T("cli.imported", n))
			return nil
		},
	}
}

// --- whoami / init ---

func (c *cli) whoamiCommand() *command {
	var id, name string
	return &command{
		name:    "whoami",
		summary: "Show or set the meeting owner",
		usage:   "huddle whoami [--set-id id] [--set-name name]",
		flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("whoami", pflag.ContinueOnError)
			fs.StringVar(&id, "set-id", "", "Owner id written to ./.huddle/config.json")
			fs.StringVar(&name, "set-name", "", "Owner display name")
			return fs
		},
		run: func(args []string) error {
			if id != "" || name != "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				if err := config.WriteOwner(cwd, id, name); err != nil {
					return err
				}
			}
			cfg, err := c.setup()
			if err != nil {
				return err
			}
			owner, err := c.owner(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, i18n.T("cli.whoami", owner.DisplayName, owner.ID))
			return nil
		},
	}
}

func (c *cli) initCommand() *command {
	return &command{
		name:    "init",
		summary: "Write a project config scaffold to ./.huddle/config.json",
		usage:   "huddle init",
		run: func(args []string) error {
			if _, err := c.setup(); err != nil {
				return err
			}
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path := filepath.Join(cwd, ".huddle", "config.json")
			written, err := config.InitProjectConfigScaffold(cwd)
			if err != nil {
				return err
			}
			if !written {
				fmt.Fprintln(c.out, i18n.T("cli.init_exists", path))
				return nil
			}
			fmt.Fprintln(c.out, i18n.T("cli.init", path))
			return nil
		},
	}
}
