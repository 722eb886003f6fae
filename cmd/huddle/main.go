package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"huddle/internal/config"
	"huddle/internal/entities"
	"huddle/internal/i18n"
	"huddle/internal/logging"
	"huddle/internal/meeting"
	"huddle/internal/storage"
)

func main() {
	app := newCLI(os.Stdin, os.Stdout, os.Stderr)
	err := app.run(context.Background(), os.Args[1:])
	app.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huddle: %v\n", err)
		os.Exit(1)
	}
}

// cli 持有一次调用共享的配置、日志和存储
// cli holds the config, logger and store shared by one invocation. They
// are opened lazily so help and whoami work without a database.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	cfg        config.Config
	loaded     bool
	logger     *logging.Logger
	store      *storage.SQLiteStore
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{in: in, out: out, errOut: errOut}
}

func (c *cli) run(ctx context.Context, args []string) error {
	root := pflag.NewFlagSet("huddle", pflag.ContinueOnError)
	root.SetInterspersed(false)
	root.SetOutput(io.Discard)
	root.StringVar(&c.configPath, "config", "", "Path to config JSON/JSONC")
	tree := c.commands(ctx)
	if err := root.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			tree.printHelp(c.errOut)
			return nil
		}
		return err
	}
	rest := root.Args()
	if len(rest) == 0 {
		rest = []string{"start"}
	}
	return tree.execute(rest, c.errOut)
}

// setup 加载配置并初始化语言 / loads config and the message catalog
func (c *cli) setup() (config.Config, error) {
	if c.loaded {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	i18n.Init(cfg.UI.Locale)
	c.cfg = cfg
	c.loaded = true
	return cfg, nil
}

// open 打开日志和数据库 / opens the log file and the database
func (c *cli) open() (config.Config, *storage.SQLiteStore, error) {
	cfg, err := c.setup()
	if err != nil {
		return config.Config{}, nil, err
	}
	if c.store != nil {
		return cfg, c.store, nil
	}
	if c.logger == nil {
		logger, err := logging.New(cfg.Storage.BaseDir, cfg.Log.Level)
		if err != nil {
			return config.Config{}, nil, err
		}
		c.logger = logger
		slog.SetDefault(logger.Logger)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("open store: %w", err)
	}
	c.store = store
	c.logger.Debug("store opened", "path", store.Path())
	return cfg, store, nil
}

func (c *cli) close() {
	if c.store != nil {
		_ = c.store.Close()
	}
	if c.logger != nil {
		_ = c.logger.Close()
	}
}

// owner 当前配置的所有者；未配置时给出设置提示
// owner returns the configured owner or a hint on how to set one
func (c *cli) owner(cfg config.Config) (entities.Owner, error) {
	owner := entities.Owner{ID: cfg.Owner.ID, DisplayName: cfg.Owner.DisplayName}
	if !owner.Valid() {
		return entities.Owner{}, errors.New(i18n.T("cli.owner_required"))
	}
	return owner, nil
}

func partners(cfg config.Config) meeting.Partners {
	return meeting.Partners{User1: cfg.Owner.User1Name, User2: cfg.Owner.User2Name}
}

func (c *cli) commands(ctx context.Context) *command {
	return &command{
		name:    "huddle",
		summary: "Guided weekly meetings for two partners.",
		usage:   "huddle [--config path] <command> [flags]",
		subcommands: []*command{
			c.startCommand(ctx),
			c.addCommand(ctx),
			c.listCommand(ctx),
			c.archiveCommand(ctx),
			c.historyCommand(ctx),
			c.showCommand(ctx),
			c.deleteCommand(ctx),
			c.exportCommand(ctx),
			c.importCommand(ctx),
			c.whoamiCommand(),
			c.initCommand(),
		},
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
