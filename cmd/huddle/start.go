package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/pflag"

	"huddle/internal/config"
	"huddle/internal/entities"
	"huddle/internal/i18n"
	"huddle/internal/meeting"
	"huddle/internal/notify"
	"huddle/internal/recap"
	"huddle/internal/repl"
	"huddle/internal/storage"
	"huddle/internal/syncer"
	"huddle/internal/tui"
)

func (c *cli) startCommand(ctx context.Context) *command {
	var line, resume bool
	return &command{
		name:    "start",
		summary: "Start a weekly meeting",
		usage:   "huddle start [--line] [--resume]",
		flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("start", pflag.ContinueOnError)
			fs.BoolVar(&line, "line", false, "Use the line-mode interface")
			fs.BoolVar(&resume, "resume", false, "Restore sections saved earlier today")
			return fs
		},
		run: func(args []string) error {
			return c.start(ctx, line, resume)
		},
	}
}

func (c *cli) start(ctx context.Context, line, resume bool) error {
	cfg, store, err := c.open()
	if err != nil {
		return err
	}
	owner, err := c.owner(cfg)
	if err != nil {
		return err
	}
	logger := c.logger.Logger

	gen, err := recap.FromConfig(cfg, logger)
	if err != nil && !errors.Is(err, recap.ErrDisabled) {
		logger.Warn("recap disabled", "err", err)
	}

	useLine := line || cfg.UI.Mode == "line" || !interactive(c.in, c.out)
	logNotices := notify.Log{Logger: logger}
	opts := []meeting.Option{
		meeting.WithLogger(logger),
		meeting.WithTickInterval(cfg.TickInterval()),
		meeting.WithSaveTimeout(cfg.SaveTimeout()),
	}
	var (
		recorder *notify.Recorder
		bridge   *tui.Bridge
	)
	if useLine {
		recorder = &notify.Recorder{}
		opts = append(opts, meeting.WithNotifier(notify.Multi(recorder, logNotices)))
	} else {
		bridge = tui.NewBridge()
		opts = append(opts,
			meeting.WithNotifier(notify.Multi(bridge, logNotices)),
			meeting.OnTick(bridge.Tick),
		)
	}

	engine, err := meeting.New(owner, store, newAdapter(cfg, store, logger), opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	if resume {
		n, err := engine.Restore(ctx)
		if err != nil {
			return fmt.Errorf("restore meeting: %w", err)
		}
		fmt.Fprintln(c.out, i18n.T("cli.restored", n))
	}

	if useLine {
		input, inErr := newLineInput(filepath.Join(cfg.Storage.BaseDir, "repl.history"), c.in, c.out)
		if inErr != nil {
			fmt.Fprintln(c.errOut, i18n.T("cli.line_fallback", inErr))
		}
		defer input.Close()
		session := repl.New(engine, c.out, recorder,
			repl.WithPartners(partners(cfg)),
			repl.WithColor(interactive(c.in, c.out)),
			repl.OnComplete(func(ctx context.Context, s meeting.Summary) {
				c.writeRecap(ctx, gen, s)
			}),
		)
		return repl.Run(ctx, session, input)
	}

	tuiOpts := []tui.Option{tui.WithPartners(partners(cfg))}
	if gen != nil {
		tuiOpts = append(tuiOpts, tui.WithRecap(func(ctx context.Context, s meeting.Summary) (string, error) {
			r, err := gen.Generate(ctx, s)
			return r.Text, err
		}))
	}
	summary, err := tui.Run(ctx, engine, bridge, tuiOpts...)
	if err != nil {
		return err
	}
	if summary == nil {
		fmt.Fprintln(c.out, i18n.T("repl.bye"))
		return nil
	}
	fmt.Fprintln(c.out, i18n.T("close.done", meeting.FormatDuration(summary.Duration())))
	// 用户在回顾返回前退出时补写 / write the recap if the user left before it arrived
	if gen != nil {
		if _, ok, _ := gen.Load(summary.ID); !ok {
			c.writeRecap(ctx, gen, *summary)
		}
	}
	return nil
}

// newAdapter 按配置构建同步适配器 / builds the sync adapter from config
func newAdapter(cfg config.Config, store storage.Store, logger *slog.Logger) *syncer.Adapter {
	repo := entities.NewRepo(store, nil)
	return syncer.NewAdapter(store, syncer.NewDeriver(repo, logger),
		syncer.WithLogger(logger),
		syncer.WithConcurrency(cfg.Meeting.SyncConcurrency),
	)
}

// writeRecap 生成并打印回顾；失败只提示 / generates and prints a recap; failures only warn
func (c *cli) writeRecap(ctx context.Context, gen *recap.Generator, s meeting.Summary) {
	if gen == nil {
		return
	}
	r, err := gen.Generate(ctx, s)
	if err != nil {
		fmt.Fprintln(c.errOut, i18n.T("notify.recap_failed", err))
		return
	}
	fmt.Fprintf(c.out, "\n%s\n", r.Text)
	fmt.Fprintln(c.out, i18n.T("cli.recap_written", r.Path))
}
