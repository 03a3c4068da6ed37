package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tgienger/todosky/internal/api"
	"github.com/tgienger/todosky/internal/broadcast"
	"github.com/tgienger/todosky/internal/config"
	"github.com/tgienger/todosky/internal/db"
	"github.com/tgienger/todosky/internal/logging"
	"github.com/tgienger/todosky/internal/markdown"
	"github.com/tgienger/todosky/internal/ui"
	"github.com/tgienger/todosky/internal/ui/views"
)

// runtime is everything a command needs, opened from the config
type runtime struct {
	cfg    *config.Config
	log    *slog.Logger
	status *logging.StatusHandler
	db     *db.DB
	prefs  *db.Prefs
	client *api.Client

	closers []io.Closer
}

func setup() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rt := &runtime{cfg: cfg}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	rt.closers = append(rt.closers, logFile)
	rt.status = logging.NewStatusHandler(slog.LevelWarn)
	rt.log = logging.New(logFile, level, rt.status)

	// Initialize database
	database, err := db.New(cfg.DataDir)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	rt.closers = append(rt.closers, database)
	rt.db = database
	rt.prefs = db.NewPrefs(database)

	rt.client, err = api.NewClient(cfg.ServerURL,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithLogger(rt.log.With("component", "api")),
		api.WithReporter(api.ReporterFunc(func(err error) {
			rt.log.Warn("request failed", "error", err)
		})),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i].Close()
	}
}

// login uses the configured password, if any
func (rt *runtime) login(ctx context.Context) error {
	if rt.cfg.Password == "" {
		return fmt.Errorf("no password configured; set password in the config file or TODOSKY_PASSWORD")
	}
	return rt.client.Login(ctx, rt.cfg.Password)
}

// runTUI opens the interface on the screen named by start
func runTUI(cmd *cobra.Command, start ui.Start) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var bus broadcast.Bus = broadcast.Discard{}
	channel, err := broadcast.NewChannel(rt.cfg.BroadcastDir, rt.log.With("component", "broadcast"))
	if err == nil {
		err = channel.Start(ctx)
	}
	if err != nil {
		rt.log.Warn("cross-process updates disabled", "error", err)
	} else {
		defer channel.Close()
		bus = channel
	}

	if start.Screen != ui.ScreenLogin {
		start.Password = rt.cfg.Password
	}

	env := &views.Env{
		Ctx:      ctx,
		Client:   rt.client,
		Login:    rt.client.Login,
		Bus:      bus,
		Prefs:    rt.prefs,
		Log:      rt.log,
		Markdown: markdown.Renderer{Style: rt.cfg.MarkdownStyle},
		Copy:     clipboard.WriteAll,
	}

	// Create and run the application
	app := ui.NewApp(env, start)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	rt.status.Attach(func(level slog.Level, summary string) {
		go p.Send(views.StatusMsg{Text: summary, Err: level >= slog.LevelError})
	})
	unsubscribe := bus.Subscribe(func(msg broadcast.Message) {
		go p.Send(views.BroadcastMsg{Msg: msg})
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running application: %w", err)
	}
	return nil
}
