// Command wsiview is a headless front end to the viewer core: it talks to a
// slide tile server, loads annotations and renders overlay snapshots of a
// single viewer or a synchronized four-panel grid.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pathoscope/wsiview/internal/api"
	"github.com/pathoscope/wsiview/internal/cache"
	"github.com/pathoscope/wsiview/internal/config"
	"github.com/pathoscope/wsiview/internal/dispatcher"
	"github.com/pathoscope/wsiview/internal/logging"
	intOtel "github.com/pathoscope/wsiview/internal/otel"
	"github.com/pathoscope/wsiview/internal/session"
	"github.com/pathoscope/wsiview/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/viper"
)

const appName = "wsiview"

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

// app holds everything a subcommand needs.
type app struct {
	out     io.Writer
	logs    *logging.SlogManager
	logger  *slog.Logger
	events  dispatcher.Logger
	otel    *intOtel.Provider
	client  *api.Client
	infos   *cache.SlideCache
	store   *store.Store
	session *session.Context

	closers []io.Closer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	if out != os.Stdout {
		color.NoColor = true
	}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(out)
	configDir := fs.String("config", ".", "directory containing "+config.ConfigFileName)
	envFile := fs.String("env", ".env", "dotenv file loaded before the config")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(out)
		return 2
	}

	a, err := newApp(*configDir, *envFile, out)
	if err != nil {
		errColor.Fprintf(out, "startup failed: %v\n", err)
		return 1
	}
	defer a.close()

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if err := a.dispatch(cmd, cmdArgs); err != nil {
		a.logger.Error("command failed", "command", cmd, "error", err)
		errColor.Fprintf(out, "%s: %v\n", cmd, err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: wsiview [-config dir] [-env file] <command> [args]

commands:
  health                          check the tile server
  slides                          list slides
  snapshot [flags] <slide>        render one viewer's overlay to PNG
  quad [flags] <slide>...         open up to four panels, optionally synchronized
  import -db <path> <markers> [tumor-areas]
                                  copy JSON annotations into a SQLite store`)
}

func newApp(configDir, envFile string, out io.Writer) (*app, error) {
	if err := config.LoadEnv(envFile); err != nil {
		return nil, err
	}

	a := &app{
		out:     out,
		logs:    logging.NewSlogManager(),
		infos:   cache.NewSlideCache(),
		store:   store.New(),
		session: session.NewContext(),
	}

	// Bootstrap logging to stdout until the log file exists.
	a.logs.Setup(nil, "warn", nil)
	a.logger = a.logs.Logger()

	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	sessionStart := time.Now()
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}

	logPath := logging.LogFilePath(logsDir, appName, sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	a.closers = append(a.closers, logFile)

	eventPath := logging.EventLogFilePath(logsDir, appName, sessionStart)
	eventFile, err := os.OpenFile(eventPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening event log file: %w", err)
	}
	a.closers = append(a.closers, eventFile)
	a.events = logging.NewEventLoggerTo(eventFile, viper.GetString("logLevel"))

	a.otel, err = intOtel.New(intOtel.FromConfig(config.GetOTelConfig(), logFile))
	if err != nil {
		a.logger.Error("Failed to initialize OTel provider", "error", err)
		a.otel, _ = intOtel.New(intOtel.Config{})
	}
	a.otel.Install()

	a.logs.SetSession(a.session, a.store)
	a.logs.Setup(logFile, viper.GetString("logLevel"), a.otel.LoggerProvider())
	a.logger = a.logs.Logger()
	a.logger.Info("Logging to file", "path", filepath.Clean(logPath))

	ts := config.GetTileServerConfig()
	a.client = api.New(ts.BaseURL, api.WithTimeout(ts.Timeout), api.WithTileFormat(ts.TileFormat))
	return a, nil
}

func (a *app) dispatch(cmd string, args []string) error {
	switch cmd {
	case "health":
		return a.health()
	case "slides":
		return a.slides()
	case "snapshot":
		return a.snapshot(args)
	case "quad":
		return a.quad(args)
	case "import":
		return a.importAnnotations(args)
	default:
		usage(a.out)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.otel != nil {
		if counters, err := a.otel.Counters(ctx); err == nil && len(counters) > 0 {
			a.logger.Info("session metrics", "counters", counters)
		}
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("OTel shutdown failed", "error", err)
		}
	}
	_ = a.logs.Flush(ctx)
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}
