package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotback/internal/services"
	"github.com/desertthunder/spotback/internal/shared"
	"github.com/desertthunder/spotback/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config       *shared.Config
	configPath   string
	configLoaded bool
	catalog      services.Catalog
	oauth        services.OAuthService
	db           *sql.DB
	logger       *log.Logger
	output       io.Writer
	openBrowser  func(url string) error
	mu           sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
//
// When Catalog is set it is used as-is and no OAuth flow is ever started.
// When DB is set snapshot history is written there instead of the configured database.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	loaded := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		configLoaded: loaded,
		catalog:      opts.Catalog,
		db:           opts.DB,
		logger:       opts.Logger,
		output:       opts.Output,
		openBrowser:  shared.OpenBrowser,
	}
	if svc, ok := opts.Catalog.(services.OAuthService); ok {
		r.oauth = svc
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		initCommand, authCommand, backupCommand, playlistsCommand, exportCommand, historyCommand,
	} {
		cmd := fn(r)
		cmd.Before = r.Before
		commands = append(commands, cmd)
	}

	return commands
}

// Before applies the global flags: log level and the config file location.
// It runs per subcommand so --config is honored on either side of the command name.
//
// A config passed through [RunnerOpts] is never replaced.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	switch {
	case cmd.Bool("verbose"):
		shared.SetLogLevel(r.logger, log.DebugLevel)
	case cmd.Bool("quiet"):
		shared.SetLogLevel(r.logger, log.WarnLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configLoaded {
		return ctx, nil
	}

	config, err := shared.LoadOrDefault(r.configPath)
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	r.config = config
	r.configLoaded = true
	r.logger.Debug("configuration loaded", "path", r.configPath)
	return ctx, nil
}

// exporter builds an [tasks.Exporter] using the configured retry and rate limit settings.
func (r *Runner) exporter(catalog services.Catalog) *tasks.Exporter {
	return tasks.NewExporter(catalog,
		tasks.WithRetry(r.retryPolicy()),
		tasks.WithRateLimit(r.config.Backup.RateLimit),
	)
}

func (r *Runner) retryPolicy() tasks.RetryPolicy {
	return tasks.RetryPolicy{
		Attempts: r.config.Backup.Retries,
		Delay:    r.config.Backup.RetryDelay.Duration,
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
