package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/downloads"
	"github.com/desertthunder/spotiseek/internal/repositories"
	"github.com/desertthunder/spotiseek/internal/scheduler"
	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/desertthunder/spotiseek/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, orchestrator, pipeline and registry are built on first use by [Runner.open], so
// commands like setup run before a database exists.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	slskd   downloads.Client
	scraper tasks.PlaylistScraper

	db           *sql.DB
	orchestrator *downloads.Orchestrator
	pipeline     *tasks.Pipeline
	registry     *scheduler.Registry
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer

	// Slskd and Scraper replace the network clients built from the config.
	Slskd   downloads.Client
	Scraper tasks.PlaylistScraper
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		slskd:      opts.Slskd,
		scraper:    opts.Scraper,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, tasksCommand, daemonCommand, downloadCommand, importCommand,
		exportCommand, scrapeCommand, blacklistCommand, statsCommand, dashboardCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Configure loads the .env file, the config file and the environment, in that order of
// precedence from lowest to highest.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnv(cmd.String("env-file")); err != nil {
		return ctx, err
	}

	r.configPath = cmd.String("config")
	config, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return ctx, err
	}
	config.ApplyEnv()
	config.Resolve()
	r.config = config

	if config.Log.File != "" {
		fileLogger, err := shared.NewFileLogger(config.Log.File)
		if err != nil {
			return ctx, fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	return ctx, nil
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// open connects to the database and wires the pipeline. It is a no-op after the first call.
func (r *Runner) open(ctx context.Context) error {
	if r.registry != nil {
		return nil
	}
	if err := r.config.Validate(); err != nil {
		return err
	}
	if err := r.config.EnsureDirs(); err != nil {
		return err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	client := r.slskd
	if client == nil {
		client = services.NewSlskdClient(r.config.Slskd, r.httpClient, r.logger)
	}
	scraper := r.scraper
	if scraper == nil {
		scraper = r.newDispatcher(ctx)
	}

	r.db = db
	r.orchestrator = downloads.NewOrchestrator(client, db, r.config, r.logger)
	r.pipeline = tasks.NewPipeline(r.orchestrator, scraper, r.config, r.logger)
	r.registry = scheduler.NewRegistry(repositories.NewTaskRepository(db), r.logger)
	if err := tasks.Register(ctx, r.registry, r.pipeline); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}

	r.logger.Debug("runner ready", "env", r.config.App.Env, "database", r.config.Database.Path)
	return nil
}

// newDispatcher builds the playlist scrapers. Spotify is left out without credentials.
func (r *Runner) newDispatcher(ctx context.Context) *services.Dispatcher {
	var spotify services.Scraper
	if s, err := services.NewSpotifyScraper(ctx, r.config.Credentials.Spotify, r.logger); err != nil {
		r.logger.Warn("spotify scraping disabled", "err", err)
	} else {
		spotify = s
	}
	return services.NewDispatcher(spotify, services.NewSoundCloudScraper(r.httpClient, r.logger))
}

// Close releases the database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
