package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	App         AppConfig         `toml:"app"`
	Credentials CredentialsConfig `toml:"credentials"`
	Slskd       SlskdConfig       `toml:"slskd"`
	Database    DatabaseConfig    `toml:"database"`
	Paths       PathsConfig       `toml:"paths"`
	Quality     QualityConfig     `toml:"quality"`
	Scrape      ScrapeConfig      `toml:"scrape"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// AppConfig selects the deployment environment.
type AppConfig struct {
	Env     string `toml:"env"`
	BaseDir string `toml:"base_dir"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify client credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// SlskdConfig contains connection settings for the slskd daemon.
type SlskdConfig struct {
	URL                       string  `toml:"url"`
	APIKey                    string  `toml:"api_key"`
	RequestsPerSecond         float64 `toml:"requests_per_second"`
	TimeoutSeconds            int     `toml:"timeout_seconds"`
	SearchPollAttempts        int     `toml:"search_poll_attempts"`
	SearchPollIntervalSeconds int     `toml:"search_poll_interval_seconds"`
	ReadyWaitSeconds          int     `toml:"ready_wait_seconds"`
}

// Timeout returns the per-request timeout.
func (s SlskdConfig) Timeout() time.Duration {
	return seconds(s.TimeoutSeconds, 10)
}

// PollInterval returns the sleep between search polls.
func (s SlskdConfig) PollInterval() time.Duration {
	return seconds(s.SearchPollIntervalSeconds, 2)
}

// ReadyWait returns how long tasks wait for slskd to log in.
func (s SlskdConfig) ReadyWait() time.Duration {
	return seconds(s.ReadyWaitSeconds, 60)
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PathsConfig locates playlist sources and generated artifacts.
type PathsConfig struct {
	PlaylistsFile string `toml:"playlists_file"`
	M3U8Dir       string `toml:"m3u8_dir"`
	XMLDir        string `toml:"xml_dir"`
	DownloadsRoot string `toml:"downloads_root"`
	HostBasePath  string `toml:"host_base_path"`
	FFmpeg        string `toml:"ffmpeg"`
}

// XMLExportPath is where the iTunes library is written.
func (p PathsConfig) XMLExportPath() string {
	return filepath.Join(p.XMLDir, "spotiseek_library.xml")
}

// QualityConfig tunes candidate selection.
type QualityConfig struct {
	Strict bool `toml:"strict"`
}

// ScrapeConfig bounds concurrent playlist scraping.
type ScrapeConfig struct {
	Workers           int     `toml:"workers"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// WorkerCount returns the number of concurrent scrapers, between 1 and 10.
func (s ScrapeConfig) WorkerCount() int {
	switch {
	case s.Workers <= 0:
		return 3
	case s.Workers > 10:
		return 10
	default:
		return s.Workers
	}
}

// Rate returns the playlist fetch rate per second.
func (s ScrapeConfig) Rate() float64 {
	if s.RequestsPerSecond <= 0 {
		return 2
	}
	return s.RequestsPerSecond
}

// SchedulerConfig contains background loop timings.
type SchedulerConfig struct {
	PollSeconds        int `toml:"poll_seconds"`
	BackoffSeconds     int `toml:"backoff_seconds"`
	StopTimeoutSeconds int `toml:"stop_timeout_seconds"`
}

func (s SchedulerConfig) Poll() time.Duration        { return seconds(s.PollSeconds, 30) }
func (s SchedulerConfig) Backoff() time.Duration     { return seconds(s.BackoffSeconds, 60) }
func (s SchedulerConfig) StopTimeout() time.Duration { return seconds(s.StopTimeoutSeconds, 10) }

// ServerConfig contains HTTP status API settings.
type ServerConfig struct {
	Enabled   bool   `toml:"enabled"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	AuthToken string `toml:"auth_token"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML to path.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate reports configuration that makes the pipeline unusable.
func (c *Config) Validate() error {
	if c.App.Env == "" {
		return fmt.Errorf("%w: APP_ENV is not set", ErrMissingConfig)
	}
	if c.Slskd.URL == "" {
		return fmt.Errorf("%w: slskd url is empty", ErrInvalidConfig)
	}
	return nil
}

// Resolve fills every empty path with its environment-derived default.
//
// Call after [Config.ApplyEnv] so APP_ENV is known.
func (c *Config) Resolve() {
	base := c.App.BaseDir
	if base == "" {
		base = "."
	}
	env := c.App.Env

	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(base, "database", env, fmt.Sprintf("database_%s.db", env))
	}
	if c.Paths.PlaylistsFile == "" {
		c.Paths.PlaylistsFile = filepath.Join(base, "input_playlists", fmt.Sprintf("playlists_%s.csv", env))
	}
	if c.Paths.M3U8Dir == "" {
		c.Paths.M3U8Dir = filepath.Join(base, "database", "m3u8s", env)
	}
	if c.Paths.XMLDir == "" {
		c.Paths.XMLDir = filepath.Join(base, "database", "xml", env)
	}
	if c.Paths.DownloadsRoot == "" {
		c.Paths.DownloadsRoot = filepath.Join(base, "slskd_docker_data", env, "downloads")
	}
	if c.Paths.FFmpeg == "" {
		c.Paths.FFmpeg = "ffmpeg"
	}
}

// FallbackPlaylistsFile is read when the environment specific file is missing.
func (c *Config) FallbackPlaylistsFile() string {
	base := c.App.BaseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, "input_playlists", "playlists.csv")
}

// EnsureDirs creates the directories the pipeline writes into.
func (c *Config) EnsureDirs() error {
	dirs := []string{filepath.Dir(c.Database.Path), c.Paths.M3U8Dir, c.Paths.XMLDir}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
