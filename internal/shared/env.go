package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads the given .env files into the process environment, skipping files that do not exist.
//
// Variables already present in the environment win.
func LoadEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat env file %s: %w", f, err)
		}
		existing = append(existing, f)
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto the file configuration.
func (c *Config) ApplyEnv() {
	c.App.Env = getEnvString("APP_ENV", c.App.Env)
	c.App.BaseDir = getEnvString("SPOTISEEK_BASE_DIR", c.App.BaseDir)
	c.Credentials.Spotify.ClientID = getEnvString("SPOTIFY_CLIENT_ID", c.Credentials.Spotify.ClientID)
	c.Credentials.Spotify.ClientSecret = getEnvString("SPOTIFY_CLIENT_SECRET", c.Credentials.Spotify.ClientSecret)
	c.Slskd.URL = getEnvString("SLSKD_URL", c.Slskd.URL)
	c.Slskd.APIKey = getEnvString("SLSKD_API_KEY", c.Slskd.APIKey)
	c.Database.Path = getEnvString("DATABASE_PATH", c.Database.Path)
	c.Paths.HostBasePath = getEnvString("HOST_BASE_PATH", c.Paths.HostBasePath)
	c.Paths.FFmpeg = getEnvString("FFMPEG_PATH", c.Paths.FFmpeg)
	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Server.Port = getEnvInt("SPOTISEEK_SERVER_PORT", c.Server.Port)
	c.Server.AuthToken = getEnvString("SPOTISEEK_AUTH_TOKEN", c.Server.AuthToken)
}

// TaskIntervalEnv names the variable overriding the interval of task name.
func TaskIntervalEnv(name string) string {
	return "TASK_" + strings.ToUpper(name) + "_INTERVAL"
}

// IntervalFromEnv returns the minutes stored in key, or def when the variable is absent,
// unparsable or not positive. The environment is read on every call.
func IntervalFromEnv(key string, def int) int {
	if key == "" {
		return def
	}
	v := getEnvInt(key, def)
	if v <= 0 {
		return def
	}
	return v
}

func getEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}
