package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GOLDCASE"

// Config is the goldcase configuration. Sources apply in order: config.yaml,
// then GOLDCASE_* environment variables (a .env file in the working directory
// is loaded first), then explicitly set flags.
type Config struct {
	OutDir        string `yaml:"out_dir" envconfig:"OUT_DIR"`
	Format        string `yaml:"format" envconfig:"FORMAT"`
	Seed          *int64 `yaml:"seed" envconfig:"SEED"`
	LogLevel      string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat     string `yaml:"log_format" envconfig:"LOG_FORMAT"`
	ServerAddress string `yaml:"server_address" envconfig:"SERVER_ADDRESS"`
}

var cfg Config

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "goldcase", "config.yaml")
}

// LoadConfig reads path (or the default location when empty) and overlays the
// environment. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	var c Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".env: %w", err)
	}
	if err := envconfig.Process(envPrefix, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func applyLoggingConfig(cmd *cli.Command, c Config) {
	if c.LogLevel != "" && !cmd.IsSet("log-level") {
		logLevel = c.LogLevel
	}
	if c.LogFormat != "" && !cmd.IsSet("log-format") {
		logFormat = c.LogFormat
	}
}

// applyOutputConfig fills --out, --format and --seed from the config when the
// flags were not given.
func applyOutputConfig(cmd *cli.Command, c Config) {
	if c.OutDir != "" && !cmd.IsSet("out") {
		outDir = c.OutDir
	}
	if c.Format != "" && !cmd.IsSet("format") {
		format = c.Format
	}
	if c.Seed != nil && !cmd.IsSet("seed") {
		seed = *c.Seed
	}
}

func applyServeConfig(cmd *cli.Command, c Config, addr *string) {
	if c.ServerAddress != "" && !cmd.IsSet("addr") {
		*addr = c.ServerAddress
	}
}
