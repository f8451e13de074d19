package utils

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"notescope/panels"
)

// Config Settings of the notescope server
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Sqlite struct {
		Filename string `yaml:"filename"`
	} `yaml:"sqlite"`

	Panels struct {
		MinWidth         int `yaml:"min_width"`
		MaxWidth         int `yaml:"max_width"`
		MinHeight        int `yaml:"min_height"`
		MaxHeight        int `yaml:"max_height"`
		DefaultWidth     int `yaml:"default_width"`
		DefaultHeight    int `yaml:"default_height"`
		MaxContentLength int `yaml:"max_content_length"`
	} `yaml:"panels"`

	Sessions struct {
		TTL             time.Duration `yaml:"ttl"`
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
	} `yaml:"sessions"`

	Viewport struct {
		MaxWidth  int `yaml:"max_width"`
		MaxHeight int `yaml:"max_height"`
	} `yaml:"viewport"`

	Overlay struct {
		MaxSide    int `yaml:"max_side"`
		JpgQuality int `yaml:"jpg_quality"`
	} `yaml:"overlay"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Environment variables that override the YAML file
const (
	envPort     = "NOTESCOPE_PORT"
	envSqlite   = "NOTESCOPE_SQLITE"
	envLogLevel = "NOTESCOPE_LOG_LEVEL"
)

// DefaultConfig The configuration used for every key missing from the file
func DefaultConfig() *Config {
	config := &Config{}
	config.Server.Port = "5000"
	config.Sqlite.Filename = "notescope.sqlite"

	limits := panels.DefaultLimits()
	config.Panels.MinWidth = limits.MinWidth
	config.Panels.MaxWidth = limits.MaxWidth
	config.Panels.MinHeight = limits.MinHeight
	config.Panels.MaxHeight = limits.MaxHeight
	config.Panels.DefaultWidth = limits.DefaultSize.Width
	config.Panels.DefaultHeight = limits.DefaultSize.Height
	config.Panels.MaxContentLength = limits.MaxContentLength

	config.Sessions.TTL = 30 * time.Minute
	config.Sessions.CleanupInterval = time.Minute
	config.Viewport.MaxWidth = 7680
	config.Viewport.MaxHeight = 4320
	config.Overlay.MaxSide = 512
	config.Overlay.JpgQuality = 75
	config.Logging.Level = "info"
	return config
}

// NewConfig Read the YAML file at configPath on top of the defaults, then apply
// environment overrides. A .env file next to the binary is loaded when present.
func NewConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		d := yaml.NewDecoder(file)
		if err := d.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("cannot parse config %s: %w", configPath, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Cannot load .env file: ", err)
	}
	applyEnv(config)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv(envPort); v != "" {
		config.Server.Port = v
	}
	if v := os.Getenv(envSqlite); v != "" {
		config.Sqlite.Filename = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		config.Logging.Level = v
	}
}

func (config *Config) validate() error {
	p := config.Panels
	if p.MinWidth <= 0 || p.MinHeight <= 0 {
		return errors.New("panel minimum sizes must be positive")
	}
	if p.MaxWidth < p.MinWidth || p.MaxHeight < p.MinHeight {
		return errors.New("panel maximum sizes must not be below the minimums")
	}
	if p.MaxContentLength <= 0 {
		return errors.New("max_content_length must be positive")
	}
	if config.Sessions.TTL <= 0 || config.Sessions.CleanupInterval <= 0 {
		return errors.New("session ttl and cleanup_interval must be positive")
	}
	if config.Viewport.MaxWidth <= 0 || config.Viewport.MaxHeight <= 0 {
		return errors.New("viewport max_width and max_height must be positive")
	}
	if config.Overlay.MaxSide <= 0 {
		return errors.New("overlay max_side must be positive")
	}
	if _, err := log.ParseLevel(config.Logging.Level); err != nil {
		return err
	}
	return nil
}

// Limits The panel limits described by the config
func (config *Config) Limits() panels.Limits {
	p := config.Panels
	return panels.Limits{
		MinWidth:         p.MinWidth,
		MaxWidth:         p.MaxWidth,
		MinHeight:        p.MinHeight,
		MaxHeight:        p.MaxHeight,
		DefaultSize:      panels.Size{Width: p.DefaultWidth, Height: p.DefaultHeight},
		MaxContentLength: p.MaxContentLength,
	}
}

// CheckViewport Reject viewports without area or beyond the configured maximum
func (config *Config) CheckViewport(vp panels.Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return errors.New("viewport width and height must be positive")
	}
	if vp.Width > config.Viewport.MaxWidth || vp.Height > config.Viewport.MaxHeight {
		return fmt.Errorf("viewport may be at most %dx%d", config.Viewport.MaxWidth, config.Viewport.MaxHeight)
	}
	return nil
}

// LogLevel The configured logrus level
func (config *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(config.Logging.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// ValidateConfigPath Make sure the path is a readable file, not a directory
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a normal file", path)
	}
	return nil
}

// ParseFlags Read the -config and -debug flags
func ParseFlags() (string, bool, error) {
	var configPath string
	var debugMode bool

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.BoolVar(&debugMode, "debug", false, "run in debug mode")
	flag.Parse()

	if configPath == "" {
		return "", debugMode, nil
	}
	if err := ValidateConfigPath(configPath); err != nil {
		return "", false, err
	}
	return configPath, debugMode, nil
}
