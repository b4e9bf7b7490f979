// Package config provides configuration management for the ssg preview
// server using Viper for loading from files, environment variables, and
// command-line flags.
//
// Values are read from .ssg.yml (or the file named by --config or
// SSG_CONFIG_FILE), overridden by SSG_<SECTION>_<OPTION> environment
// variables, and finally by command-line flags bound to the same keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Build       BuildConfig       `mapstructure:"build" yaml:"build"`
	Assets      AssetsConfig      `mapstructure:"assets" yaml:"assets"`
	Watch       WatchConfig       `mapstructure:"watch" yaml:"watch"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port" yaml:"port"`
	Host string `mapstructure:"host" yaml:"host"`
}

type BuildConfig struct {
	// Command is the site generator invocation, split on whitespace.
	Command       string `mapstructure:"command" yaml:"command"`
	OutputDir     string `mapstructure:"output" yaml:"output"`
	IncludeDrafts bool   `mapstructure:"drafts" yaml:"drafts"`
	OutputFlag    string `mapstructure:"output_flag" yaml:"output_flag"`
	DraftsFlag    string `mapstructure:"drafts_flag" yaml:"drafts_flag"`

	// AtomicSwap builds into a staging directory and renames it into place.
	AtomicSwap bool `mapstructure:"atomic_swap" yaml:"atomic_swap"`
	// RebuildOnDropped runs one follow-up build when triggers arrived
	// while a build was in flight.
	RebuildOnDropped bool `mapstructure:"rebuild_on_dropped" yaml:"rebuild_on_dropped"`
}

type AssetsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Command string `mapstructure:"command" yaml:"command"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Roots    []WatchRoot   `mapstructure:"roots" yaml:"roots"`
}

// WatchRoot is a directory or single file to observe, relative to the
// working directory unless absolute.
type WatchRoot struct {
	Path      string `mapstructure:"path" yaml:"path"`
	Pattern   string `mapstructure:"pattern" yaml:"pattern"`
	Recursive bool   `mapstructure:"recursive" yaml:"recursive"`
}

type DevelopmentConfig struct {
	ErrorOverlay     bool  `mapstructure:"error_overlay" yaml:"error_overlay"`
	MaxRewriteSize   int64 `mapstructure:"max_rewrite_size" yaml:"max_rewrite_size"`
	HTMLCacheEntries int   `mapstructure:"html_cache_entries" yaml:"html_cache_entries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

const (
	DefaultPort           = 5000
	DefaultHost           = "0.0.0.0"
	DefaultOutputDir      = "output"
	DefaultBuildCommand   = "dotnet-ssg build"
	DefaultAssetsCommand  = "npm run css:build"
	DefaultDebounce       = 300 * time.Millisecond
	DefaultMaxRewriteSize = 5 << 20
)

// DefaultWatchRoots returns the roots observed when none are configured.
func DefaultWatchRoots() []WatchRoot {
	return []WatchRoot{
		{Path: "content", Pattern: "*.md", Recursive: true},
		{Path: "content", Pattern: "*.html", Recursive: true},
		{Path: "content/static", Pattern: "*", Recursive: true},
		{Path: "config.json"},
		{Path: "components", Pattern: "*.{razor,cs,templ,html}", Recursive: true},
		{Path: "content/static/css/input.css"},
	}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultHost)

	v.SetDefault("build.command", DefaultBuildCommand)
	v.SetDefault("build.output", DefaultOutputDir)
	v.SetDefault("build.drafts", false)
	v.SetDefault("build.output_flag", "--output")
	v.SetDefault("build.drafts_flag", "--drafts")
	v.SetDefault("build.atomic_swap", false)
	v.SetDefault("build.rebuild_on_dropped", false)

	v.SetDefault("assets.enabled", true)
	v.SetDefault("assets.command", DefaultAssetsCommand)

	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", DefaultDebounce)

	v.SetDefault("development.error_overlay", true)
	v.SetDefault("development.max_rewrite_size", DefaultMaxRewriteSize)
	v.SetDefault("development.html_cache_entries", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "SSG"

var envKeyReplacer = strings.NewReplacer(".", "_")

// Init points v at the configuration file and enables SSG_* environment
// overrides. The file is, in order of priority: cfgFile, $SSG_CONFIG_FILE,
// or .ssg.yml in the current directory. A missing default file is not an
// error; a missing explicit file is. The path of the file read, if any, is
// returned.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	explicit := true
	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case os.Getenv("SSG_CONFIG_FILE") != "":
		v.SetConfigFile(os.Getenv("SSG_CONFIG_FILE"))
	default:
		explicit = false
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".ssg")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config file: %w", err)
	}

	return v.ConfigFileUsed(), nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Decode unmarshals the configuration held by v and fills in defaults
// without validating it.
func Decode(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	if len(config.Watch.Roots) == 0 {
		config.Watch.Roots = DefaultWatchRoots()
	}

	return &config, nil
}

// MarshalYAML renders the debounce window as a duration string so that
// `ssg config show` output can be read back as configuration.
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Enabled  bool        `yaml:"enabled"`
		Debounce string      `yaml:"debounce"`
		Roots    []WatchRoot `yaml:"roots"`
	}{
		Enabled:  w.Enabled,
		Debounce: w.Debounce.String(),
		Roots:    w.Roots,
	}, nil
}
