package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/gobwas/glob"

	ssgerrors "github.com/conneroisu/ssg/internal/errors"
	"github.com/conneroisu/ssg/internal/logging"
	"github.com/conneroisu/ssg/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("      %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("      %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails validates config relative to workDir and returns
// every error and warning found.
func ValidateConfigWithDetails(config *Config, workDir string) *ValidationResult {
	result := &ValidationResult{}

	validateServerConfig(&config.Server, result)
	validateBuildConfig(&config.Build, workDir, result)
	validateAssetsConfig(&config.Assets, result)
	validateWatchConfig(&config.Watch, result)
	validateDevelopmentConfig(&config.Development, result)
	validateLoggingConfig(&config.Logging, result)

	result.Valid = !result.HasErrors()

	return result
}

// validateConfig reports the first validation error as a ConfigError.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config, ".")
	if !result.HasErrors() {
		return nil
	}

	first := result.Errors[0]

	return ssgerrors.NewConfigError(first.Field, first.Message)
}

func validateServerConfig(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 lets the system assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port,
			"port below 1024 requires elevated privileges",
			"Use the default port 5000")
	}

	if config.Host == "" {
		result.addError("server.host", config.Host, "host cannot be empty",
			"Use 0.0.0.0 to listen on every interface or localhost for local access only")
	} else if config.Host != "localhost" && net.ParseIP(config.Host) == nil && strings.ContainsAny(config.Host, " /\\;&|") {
		result.addError("server.host", config.Host, "host contains invalid characters")
	}
}

func validateBuildConfig(config *BuildConfig, workDir string, result *ValidationResult) {
	argv := strings.Fields(config.Command)
	if err := validation.ValidateCommand(argv); err != nil {
		result.addError("build.command", config.Command, err.Error(),
			fmt.Sprintf("Example: %s", DefaultBuildCommand))
	}

	if err := validation.ValidateOutputDir(workDir, config.OutputDir); err != nil {
		result.addError("build.output", config.OutputDir, err.Error(),
			"The output directory is deleted and regenerated on every build",
			fmt.Sprintf("Use a dedicated directory such as %q", DefaultOutputDir))
	}

	if config.OutputFlag == "" {
		result.addError("build.output_flag", config.OutputFlag, "output flag cannot be empty")
	}

	if config.IncludeDrafts && config.DraftsFlag == "" {
		result.addError("build.drafts_flag", config.DraftsFlag, "drafts flag cannot be empty when drafts are included")
	}
}

func validateAssetsConfig(config *AssetsConfig, result *ValidationResult) {
	if !config.Enabled {
		return
	}

	if err := validation.ValidateCommand(strings.Fields(config.Command)); err != nil {
		result.addError("assets.command", config.Command, err.Error(),
			"Set assets.enabled to false to skip the asset step")
	}
}

func validateWatchConfig(config *WatchConfig, result *ValidationResult) {
	if config.Debounce <= 0 {
		result.addError("watch.debounce", config.Debounce, "debounce window must be positive",
			fmt.Sprintf("The default is %s", DefaultDebounce))
	}

	for i, root := range config.Roots {
		field := fmt.Sprintf("watch.roots[%d]", i)
		if strings.TrimSpace(root.Path) == "" {
			result.addError(field+".path", root.Path, "path cannot be empty")
		}
		if root.Pattern != "" {
			if _, err := glob.Compile(root.Pattern); err != nil {
				result.addError(field+".pattern", root.Pattern, fmt.Sprintf("invalid pattern: %v", err))
			}
		}
	}
}

func validateDevelopmentConfig(config *DevelopmentConfig, result *ValidationResult) {
	if config.MaxRewriteSize <= 0 {
		result.addError("development.max_rewrite_size", config.MaxRewriteSize, "rewrite size threshold must be positive")
	}

	if config.HTMLCacheEntries < 0 {
		result.addError("development.html_cache_entries", config.HTMLCacheEntries, "cache size cannot be negative",
			"Use 0 to disable the HTML cache")
	}
}

func validateLoggingConfig(config *LoggingConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("logging.level", config.Level, err.Error(), "Use one of: debug, info, warn, error")
	}

	switch config.Format {
	case "", "text", "json":
	default:
		result.addError("logging.format", config.Format, fmt.Sprintf("unknown log format %q", config.Format),
			"Use text or json")
	}
}
