package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/KilimcininKorOglu/adnotify/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidScopes lists the accepted watch scopes.
var ValidScopes = []string{"base", "one", "sub"}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error
	errs = append(errs, validateDirectoryConfig(&config.Directory)...)
	errs = append(errs, validateWatchConfig(&config.Watch)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)
	errs = append(errs, validateMetricsConfig(&config.Metrics)...)
	return errs
}

// Validate returns all validation errors combined, or nil.
func (c *Config) Validate() error {
	var result *multierror.Error
	for _, err := range ValidateConfig(c) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func validateDirectoryConfig(config *DirectoryConfig) []error {
	var errs []error

	if config.Address == "" {
		errs = append(errs, ValidationError{Field: "directory.address", Message: "address is required"})
	} else if err := validateAddress(config.Address); err != nil {
		errs = append(errs, ValidationError{Field: "directory.address", Message: err.Error()})
	}

	if config.Password != "" && config.BindDN == "" {
		errs = append(errs, ValidationError{
			Field:   "directory.bindDN",
			Message: "bind DN is required when a password is set",
		})
	}
	if config.DialTimeout < 0 {
		errs = append(errs, ValidationError{Field: "directory.dialTimeout", Message: "must not be negative"})
	}
	if config.RequestTimeout < 0 {
		errs = append(errs, ValidationError{Field: "directory.requestTimeout", Message: "must not be negative"})
	}
	return errs
}

func validateWatchConfig(config *WatchConfig) []error {
	var errs []error

	if config.Target == "" {
		errs = append(errs, ValidationError{Field: "watch.target", Message: "target DN is required"})
	} else if !strings.Contains(config.Target, "=") {
		errs = append(errs, ValidationError{
			Field:   "watch.target",
			Message: fmt.Sprintf("%q is not a distinguished name", config.Target),
		})
	}

	if len(config.Attributes) == 0 {
		errs = append(errs, ValidationError{Field: "watch.attributes", Message: "at least one attribute is required"})
	}
	for i, attr := range config.Attributes {
		if strings.TrimSpace(attr) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("watch.attributes[%d]", i),
				Message: "attribute name is empty",
			})
		}
	}

	if !validScope(config.Scope) {
		errs = append(errs, ValidationError{
			Field:   "watch.scope",
			Message: fmt.Sprintf("invalid scope %q, must be one of %s", config.Scope, strings.Join(ValidScopes, ", ")),
		})
	}
	if config.BufferSize < 1 {
		errs = append(errs, ValidationError{Field: "watch.bufferSize", Message: "must be at least 1"})
	}
	return errs
}

func validScope(s string) bool {
	for _, v := range ValidScopes {
		if s == v {
			return true
		}
	}
	return false
}

func validateLogConfig(config *LogConfig) []error {
	var errs []error

	if !logging.ValidLevel(config.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level %q, must be one of: debug, info, warn, error", config.Level),
		})
	}
	switch strings.ToLower(config.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format %q, must be text or json", config.Format),
		})
	}
	return errs
}

func validateMetricsConfig(config *MetricsConfig) []error {
	var errs []error

	if config.Address == "" {
		return nil
	}
	if err := validateAddress(config.Address); err != nil {
		errs = append(errs, ValidationError{Field: "metrics.address", Message: err.Error()})
	}
	if !strings.HasPrefix(config.Path, "/") {
		errs = append(errs, ValidationError{Field: "metrics.path", Message: "path must start with /"})
	}
	return errs
}

// validateAddress checks that an address is host:port with a numeric port.
func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}
	if port == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range port {
		if c < '0' || c > '9' {
			return fmt.Errorf("invalid port %q", port)
		}
	}
	return nil
}
