package config

import "time"

// Config holds the complete adnotify configuration.
type Config struct {
	Directory DirectoryConfig `yaml:"directory"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LogConfig       `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DirectoryConfig describes how to reach and bind to the domain controller.
type DirectoryConfig struct {
	Address            string        `yaml:"address"`
	TLS                bool          `yaml:"tls"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
	BindDN             string        `yaml:"bindDN"`
	Password           string        `yaml:"password"`
	DialTimeout        time.Duration `yaml:"dialTimeout"`
	// RequestTimeout bounds bind and one-shot searches. Notification
	// searches never time out.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// WatchConfig describes the object to watch.
type WatchConfig struct {
	Target     string   `yaml:"target"`
	Attributes []string `yaml:"attributes"`
	// Scope is base, one or sub.
	Scope string `yaml:"scope"`
	// BufferSize is the per-subscriber event buffer.
	BufferSize int `yaml:"bufferSize"`
	// ZoneFormat prints A records as zone file lines.
	ZoneFormat bool `yaml:"zoneFormat"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig holds the Prometheus endpoint configuration. An empty
// Address disables the endpoint.
type MetricsConfig struct {
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}
