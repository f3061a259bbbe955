package config

import "time"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Directory: DirectoryConfig{
			DialTimeout:    10 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Watch: WatchConfig{
			Attributes: []string{"dnsRecord"},
			Scope:      "base",
			BufferSize: 64,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// DefaultPort returns the LDAP port for the TLS setting.
func DefaultPort(tls bool) string {
	if tls {
		return "636"
	}
	return "389"
}
