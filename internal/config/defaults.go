package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		OSS: OSSConfig{
			Verbose: true,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Host:      "127.0.0.1",
			Port:      8765,
		},
		Audit: AuditConfig{
			Enabled:       false,
			DBPath:        "~/.larkmcp/audit.db",
			RetentionDays: 30,
		},
		Events: EventsConfig{
			Enabled:    false,
			Exchange:   "larkmcp.events",
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
