package app

// Config carries the process-level flags that control bootstrap, separate
// from the layered config.Config loaded from file/environment.
type Config struct {
	Debug      bool
	Silent     bool
	ConfigPath string
}

// NewConfig constructs a Config from CLI flags.
func NewConfig(debug, silent bool, configPath string) *Config {
	return &Config{Debug: debug, Silent: silent, ConfigPath: configPath}
}
