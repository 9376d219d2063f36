package domain

// ConfigManager is what the commands need from the configuration layer
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	ConfigFileUsed() string
	Reload() error
	Validate() error
}
