package config

// Config holds folio configuration.
// Loaded from ./config.yaml or ~/.folio/config.yaml.
type Config struct {
	// ServerURL is the base URL of the OCR service.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`

	// UploadTimeoutSeconds bounds upload and metadata requests. The
	// event stream itself is never timed out.
	UploadTimeoutSeconds int `mapstructure:"upload_timeout_seconds" yaml:"upload_timeout_seconds"`

	// ValidateLocal enables client-side page counting to cross-check
	// the count reported by the service.
	ValidateLocal bool `mapstructure:"validate_local" yaml:"validate_local"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:            "http://localhost:5000",
		UploadTimeoutSeconds: 600,
		ValidateLocal:        true,
	}
}
