package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application. It is loaded once in
// main and passed down explicitly.
type Config struct {
	Server   ServerConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	RabbitMQ RabbitMQConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	Host           string        `mapstructure:"host" validate:"required"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Environment    string        `mapstructure:"environment" validate:"oneof=development staging production test"`
	LogLevel       string        `mapstructure:"log_level"`
	CORSOrigins    string        `mapstructure:"cors_origins"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" validate:"min=1"`
}

// GeminiConfig configures the model service client and the retry policy
// around it.
type GeminiConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model" validate:"oneof=gemini-3-flash-preview gemini-2.5-flash gemini-2.5-flash-lite"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls" validate:"min=1"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"min=1"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
}

// StorageConfig holds the location of per-request scratch directories.
// An empty TempDir means the OS default.
type StorageConfig struct {
	TempDir string `mapstructure:"temp_dir"`
}

// RabbitMQConfig holds RabbitMQ connection configuration. Extraction
// events are disabled when URL is empty.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// legacyEnv maps config keys to the flat variable names older deployments
// export. The MEDOCR_ prefixed form always wins.
var legacyEnv = map[string]string{
	"gemini.api_key":      "GEMINI_API_KEY",
	"gemini.model":        "GEMINI_MODEL",
	"server.host":         "HOST",
	"server.port":         "PORT",
	"server.cors_origins": "CORS_ORIGINS",
}

var validate = validator.New()

// CORSOriginList splits the comma separated origin list, dropping blanks.
func (c *ServerConfig) CORSOriginList() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the loaded configuration. The API key is only mandatory
// in staging and production; locally a missing key surfaces per request.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid %s: failed %q (%v)", e.Namespace(), e.Tag(), e.Value())
		}
		return err
	}

	origins := c.Server.CORSOriginList()
	if len(origins) == 0 {
		return errors.New("at least one CORS origin is required")
	}
	for _, o := range origins {
		if err := validate.Var(o, "http_url"); err != nil {
			return fmt.Errorf("CORS origin %q must be an http(s) URL", o)
		}
	}

	if c.IsProductionLike() {
		if c.Gemini.APIKey == "" {
			return errors.New("MEDOCR_GEMINI_API_KEY (or GEMINI_API_KEY) must be set in " + c.Server.Environment)
		}
	}
	return nil
}

// Load loads configuration from environment and config files.
// This function applies defaults and does not validate.
func Load(serviceName string) (*Config, error) {
	return loadConfig(serviceName)
}

// LoadWithValidation loads configuration and validates it for the current environment.
// Use this function in main() for fail-fast behavior.
func LoadWithValidation(serviceName string) (*Config, error) {
	cfg, err := loadConfig(serviceName)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// loadConfig is the internal configuration loader
func loadConfig(serviceName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("MEDOCR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "MEDOCR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Read from config file if exists
	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/medocr")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.Environment = strings.ToLower(cfg.Server.Environment)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	// Extractions can take minutes; streaming responses need a long write window.
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_origins", "http://localhost:3000")
	v.SetDefault("server.max_upload_bytes", 50<<20)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.poll_interval", time.Second)
	v.SetDefault("gemini.max_polls", 120)
	v.SetDefault("gemini.max_attempts", 3)
	v.SetDefault("gemini.base_delay", 2*time.Second)

	v.SetDefault("storage.temp_dir", "")

	// RabbitMQ defaults
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "docprocessing.events")
}
