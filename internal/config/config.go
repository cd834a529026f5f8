package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port       int `mapstructure:"port"`       // webhook listener
		HealthPort int `mapstructure:"healthPort"` // health/readiness/metrics
	} `mapstructure:"server"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	NATS struct {
		URL     string `mapstructure:"url"`     // empty disables the lifecycle publisher
		Stream  string `mapstructure:"stream"`  // JetStream stream for lead lifecycle events
		Subject string `mapstructure:"subject"` // base subject, e.g. v1.leads
	} `mapstructure:"nats"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	WorkerPools struct {
		Outcome OutcomeWorkerPoolConfig `mapstructure:"outcome"`
	} `mapstructure:"workerPools"`
}

// ProvidersConfig holds webhook authentication settings per provider
type ProvidersConfig struct {
	VapiSecret        string        `mapstructure:"vapiSecret"`        // shared secret for x-vapi-secret
	TwilioAuthToken   string        `mapstructure:"twilioAuthToken"`   // X-Twilio-Signature validation
	OpenAISigningKey  string        `mapstructure:"openaiSigningKey"`  // whsec_... standard-webhooks key
	SignatureSkew     time.Duration `mapstructure:"signatureSkew"`     // tolerated webhook-timestamp drift
	PublicWebhookBase string        `mapstructure:"publicWebhookBase"` // external URL base used in Twilio signature checks
}

// OutcomeWorkerPoolConfig holds configuration for the audit/outcome worker pool
type OutcomeWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.healthPort", 8081)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("nats.stream", "lead_events")
	v.SetDefault("nats.subject", "v1.leads")
	v.SetDefault("providers.signatureSkew", 5*time.Minute)

	// Outcome worker pool defaults
	v.SetDefault("workerPools.outcome.poolSize", 4)
	v.SetDefault("workerPools.outcome.queueSize", 4096)
	v.SetDefault("workerPools.outcome.expiryTime", time.Minute)

	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/caselane-intake-processor")

	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if secret := os.Getenv("VAPI_SECRET"); secret != "" {
		v.Set("providers.vapiSecret", secret)
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		v.Set("providers.twilioAuthToken", token)
	}
	if key := os.Getenv("OPENAI_WEBHOOK_SIGNING_KEY"); key != "" {
		v.Set("providers.openaiSigningKey", key)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
