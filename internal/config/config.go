package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Models     ModelsConfig     `mapstructure:"models"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token            string        `mapstructure:"token"`
	GroupID          int64         `mapstructure:"group_id"`
	GroupPeerOffset  int64         `mapstructure:"group_peer_offset"`
	LongPollWait     int           `mapstructure:"long_poll_wait"`
	SendInterval     time.Duration `mapstructure:"send_interval"`
	MaxMessageLength int           `mapstructure:"max_message_length"`
}

type ModelsConfig struct {
	Endpoints       []ModelEndpoint `mapstructure:"endpoints"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout"`
	Temperature     float64         `mapstructure:"temperature"`
	MaxTokens       int             `mapstructure:"max_tokens"`
	MinQuestionLen  int             `mapstructure:"min_question_len"`
	SmallTalkMinLen int             `mapstructure:"small_talk_min_len"`
}

type ModelEndpoint struct {
	Name    string   `mapstructure:"name"`
	BaseURL string   `mapstructure:"base_url"`
	APIKey  string   `mapstructure:"api_key"`
	Models  []string `mapstructure:"models"`
}

type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxSize         int           `mapstructure:"max_size"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	Retention   time.Duration `mapstructure:"retention"`
}

type ModerationConfig struct {
	Inappropriate []string `mapstructure:"inappropriate"`
	HateSpeech    []string `mapstructure:"hate_speech"`
	Spam          []string `mapstructure:"spam"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	Directory       string   `mapstructure:"directory"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.SetEnvPrefix("")
	viper.BindEnv("bot.token", "VK_TOKEN")
	viper.BindEnv("bot.group_id", "VK_GROUP_ID")
	viper.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "REDIS_DB")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := viper.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := viper.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	// API keys in the config file may reference environment variables.
	for i, ep := range config.Models.Endpoints {
		if strings.HasPrefix(ep.APIKey, "${") && strings.HasSuffix(ep.APIKey, "}") {
			config.Models.Endpoints[i].APIKey = os.Getenv(strings.TrimSuffix(strings.TrimPrefix(ep.APIKey, "${"), "}"))
		}
	}

	// Load additional AI endpoints from environment variables. The endpoint
	// order (config file first, then CUSTOM_ENDPOINTS) is the fallback order.
	if customEndpoints := os.Getenv("CUSTOM_ENDPOINTS"); customEndpoints != "" {
		for _, endpointName := range strings.Split(customEndpoints, ",") {
			endpointName = strings.TrimSpace(endpointName)
			if endpointName == "" {
				continue
			}

			envPrefix := strings.ToUpper(strings.ReplaceAll(endpointName, "-", "_"))

			baseURL := os.Getenv(envPrefix + "_BASE_URL")
			apiKey := os.Getenv(envPrefix + "_API_KEY")
			modelsStr := os.Getenv(envPrefix + "_MODELS")

			if baseURL == "" || apiKey == "" {
				continue
			}

			endpoint := ModelEndpoint{
				Name:    endpointName,
				BaseURL: baseURL,
				APIKey:  apiKey,
			}

			for _, modelID := range strings.Split(modelsStr, ",") {
				modelID = strings.TrimSpace(modelID)
				if modelID != "" {
					endpoint.Models = append(endpoint.Models, modelID)
				}
			}

			config.Models.Endpoints = append(config.Models.Endpoints, endpoint)
		}
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.GroupPeerOffset == 0 {
		cfg.Bot.GroupPeerOffset = 2000000000
	}
	if cfg.Bot.LongPollWait == 0 {
		cfg.Bot.LongPollWait = 25
	}
	if cfg.Bot.SendInterval == 0 {
		cfg.Bot.SendInterval = 3 * time.Second
	}
	if cfg.Bot.MaxMessageLength == 0 {
		cfg.Bot.MaxMessageLength = 4000
	}
	if cfg.Models.RequestTimeout == 0 {
		cfg.Models.RequestTimeout = 30 * time.Second
	}
	if cfg.Models.Temperature == 0 {
		cfg.Models.Temperature = 0.7
	}
	if cfg.Models.MaxTokens == 0 {
		cfg.Models.MaxTokens = 1000
	}
	if cfg.Models.MinQuestionLen == 0 {
		cfg.Models.MinQuestionLen = 3
	}
	if cfg.Models.SmallTalkMinLen == 0 {
		cfg.Models.SmallTalkMinLen = 12
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = 10 * time.Minute
	}
	if cfg.RateLimit.MinInterval == 0 {
		cfg.RateLimit.MinInterval = 3 * time.Second
	}
	if cfg.RateLimit.Retention == 0 {
		cfg.RateLimit.Retention = time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.I18n.DefaultLanguage == "" {
		cfg.I18n.DefaultLanguage = "ru"
	}
	if len(cfg.I18n.Languages) == 0 {
		cfg.I18n.Languages = []string{"ru", "en"}
	}
	if cfg.I18n.Directory == "" {
		cfg.I18n.Directory = "configs/i18n"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if cfg.Bot.GroupID == 0 {
		return fmt.Errorf("group id is required")
	}
	if len(cfg.Models.Endpoints) == 0 {
		return fmt.Errorf("at least one model endpoint is required")
	}
	for _, ep := range cfg.Models.Endpoints {
		if ep.BaseURL == "" || len(ep.Models) == 0 {
			return fmt.Errorf("endpoint %q needs a base_url and at least one model", ep.Name)
		}
	}
	return nil
}
