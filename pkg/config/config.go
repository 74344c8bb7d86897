package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Redis       RedisConfig     `mapstructure:"redis"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	AI          AIConfig        `mapstructure:"ai"`

	// Comma-separated in ALLOWED_ORIGINS, split at load time.
	AllowedOrigins []string `mapstructure:"-"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type RouteQuota struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

type RateLimitConfig struct {
	// "memory", "redis", or "" to select by environment.
	Backend       string                 `mapstructure:"backend"`
	MaxEntries    int                    `mapstructure:"max_entries"`
	SweepInterval string                 `mapstructure:"sweep_interval"`
	Routes        map[string]interface{} `mapstructure:"routes"`
}

type AIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("⚠️ Warning: Could not load main config file: %v", err)
	}

	setDefaultValues()

	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvAliases()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file %s.yaml not found, using only environment variables", fileName)
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func bindEnvAliases() {
	_ = viper.BindEnv("environment", "ENVIRONMENT")
	_ = viper.BindEnv("redis.url", "REDIS_URL", "KV_URL")
	_ = viper.BindEnv("allowed_origins", "ALLOWED_ORIGINS")
	_ = viper.BindEnv("ai.api_key", "AI_API_KEY")
}

func setDefaultValues() {
	if globalConfig.Environment == "" {
		globalConfig.Environment = viper.GetString("environment")
	}
	if globalConfig.Environment == "" {
		globalConfig.Environment = "development"
	}
	if globalConfig.Server.Port == 0 {
		globalConfig.Server.Port = 8080
	}
	if globalConfig.Server.MetricsPort == 0 {
		globalConfig.Server.MetricsPort = 9090
	}
	if globalConfig.Redis.URL == "" {
		globalConfig.Redis.URL = viper.GetString("redis.url")
	}
	globalConfig.AllowedOrigins = splitOrigins(viper.GetString("allowed_origins"))
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// RouteQuotas decodes the configured per-route quotas, falling back to the
// product defaults for the two AI routes when unconfigured.
func (c *Config) RouteQuotas() (map[string]RouteQuota, error) {
	quotas := map[string]RouteQuota{
		"ai_facts":       {Limit: 10, Window: "60m"},
		"ai_suggestions": {Limit: 5, Window: "60m"},
	}

	for route, raw := range c.RateLimit.Routes {
		var quota RouteQuota
		if err := mapstructure.Decode(raw, &quota); err != nil {
			return nil, fmt.Errorf("invalid quota for route %s: %w", route, err)
		}
		if quota.Limit <= 0 {
			return nil, fmt.Errorf("route %s requires a positive limit", route)
		}
		if _, err := time.ParseDuration(quota.Window); err != nil {
			return nil, fmt.Errorf("invalid window for route %s: %w", route, err)
		}
		quotas[route] = quota
	}
	return quotas, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func GetConfig() *Config {
	return &globalConfig
}
