package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                   string        `yaml:"port"`
	CartsURL               string        `yaml:"carts_url"`
	FetchTimeout           time.Duration `yaml:"fetch_timeout"`
	RevalidateWindow       time.Duration `yaml:"revalidate_window"`
	ResetPageOnQueryChange bool          `yaml:"reset_page_on_query_change"`
	ViewStateSecret        string        `yaml:"view_state_secret"`
	LogLevel               string        `yaml:"log_level"`
	LogDevelopment         bool          `yaml:"log_development"`
	CORSAllowOrigins       []string      `yaml:"cors_allow_origins"`

	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBName     string `yaml:"db_name"`

	RabbitMQURL     string `yaml:"rabbitmq_url"`
	CartsExchange   string `yaml:"carts_exchange"`
	RevalidateQueue string `yaml:"revalidate_queue"`
	DeadLetterQueue string `yaml:"dead_letter_queue"`
	DelayExchange   string `yaml:"delay_exchange"`
	MaxPriority     int    `yaml:"max_priority"`
}

func defaults() *Config {
	return &Config{
		Port:             "8080",
		CartsURL:         "https://dummyjson.com/carts",
		FetchTimeout:     10 * time.Second,
		RevalidateWindow: 60 * time.Second,
		ViewStateSecret:  "cart-service-dev-secret",
		LogLevel:         "info",
		CORSAllowOrigins: []string{"*"},
		DBUser:           "root",
		DBPort:           "3306",
		DBName:           "carts",
		CartsExchange:    "carts_exchange",
		RevalidateQueue:  "carts_revalidate_queue",
		DeadLetterQueue:  "carts_dead_letter_queue",
		DelayExchange:    "carts_delay_exchange",
		MaxPriority:      10, // 优先级队列最大优先级
	}
}

// LoadConfig 读取配置：默认值 -> CONFIG_FILE (yaml) -> 环境变量
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.CartsURL = getEnv("CARTS_URL", cfg.CartsURL)
	cfg.FetchTimeout = getDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	if secs := getEnv("REVALIDATE_SECONDS", ""); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			cfg.RevalidateWindow = time.Duration(n) * time.Second
		}
	}
	cfg.ResetPageOnQueryChange = getBool("RESET_PAGE_ON_QUERY_CHANGE", cfg.ResetPageOnQueryChange)
	cfg.ViewStateSecret = getEnvFromFile("VIEW_STATE_SECRET_FILE", "VIEW_STATE_SECRET", cfg.ViewStateSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogDevelopment = getBool("LOG_DEVELOPMENT", cfg.LogDevelopment)
	if origins := getEnv("CORS_ALLOW_ORIGINS", ""); origins != "" {
		cfg.CORSAllowOrigins = splitCSV(origins)
	}

	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnvFromFile("DB_PASSWORD_FILE", "DB_PASSWORD", cfg.DBPassword)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)

	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.CartsExchange = getEnv("CARTS_EXCHANGE", cfg.CartsExchange)
	cfg.RevalidateQueue = getEnv("REVALIDATE_QUEUE", cfg.RevalidateQueue)
	cfg.DeadLetterQueue = getEnv("DEAD_LETTER_QUEUE", cfg.DeadLetterQueue)
	cfg.DelayExchange = getEnv("DELAY_EXCHANGE", cfg.DelayExchange)

	return cfg, nil
}

// DatabaseEnabled 未配置 DB_HOST 时快照只保存在内存中
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

func (c *Config) MessagingEnabled() bool {
	return c.RabbitMQURL != ""
}

func loadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(content, cfg)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}

func getBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
