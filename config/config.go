package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string   `yaml:"port"`
	DataDir       string   `yaml:"data_dir"`
	StoreDriver   string   `yaml:"store_driver"` // file or sqlite
	SQLitePath    string   `yaml:"sqlite_path"`
	PublicBaseURL string   `yaml:"public_base_url"`
	AuthSecret    string   `yaml:"auth_secret"`
	AdminEmails   []string `yaml:"admin_emails"`
	CORSOrigins   []string `yaml:"cors_origins"`

	Epay  EpayConfig  `yaml:"epay"`
	Redis RedisConfig `yaml:"redis"`
	SMTP  SMTPConfig  `yaml:"smtp"`
	Nano  NanoConfig  `yaml:"nano"`

	// Log configuration
	LogLevel      string `yaml:"log_level"`
	LogFilename   string `yaml:"log_filename"`
	LogMaxSize    int    `yaml:"log_max_size"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAge     int    `yaml:"log_max_age"`
	LogCompress   bool   `yaml:"log_compress"`
}

type EpayConfig struct {
	BaseURL    string `yaml:"base_url"`
	PID        string `yaml:"pid"`
	MD5Key     string `yaml:"md5_key"`
	APIPath    string `yaml:"api_path"`
	Act        string `yaml:"act"`
	WechatType string `yaml:"wechat_type"`
	AlipayType string `yaml:"alipay_type"`
	SignStyle  string `yaml:"sign_style"` // plain or key
}

// Enabled reports whether any epay setting was provided.
func (e EpayConfig) Enabled() bool {
	return e.BaseURL != "" || e.PID != "" || e.MD5Key != ""
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SMTPConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	From   string `yaml:"from"`
	Secure bool   `yaml:"secure"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.User != "" && s.Pass != "" && s.From != ""
}

type NanoConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	ResponseFormat string `yaml:"response_format"`
	AspectRatio    string `yaml:"aspect_ratio"`
	ImageSize      string `yaml:"image_size"`
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

// LoadConfig reads .env (if present), then the optional YAML file named by
// CONFIG_FILE, then environment variables, each layer overriding the last.
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		// Ignore error if .env file is not found
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:        "8080",
		DataDir:     "data",
		StoreDriver: "file",
		Epay: EpayConfig{
			APIPath:    "/api.php",
			Act:        "pay",
			WechatType: "wxpay",
			AlipayType: "alipay",
			SignStyle:  "plain",
		},
		SMTP: SMTPConfig{Port: 465},
		Nano: NanoConfig{
			Model:          "nano-banana",
			ResponseFormat: "url",
			AspectRatio:    "1:1",
		},
		LogLevel:      "INFO",
		LogFilename:   "logs/app.log",
		LogMaxSize:    100,
		LogMaxBackups: 3,
		LogMaxAge:     28,
		LogCompress:   true,
	}
}

func applyEnv(c *Config) {
	c.Port = getEnv("PORT", c.Port)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.StoreDriver = getEnv("STORE_DRIVER", c.StoreDriver)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", c.PublicBaseURL), "/")
	c.AuthSecret = getEnv("AUTH_SECRET", c.AuthSecret)
	if raw := getEnv("ADMIN_EMAILS", getEnv("ADMIN_EMAIL", "")); raw != "" {
		c.AdminEmails = splitList(raw)
	}
	if raw := getEnv("CORS_ORIGINS", ""); raw != "" {
		c.CORSOrigins = splitList(raw)
	}

	c.Epay.BaseURL = strings.TrimRight(getEnv("EPAY_BASE_URL", c.Epay.BaseURL), "/")
	c.Epay.PID = getEnv("EPAY_PID", c.Epay.PID)
	c.Epay.MD5Key = getEnv("EPAY_MD5_KEY", c.Epay.MD5Key)
	c.Epay.APIPath = getEnv("EPAY_API_PATH", c.Epay.APIPath)
	c.Epay.Act = getEnv("EPAY_ACT", c.Epay.Act)
	c.Epay.WechatType = getEnv("EPAY_WECHAT_TYPE", c.Epay.WechatType)
	c.Epay.AlipayType = getEnv("EPAY_ALIPAY_TYPE", c.Epay.AlipayType)
	c.Epay.SignStyle = getEnv("EPAY_SIGN_STYLE", c.Epay.SignStyle)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getEnvAsInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.User = getEnv("SMTP_USER", c.SMTP.User)
	c.SMTP.Pass = getEnv("SMTP_PASS", c.SMTP.Pass)
	c.SMTP.From = getEnv("SMTP_FROM", c.SMTP.From)
	c.SMTP.Secure = getEnvAsBool("SMTP_SECURE", c.SMTP.Secure)

	c.Nano.APIURL = strings.TrimRight(getEnv("NANO_API_URL", c.Nano.APIURL), "/")
	c.Nano.APIKey = getEnv("NANO_API_KEY", c.Nano.APIKey)
	c.Nano.Model = getEnv("NANO_MODEL", c.Nano.Model)
	c.Nano.ResponseFormat = getEnv("NANO_RESPONSE_FORMAT", c.Nano.ResponseFormat)
	c.Nano.AspectRatio = getEnv("NANO_ASPECT_RATIO", c.Nano.AspectRatio)
	c.Nano.ImageSize = getEnv("NANO_IMAGE_SIZE", c.Nano.ImageSize)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFilename = getEnv("LOG_FILENAME", c.LogFilename)
	c.LogMaxSize = getEnvAsInt("LOG_MAX_SIZE", c.LogMaxSize)
	c.LogMaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", c.LogMaxBackups)
	c.LogMaxAge = getEnvAsInt("LOG_MAX_AGE", c.LogMaxAge)
	c.LogCompress = getEnvAsBool("LOG_COMPRESS", c.LogCompress)
}

// Validate rejects configurations that would only fail later at first use.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case "file":
		if c.DataDir == "" {
			errs = append(errs, errors.New("DATA_DIR is required for the file store"))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.Epay.Enabled() {
		if c.Epay.BaseURL == "" || c.Epay.PID == "" || c.Epay.MD5Key == "" {
			errs = append(errs, errors.New("EPAY_BASE_URL, EPAY_PID and EPAY_MD5_KEY must be set together"))
		}
		if c.PublicBaseURL == "" {
			errs = append(errs, errors.New("PUBLIC_BASE_URL is required when epay is configured"))
		}
		if c.Epay.SignStyle != "plain" && c.Epay.SignStyle != "key" {
			errs = append(errs, fmt.Errorf("EPAY_SIGN_STYLE must be plain or key, got %q", c.Epay.SignStyle))
		}
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
