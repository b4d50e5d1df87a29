package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DatabaseURL string

	OCREngine    string
	VisionAPIKey string
	YCOAuthToken string
	YCFolderID   string

	AIEngine     string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	ComplianceThreshold    float64
	OCRConfidenceThreshold float64
	MaxImagesPerProduct    int
	OCRWorkers             int
	OCRTimeout             time.Duration
	AITimeout              time.Duration

	EntityRefreshCron string

	TelegramBotToken string
	TelegramChatID   int64
}

var defaults = map[string]any{
	"PORT":                     "8000",
	"ENVIRONMENT":              "development",
	"LOG_LEVEL":                "info",
	"OCR_ENGINE":               "vision",
	"AI_ENGINE":                "gemini",
	"GEMINI_MODEL":             "gemini-2.5-flash",
	"OPENAI_MODEL":             "gpt-4o-mini",
	"COMPLIANCE_THRESHOLD":     80.0,
	"OCR_CONFIDENCE_THRESHOLD": 0.6,
	"MAX_IMAGES_PER_PRODUCT":   5,
	"OCR_WORKERS":              4,
	"OCR_TIMEOUT":              "30s",
	"AI_TIMEOUT":               "60s",
	"ENTITY_REFRESH_CRON":      "@every 6h",
}

// Load reads defaults, then the optional YAML file named by CONFIG_FILE,
// then the environment.
func Load() (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if f := strings.TrimSpace(os.Getenv("CONFIG_FILE")); f != "" {
		v.SetConfigFile(f)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", f, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	ocrTimeout, err := duration(v, "OCR_TIMEOUT")
	if err != nil {
		return nil, err
	}
	aiTimeout, err := duration(v, "AI_TIMEOUT")
	if err != nil {
		return nil, err
	}
	var chatID int64
	if s := strings.TrimSpace(v.GetString("TELEGRAM_CHAT_ID")); s != "" {
		if chatID, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),

		OCREngine:    strings.ToLower(v.GetString("OCR_ENGINE")),
		VisionAPIKey: v.GetString("VISION_API_KEY"),
		YCOAuthToken: v.GetString("YC_OAUTH_TOKEN"),
		YCFolderID:   v.GetString("YC_FOLDER_ID"),

		AIEngine:     strings.ToLower(v.GetString("AI_ENGINE")),
		GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
		GeminiModel:  v.GetString("GEMINI_MODEL"),
		OpenAIAPIKey: v.GetString("OPENAI_API_KEY"),
		OpenAIModel:  v.GetString("OPENAI_MODEL"),

		ComplianceThreshold:    v.GetFloat64("COMPLIANCE_THRESHOLD"),
		OCRConfidenceThreshold: v.GetFloat64("OCR_CONFIDENCE_THRESHOLD"),
		MaxImagesPerProduct:    v.GetInt("MAX_IMAGES_PER_PRODUCT"),
		OCRWorkers:             v.GetInt("OCR_WORKERS"),
		OCRTimeout:             ocrTimeout,
		AITimeout:              aiTimeout,

		EntityRefreshCron: strings.TrimSpace(v.GetString("ENTITY_REFRESH_CRON")),

		TelegramBotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   chatID,
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = resolveDSN()
	}
	return cfg, nil
}

// duration accepts Go duration strings ("45s") or a bare number of seconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Validate reports missing credentials for the selected engines and
// out-of-range options.
func (c *Config) Validate() error {
	var errs []error
	switch c.OCREngine {
	case "vision":
		if c.VisionAPIKey == "" {
			errs = append(errs, errors.New("VISION_API_KEY is required for OCR_ENGINE=vision"))
		}
	case "yandex":
		if c.YCOAuthToken == "" || c.YCFolderID == "" {
			errs = append(errs, errors.New("YC_OAUTH_TOKEN and YC_FOLDER_ID are required for OCR_ENGINE=yandex"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown OCR_ENGINE %q", c.OCREngine))
	}
	switch c.AIEngine {
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for AI_ENGINE=gemini"))
		}
	case "openai", "gpt":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for AI_ENGINE=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AI_ENGINE %q", c.AIEngine))
	}
	// zero would silently fall back to the service default
	if c.ComplianceThreshold <= 0 || c.ComplianceThreshold > 100 {
		errs = append(errs, fmt.Errorf("COMPLIANCE_THRESHOLD must be within (0, 100], got %v", c.ComplianceThreshold))
	}
	if c.OCRConfidenceThreshold < 0 || c.OCRConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("OCR_CONFIDENCE_THRESHOLD must be within 0..1, got %v", c.OCRConfidenceThreshold))
	}
	if c.MaxImagesPerProduct < 1 {
		errs = append(errs, errors.New("MAX_IMAGES_PER_PRODUCT must be at least 1"))
	}
	if c.OCRWorkers < 1 {
		errs = append(errs, errors.New("OCR_WORKERS must be at least 1"))
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == 0) {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	return errors.Join(errs...)
}

func resolveDSN() string {
	// Build DSN from POSTGRES_* / PG* env vars (single-container default)
	user := getEnv("POSTGRES_USER", "labelcheck")
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := getEnv("PGHOST", "db")
	port := getEnv("PGPORT", "5432")
	db := getEnv("POSTGRES_DB", "labelcheck")

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// SafeDSNSummary describes dsn without the password.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
