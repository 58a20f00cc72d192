package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	DBConn    string
	LogLevel  string
	JWTSecret string

	// Forecast
	MaxForecastDate     time.Time
	HorizonDays         int
	WarningThresholdEUR float64
	DebtPrincipal       float64
	Euribor3M           float64
	DebtSpread          float64
	// DebtMonthlyInterest overrides principal * (Euribor + spread) / 12 when positive
	DebtMonthlyInterest float64
	DataDir             string
	OutputDir           string
	ReportSigningKey    string
	ForecastCron        string
	// ForecastOnStart runs the daily forecast once at startup
	ForecastOnStart     bool

	// Rate sources
	ExchangeRateURL string
	ECBURL          string
	CBRURL          string
	RateTimeout     time.Duration

	// Alerts
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
	AlertRecipients []string
}

// Load reads a .env file when present, then builds the configuration from the environment
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return NewConfig()
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	var err error
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DBConn:           getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=treasury sslmode=disable"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:        getEnv("JWT_SECRET", "secret"),
		DataDir:          getEnv("DATA_DIR", "data"),
		OutputDir:        getEnv("OUTPUT_DIR", "output"),
		ReportSigningKey: getEnv("REPORT_SIGNING_KEY", ""),
		ForecastCron:     getEnv("FORECAST_CRON", "0 6 * * *"),
		ExchangeRateURL:  getEnv("EXCHANGE_RATE_URL", "https://api.exchangerate-api.com/v4/latest/EUR"),
		ECBURL:           getEnv("ECB_URL", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"),
		CBRURL:           getEnv("CBR_URL", "https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SenderEmail:      getEnv("SENDER_EMAIL", "treasury-forecast@localhost"),
		AlertRecipients:  getEnvList("ALERT_RECIPIENTS"),
	}

	maxDate := getEnv("MAX_FORECAST_DATE", "2025-03-31")
	if cfg.MaxForecastDate, err = time.Parse("2006-01-02", maxDate); err != nil {
		return nil, fmt.Errorf("MAX_FORECAST_DATE must be YYYY-MM-DD: %w", err)
	}
	if cfg.HorizonDays, err = getEnvInt("FORECAST_HORIZON_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.WarningThresholdEUR, err = getEnvFloat("WARNING_THRESHOLD_EUR", 100_000); err != nil {
		return nil, err
	}
	if cfg.DebtPrincipal, err = getEnvFloat("DEBT_PRINCIPAL", 20_000_000); err != nil {
		return nil, err
	}
	if cfg.Euribor3M, err = getEnvFloat("EURIBOR_3M", 0.035); err != nil {
		return nil, err
	}
	if cfg.DebtSpread, err = getEnvFloat("DEBT_SPREAD", 0.012); err != nil {
		return nil, err
	}
	if cfg.DebtMonthlyInterest, err = getEnvFloat("DEBT_MONTHLY_INTEREST", 0); err != nil {
		return nil, err
	}
	if cfg.ForecastOnStart, err = getEnvBool("FORECAST_ON_START", false); err != nil {
		return nil, err
	}
	if cfg.RateTimeout, err = time.ParseDuration(getEnv("RATE_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("RATE_TIMEOUT must be a duration: %w", err)
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HorizonDays <= 0 {
		return nil, fmt.Errorf("FORECAST_HORIZON_DAYS must be positive, got %d", cfg.HorizonDays)
	}
	if cfg.WarningThresholdEUR < 0 {
		return nil, fmt.Errorf("WARNING_THRESHOLD_EUR must not be negative")
	}

	return cfg, nil
}

// AlertsEnabled reports whether critical-day emails can be sent
func (c *Config) AlertsEnabled() bool {
	return c.SMTPHost != "" && len(c.AlertRecipients) > 0
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
