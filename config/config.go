package config

import (
	"os"
	"strconv"
)

const (
	defaultBundleDir     = ".iac-data"
	defaultRulesMaxDepth = 8
	defaultLogPath       = "logs/app.log"
	defaultMetricsAddr   = ":9090"
)

type Config struct {
	SQSQueueURL       string // Queue the IaC jobs are read from.
	AnalyticsQueueURL string // Queue analytics events are published to.
	PGHost            string
	PGPort            string
	PGName            string
	PGUser            string
	PGPassword        string
	PolicyBundleDir   string // Local directory holding the custom rule bundle.
	PolicyBundleRepo  string // Git URL the bundle is fetched from.
	RulesMaxDepth     int    // Directory levels searched for rule files.
	EnginePath        string // Scanning engine binary.
	ResultsPath       string // Results file processed when SQS is disabled.
	LogPath           string
	MetricsAddr       string
	EnableVault       bool
	EnableSecrets     bool
	EnableBundleFetch bool
	EnableEngine      bool
	EnableSQS         bool
	EnableAnalyticsQ  bool
	EnableDB          bool
	EnableMetrics     bool
	CleanupBundle     bool
}

func Load() Config {
	parseBool := func(key string) bool {
		val, err := strconv.ParseBool(os.Getenv(key))
		if err != nil {
			return false
		}
		return val
	}
	parseInt := func(key string, def int) int {
		val, err := strconv.Atoi(os.Getenv(key))
		if err != nil || val <= 0 {
			return def
		}
		return val
	}
	orDefault := func(key, def string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return def
	}
	return Config{
		SQSQueueURL:       os.Getenv("SQS_QUEUE_URL"),
		AnalyticsQueueURL: os.Getenv("ANALYTICS_QUEUE_URL"),
		PGHost:            os.Getenv("PG_HOST"),
		PGPort:            orDefault("PG_PORT", "5432"),
		PGName:            os.Getenv("PG_NAME"),
		PGUser:            os.Getenv("PG_USER"),
		PGPassword:        os.Getenv("PG_PASSWORD"),
		PolicyBundleDir:   orDefault("POLICY_BUNDLE_DIR", defaultBundleDir),
		PolicyBundleRepo:  os.Getenv("POLICY_BUNDLE_REPO"),
		RulesMaxDepth:     parseInt("RULES_MAX_DEPTH", defaultRulesMaxDepth),
		EnginePath:        os.Getenv("ENGINE_PATH"),
		ResultsPath:       os.Getenv("RESULTS_PATH"),
		LogPath:           orDefault("LOG_PATH", defaultLogPath),
		MetricsAddr:       orDefault("METRICS_ADDR", defaultMetricsAddr),
		EnableVault:       parseBool("ENABLE_VAULT"),
		EnableSecrets:     parseBool("ENABLE_SECRETS_MANAGER"),
		EnableBundleFetch: parseBool("ENABLE_BUNDLE_FETCH"),
		EnableEngine:      parseBool("ENABLE_ENGINE"),
		EnableSQS:         parseBool("ENABLE_SQS"),
		EnableAnalyticsQ:  parseBool("ENABLE_ANALYTICS_QUEUE"),
		EnableDB:          parseBool("ENABLE_DB"),
		EnableMetrics:     parseBool("ENABLE_METRICS"),
		CleanupBundle:     parseBool("CLEANUP_BUNDLE"),
	}
}

func (c Config) PostgresConnString() string {
	// e.g. "host=localhost port=5432 dbname=mydb user=myuser password=mypass sslmode=disable"
	return "host=" + c.PGHost + " port=" + c.PGPort + " dbname=" + c.PGName + " user=" + c.PGUser + " password=" + c.PGPassword + " sslmode=disable"
}
