package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/duelhub/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                     string
	ServiceName                string
	ServiceVersion             string
	HTTPAddr                   string
	DBURL                      string
	DBDisablePreparedBinary    bool
	CacheEnabled               bool
	CacheTTL                   time.Duration
	CORSAllowedOrigins         []string
	ReadTimeout                time.Duration
	WriteTimeout               time.Duration
	PprofEnabled               bool
	PprofAddr                  string
	MatcherBaseDelta           int
	MatcherMaxDelta            int
	MatcherWidenAfter          time.Duration
	MatcherWidenEvery          time.Duration
	MatcherWidenStep           int
	AcceptWindow               time.Duration
	SweepInterval              time.Duration
	SweepBatch                 int
	ConsumerEnabled            bool
	ConsumerPollInterval       time.Duration
	ConsumerErrorBackoff       time.Duration
	ConsumerBatchSize          int
	ConsumerWorkers            int
	PushSendTimeout            time.Duration
	RelayEnabled               bool
	RelayEndpoint              string
	RelayToken                 string
	RelayTimeout               time.Duration
	RelayCircuitEnabled        bool
	RelayCircuitFailureCount   int
	RelayCircuitOpenTimeout    time.Duration
	RelayCircuitHalfOpenMaxReq int
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
	LogLevel                   logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return Config{}, fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}

	matcherBaseDelta, err := getEnvAsInt("MATCHER_BASE_DELTA", 200)
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCHER_BASE_DELTA: %w", err)
	}
	if matcherBaseDelta < 1 {
		return Config{}, fmt.Errorf("MATCHER_BASE_DELTA must be >= 1")
	}
	matcherMaxDelta, err := getEnvAsInt("MATCHER_MAX_DELTA", 1000)
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCHER_MAX_DELTA: %w", err)
	}
	if matcherMaxDelta < matcherBaseDelta {
		return Config{}, fmt.Errorf("MATCHER_MAX_DELTA must be >= MATCHER_BASE_DELTA")
	}
	matcherWidenAfter, err := time.ParseDuration(getEnv("MATCHER_WIDEN_AFTER", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCHER_WIDEN_AFTER: %w", err)
	}
	if matcherWidenAfter <= 0 {
		return Config{}, fmt.Errorf("MATCHER_WIDEN_AFTER must be > 0")
	}
	matcherWidenEvery, err := time.ParseDuration(getEnv("MATCHER_WIDEN_EVERY", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCHER_WIDEN_EVERY: %w", err)
	}
	if matcherWidenEvery <= 0 {
		return Config{}, fmt.Errorf("MATCHER_WIDEN_EVERY must be > 0")
	}
	matcherWidenStep, err := getEnvAsInt("MATCHER_WIDEN_STEP", 100)
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCHER_WIDEN_STEP: %w", err)
	}
	if matcherWidenStep < 1 {
		return Config{}, fmt.Errorf("MATCHER_WIDEN_STEP must be >= 1")
	}

	acceptWindow, err := time.ParseDuration(getEnv("MATCH_ACCEPT_WINDOW", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCH_ACCEPT_WINDOW: %w", err)
	}
	if acceptWindow <= 0 {
		return Config{}, fmt.Errorf("MATCH_ACCEPT_WINDOW must be > 0")
	}

	sweepInterval, err := time.ParseDuration(getEnv("MATCH_SWEEP_INTERVAL", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCH_SWEEP_INTERVAL: %w", err)
	}
	if sweepInterval <= 0 {
		return Config{}, fmt.Errorf("MATCH_SWEEP_INTERVAL must be > 0")
	}
	sweepBatch, err := getEnvAsInt("MATCH_SWEEP_BATCH", 100)
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCH_SWEEP_BATCH: %w", err)
	}
	if sweepBatch < 1 {
		return Config{}, fmt.Errorf("MATCH_SWEEP_BATCH must be >= 1")
	}

	consumerEnabled, err := strconv.ParseBool(getEnv("CONSUMER_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CONSUMER_ENABLED: %w", err)
	}
	consumerPollInterval, err := time.ParseDuration(getEnv("CONSUMER_POLL_INTERVAL", "500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CONSUMER_POLL_INTERVAL: %w", err)
	}
	if consumerPollInterval < 100*time.Millisecond || consumerPollInterval > time.Second {
		return Config{}, fmt.Errorf("CONSUMER_POLL_INTERVAL must be between 100ms and 1s")
	}
	consumerErrorBackoff, err := time.ParseDuration(getEnv("CONSUMER_ERROR_BACKOFF", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CONSUMER_ERROR_BACKOFF: %w", err)
	}
	if consumerErrorBackoff <= 0 {
		return Config{}, fmt.Errorf("CONSUMER_ERROR_BACKOFF must be > 0")
	}
	consumerBatchSize, err := getEnvAsInt("CONSUMER_BATCH_SIZE", 64)
	if err != nil {
		return Config{}, fmt.Errorf("parse CONSUMER_BATCH_SIZE: %w", err)
	}
	if consumerBatchSize < 2 {
		return Config{}, fmt.Errorf("CONSUMER_BATCH_SIZE must be >= 2")
	}
	consumerWorkers, err := getEnvAsInt("CONSUMER_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse CONSUMER_WORKERS: %w", err)
	}
	if consumerWorkers < 1 {
		return Config{}, fmt.Errorf("CONSUMER_WORKERS must be >= 1")
	}

	pushSendTimeout, err := time.ParseDuration(getEnv("PUSH_SEND_TIMEOUT", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PUSH_SEND_TIMEOUT: %w", err)
	}
	if pushSendTimeout <= 0 {
		return Config{}, fmt.Errorf("PUSH_SEND_TIMEOUT must be > 0")
	}

	relayEnabled, err := strconv.ParseBool(getEnv("RELAY_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RELAY_ENABLED: %w", err)
	}
	relayEndpoint := strings.TrimSpace(getEnv("RELAY_ENDPOINT", ""))
	if relayEnabled && relayEndpoint == "" {
		return Config{}, fmt.Errorf("RELAY_ENDPOINT is required when RELAY_ENABLED=true")
	}
	relayTimeout, err := time.ParseDuration(getEnv("RELAY_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RELAY_TIMEOUT: %w", err)
	}
	if relayTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_TIMEOUT must be > 0")
	}
	relayCircuitEnabled, err := strconv.ParseBool(getEnv("RELAY_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RELAY_CIRCUIT_ENABLED: %w", err)
	}
	relayCircuitFailureCount, err := getEnvAsInt("RELAY_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse RELAY_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if relayCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("RELAY_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	relayCircuitOpenTimeout, err := time.ParseDuration(getEnv("RELAY_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RELAY_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if relayCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	relayCircuitHalfOpenMaxReq, err := getEnvAsInt("RELAY_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse RELAY_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if relayCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("RELAY_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	cfg := Config{
		AppEnv:                     appEnv,
		ServiceName:                getEnv("APP_SERVICE_NAME", "duelhub-api"),
		ServiceVersion:             getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:                   getEnv("APP_HTTP_ADDR", ":8080"),
		DBURL:                      strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary:    true,
		CORSAllowedOrigins:         splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		PprofEnabled:               pprofEnabled,
		PprofAddr:                  pprofAddr,
		MatcherBaseDelta:           matcherBaseDelta,
		MatcherMaxDelta:            matcherMaxDelta,
		MatcherWidenAfter:          matcherWidenAfter,
		MatcherWidenEvery:          matcherWidenEvery,
		MatcherWidenStep:           matcherWidenStep,
		AcceptWindow:               acceptWindow,
		SweepInterval:              sweepInterval,
		SweepBatch:                 sweepBatch,
		ConsumerEnabled:            consumerEnabled,
		ConsumerPollInterval:       consumerPollInterval,
		ConsumerErrorBackoff:       consumerErrorBackoff,
		ConsumerBatchSize:          consumerBatchSize,
		ConsumerWorkers:            consumerWorkers,
		PushSendTimeout:            pushSendTimeout,
		RelayEnabled:               relayEnabled,
		RelayEndpoint:              relayEndpoint,
		RelayToken:                 strings.TrimSpace(getEnv("RELAY_TOKEN", "")),
		RelayTimeout:               relayTimeout,
		RelayCircuitEnabled:        relayCircuitEnabled,
		RelayCircuitFailureCount:   relayCircuitFailureCount,
		RelayCircuitOpenTimeout:    relayCircuitOpenTimeout,
		RelayCircuitHalfOpenMaxReq: relayCircuitHalfOpenMaxReq,
		UptraceEnabled:             uptraceEnabled,
		UptraceDSN:                 uptraceDSN,
		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}
	cfg.DBDisablePreparedBinary = dbDisablePreparedBinary

	cacheEnabled, err := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}
	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_TTL: %w", err)
	}
	if cacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be > 0")
	}
	cfg.CacheEnabled = cacheEnabled
	cfg.CacheTTL = cacheTTL

	readTimeout, err := time.ParseDuration(getEnv("APP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}

	cfg.ReadTimeout = readTimeout
	cfg.WriteTimeout = writeTimeout
	cfg.LogLevel = parseLogLevel(getEnv("APP_LOG_LEVEL", "info"))

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
