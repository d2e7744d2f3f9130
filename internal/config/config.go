package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteLogStatements   bool

	// CacheDir holds one JSON file per upstream key (river site or weather location).
	CacheDir string
	// SitesFile overrides the embedded river/town list when set.
	SitesFile string

	USGSBaseURL   string
	NWSBaseURL    string
	NWSUserAgent  string
	HTTPTimeout   time.Duration
	NWSRatePerSec float64

	APIPollInterval    time.Duration
	SensorReadInterval time.Duration
	SensorLogInterval  time.Duration
	// SensorRetention prunes logged readings older than this; zero keeps all.
	SensorRetention    time.Duration

	SensorMode      string
	BME680Address   uint16
	PMSA003IAddress uint16

	PM25AlertThreshold   float64
	AlertDismissDuration time.Duration

	MQTTBroker    string
	MQTTPort      int
	MQTTClientID  string
	MQTTStationID string
}

// MQTTEnabled reports whether indoor telemetry should be published.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadFromEnv reads an optional .env file, then the process environment.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	driver := envOr("DB_DRIVER", "sqlite3")
	dsn := strings.TrimSpace(os.Getenv("SQLITE_DSN"))
	path := envOr("SQLITE_PATH", filepath.Join(xdg.DataHome, "riverdash", "sensor_data.db"))

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}
	logSQL, err := envBool("DB_LOG_SQL", "false")
	if err != nil {
		return Config{}, err
	}

	cacheDir := envOr("CACHE_DIR", filepath.Join(xdg.CacheHome, "riverdash"))
	cacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return Config{}, fmt.Errorf("CACHE_DIR %q: %w", cacheDir, err)
	}

	httpTimeout, err := envDuration("HTTP_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	nwsRateStr := envOr("NWS_RATE_PER_SEC", "2")
	nwsRate, err := strconv.ParseFloat(nwsRateStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid NWS_RATE_PER_SEC %q: %w", nwsRateStr, err)
	}
	if nwsRate <= 0 {
		return Config{}, fmt.Errorf("NWS_RATE_PER_SEC must be positive, got %v", nwsRate)
	}

	apiPoll, err := envPositiveDuration("API_POLL_INTERVAL", "1h")
	if err != nil {
		return Config{}, err
	}
	sensorRead, err := envPositiveDuration("SENSOR_READ_INTERVAL", "5s")
	if err != nil {
		return Config{}, err
	}
	sensorLog, err := envPositiveDuration("SENSOR_LOG_INTERVAL", "60s")
	if err != nil {
		return Config{}, err
	}

	retention, err := envDuration("SENSOR_RETENTION", "0s")
	if err != nil {
		return Config{}, err
	}
	if retention < 0 {
		return Config{}, fmt.Errorf("SENSOR_RETENTION must not be negative, got %v", retention)
	}

	sensorMode := strings.ToLower(envOr("SENSOR_MODE", "auto"))
	switch sensorMode {
	case "auto", "hardware", "synthetic":
	default:
		return Config{}, fmt.Errorf("invalid SENSOR_MODE %q (allowed: auto, hardware, synthetic)", sensorMode)
	}
	bme680Addr, err := envI2CAddress("BME680_ADDRESS", "0x77")
	if err != nil {
		return Config{}, err
	}
	pmsaAddr, err := envI2CAddress("PMSA003I_ADDRESS", "0x12")
	if err != nil {
		return Config{}, err
	}

	thresholdStr := envOr("PM25_ALERT_THRESHOLD", "35")
	threshold, err := strconv.ParseFloat(thresholdStr, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid PM25_ALERT_THRESHOLD %q: %w", thresholdStr, err)
	}
	dismiss, err := envPositiveDuration("ALERT_DISMISS_DURATION", "20m")
	if err != nil {
		return Config{}, err
	}

	mqttPort, err := envInt("MQTT_PORT", "1883")
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              envOr("HTTP_ADDR", ":8080"),
		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogStatements:   logSQL,
		CacheDir:              cacheDir,
		SitesFile:             strings.TrimSpace(os.Getenv("SITES_FILE")),
		USGSBaseURL:           strings.TrimRight(envOr("USGS_BASE_URL", "https://waterservices.usgs.gov"), "/"),
		NWSBaseURL:            strings.TrimRight(envOr("NWS_BASE_URL", "https://api.weather.gov"), "/"),
		NWSUserAgent:          envOr("NWS_USER_AGENT", "(riverdash, contact@example.com)"),
		HTTPTimeout:           httpTimeout,
		NWSRatePerSec:         nwsRate,
		APIPollInterval:       apiPoll,
		SensorReadInterval:    sensorRead,
		SensorLogInterval:     sensorLog,
		SensorRetention:       retention,
		SensorMode:            sensorMode,
		BME680Address:         bme680Addr,
		PMSA003IAddress:       pmsaAddr,
		PM25AlertThreshold:    threshold,
		AlertDismissDuration:  dismiss,
		MQTTBroker:            strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:              mqttPort,
		MQTTClientID:          envOr("MQTT_CLIENT_ID", "riverdash"),
		MQTTStationID:         envOr("MQTT_STATION_ID", "indoor"),
	}, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key, def string) (int, error) {
	s := envOr(key, def)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envBool(key, def string) (bool, error) {
	s := envOr(key, def)
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func envDuration(key, def string) (time.Duration, error) {
	s := envOr(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func envPositiveDuration(key, def string) (time.Duration, error) {
	d, err := envDuration(key, def)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func envI2CAddress(key, def string) (uint16, error) {
	s := envOr(key, def)
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return uint16(v), nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
