// Package config loads worker configuration from the environment,
// following the teacher's internal/config.Load pattern extended with
// the settings spec.md §6 requires for the processing pipeline.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/diewo77/invoice-pipeline/internal/validate"
)

// Config holds every recognised option from spec.md §6.
type Config struct {
	WorkerConcurrency  int
	TaskTimeout        time.Duration
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryCapDelay      time.Duration
	KositTimeout       time.Duration
	MonetaryTolerance  float64
	MetadataDSN        string
	ERPDsn             string
	BlobEndpoint       string
	BlobAccessKey      string
	BlobSecretKey      string
	QueueEndpoint      string
	KositJarPath       string
	KositScenariosPath string
	KositRepositoryPath string
	XSDSchemaDir       string
	HealthzAddr        string // empty disables the health endpoint
	LogLevel           string
	LogFormat          string
}

// Load reads configuration from the environment with the defaults
// spec.md §6 documents. Precedence: explicit env var > default.
func Load() Config {
	return Config{
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 4),
		TaskTimeout:         getEnvSeconds("TASK_TIMEOUT_SECONDS", 600),
		RetryMaxAttempts:    getEnvInt("RETRY_MAX_ATTEMPTS", 5),
		RetryBaseDelay:      getEnvSeconds("RETRY_BASE_SECONDS", 60),
		RetryCapDelay:       getEnvSeconds("RETRY_CAP_SECONDS", 600),
		KositTimeout:        getEnvSeconds("KOSIT_TIMEOUT_SECONDS", 120),
		MonetaryTolerance:   getEnvFloat("MONETARY_TOLERANCE", 0.02),
		MetadataDSN:         getEnv("METADATA_DSN", ""),
		ERPDsn:              getEnv("ERP_DSN", ""),
		BlobEndpoint:        getEnv("BLOB_ENDPOINT", ""),
		BlobAccessKey:       getEnv("BLOB_ACCESS_KEY", ""),
		BlobSecretKey:       getEnv("BLOB_SECRET_KEY", ""),
		QueueEndpoint:       getEnv("QUEUE_ENDPOINT", ""),
		KositJarPath:        getEnv("KOSIT_JAR_PATH", ""),
		KositScenariosPath:  getEnv("KOSIT_SCENARIOS_PATH", ""),
		KositRepositoryPath: getEnv("KOSIT_REPOSITORY_PATH", ""),
		XSDSchemaDir:        getEnv("XSD_SCHEMA_DIR", ""),
		HealthzAddr:         getEnv("HEALTHZ_ADDR", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
	}
}

// Validate aggregates every missing/invalid setting instead of failing
// on the first one, using the same Violations pattern the teacher uses
// for form validation.
func (c Config) Validate() error {
	v := validate.Violations{}
	validate.Required("metadata_dsn", c.MetadataDSN, v)
	validate.Required("erp_dsn", c.ERPDsn, v)
	validate.PositiveInt("worker_concurrency", c.WorkerConcurrency, v)
	validate.PositiveInt("retry_max_attempts", c.RetryMaxAttempts, v)
	validate.Positive("monetary_tolerance", c.MonetaryTolerance, v)
	if c.TaskTimeout <= 0 {
		v["task_timeout_seconds"] = "must_be_positive"
	}
	if c.KositTimeout <= 0 {
		v["kosit_timeout_seconds"] = "must_be_positive"
	}
	if !v.Empty() {
		return v
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvSeconds(key string, defSeconds int) time.Duration {
	n := getEnvInt(key, defSeconds)
	return time.Duration(n) * time.Second
}
