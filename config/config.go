// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
)

// Environment は実行環境を表す。
type Environment string

const (
	// EnvDevelopment はローカル開発環境。
	EnvDevelopment Environment = "development"
	// EnvStaging は検証環境。
	EnvStaging Environment = "staging"
	// EnvProduction は本番環境。
	EnvProduction Environment = "production"
)

// ParseEnvironment は文字列から実行環境を解釈する。
// 未知の値は安全側に倒してproductionとして扱う。
func ParseEnvironment(s string) Environment {
	switch s {
	case "development", "dev":
		return EnvDevelopment
	case "staging":
		return EnvStaging
	default:
		return EnvProduction
	}
}

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	MigrationsDir      string
	Environment        Environment
	LogLevel           string
	OtelEnabled        bool
	OtelEndpoint       string
	OtelServiceName    string
	OtelSamplingRate   float64
	GoogleCloudProject string
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	samplingRate := 0.1
	if v := os.Getenv("OTEL_SAMPLING_RATE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			samplingRate = parsed
		}
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "./migrations"),
		Environment:        ParseEnvironment(getEnv("APP_ENV", "production")),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		OtelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OtelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:    getEnv("OTEL_SERVICE_NAME", "migration-service"),
		OtelSamplingRate:   samplingRate,
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
