// Package config reads service configuration from the environment.
package config

import "os"

type Config struct {
	// HTTP
	Port string

	// Storage: "postgres" or "sqlite".
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	// Kafka sink; empty disables the bridge.
	KafkaBrokers string
}

func Load() Config {
	return Config{
		Port:         getEnv("ORDER_SERVICE_PORT", "8080"),
		DBDriver:     getEnv("DB_DRIVER", "postgres"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "orderservice"),
		DBPassword:   getEnv("DB_PASSWORD", "orderservice"),
		DBName:       getEnv("DB_NAME", "orders"),
		SQLitePath:   getEnv("SQLITE_PATH", "orders.db"),
		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
