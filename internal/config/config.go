package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr        string
	DataDir     string
	DatabaseURL string
	RedisURL    string
	HistoryDir  string
	CORSOrigin  string
	// Placement rules
	ProximityPx float64
	// Photo re-encoding
	PhotoMaxDim  int
	PhotoQuality int
	// S3 / MinIO archive upload - disabled when endpoint is empty
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

func Load() Config {
	return Config{
		Addr:         getenv("API_ADDR", ":8686"),
		DataDir:      getenv("PLANPOINT_DATA_DIR", "./data"),
		DatabaseURL:  getenv("DATABASE_URL", ""),
		RedisURL:     getenv("REDIS_URL", ""),
		HistoryDir:   getenv("PLANPOINT_HISTORY_DIR", "./data/history"),
		CORSOrigin:   getenv("PLANPOINT_CORS_ORIGIN", "*"),
		ProximityPx:  getenvFloat("PLANPOINT_PROXIMITY_PX", 18),
		PhotoMaxDim:  getenvInt("PLANPOINT_PHOTO_MAX_DIM", 800),
		PhotoQuality: getenvInt("PLANPOINT_PHOTO_QUALITY", 70),
		// S3 - empty by default, archive upload disabled if not configured
		S3Endpoint:  getenv("S3_ENDPOINT", ""),
		S3AccessKey: getenv("S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("S3_SECRET_KEY", ""),
		S3Bucket:    getenv("S3_BUCKET", "planpoint-exports"),
		S3UseSSL:    getenvBool("S3_USE_SSL", false),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
