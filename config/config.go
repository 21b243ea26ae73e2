package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DataDir          string
	MaxWorkers       int
	MaxQueue         int
	CompressionSlots int
	EnqueueTimeout   time.Duration
	PreviewSeconds   int
	FFmpegPath       string
	GRPCPort         int
	HTTPPort         int
	ShutdownTimeout  time.Duration
	LogLevel         string
}

func Load() (*Config, error) {
	maxWorkers, err := positiveInt("MAX_WORKERS", "4")
	if err != nil {
		return nil, err
	}

	maxQueue, err := positiveInt("MAX_QUEUE", "10")
	if err != nil {
		return nil, err
	}

	compressionSlots, err := positiveInt("COMPRESSION_SLOTS", "3")
	if err != nil {
		return nil, err
	}

	previewSeconds, err := positiveInt("PREVIEW_SECONDS", "10")
	if err != nil {
		return nil, err
	}

	enqueueTimeout, err := positiveDuration("ENQUEUE_TIMEOUT", "1s")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := positiveDuration("SHUTDOWN_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	grpcPort, err := port("GRPC_PORT", "7280")
	if err != nil {
		return nil, err
	}

	httpPort, err := port("HTTP_PORT", "7890")
	if err != nil {
		return nil, err
	}
	if grpcPort == httpPort {
		return nil, fmt.Errorf("GRPC_PORT and HTTP_PORT must differ, both are %d", grpcPort)
	}

	logLevel := strings.ToLower(getEnv("LOG_LEVEL", "info"))
	if logLevel != "info" && logLevel != "debug" {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: want info or debug", logLevel)
	}

	return &Config{
		DataDir:          getEnv("DATA_DIR", "."),
		MaxWorkers:       maxWorkers,
		MaxQueue:         maxQueue,
		CompressionSlots: compressionSlots,
		EnqueueTimeout:   enqueueTimeout,
		PreviewSeconds:   previewSeconds,
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		GRPCPort:         grpcPort,
		HTTPPort:         httpPort,
		ShutdownTimeout:  shutdownTimeout,
		LogLevel:         logLevel,
	}, nil
}

func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

func positiveInt(key, defaultValue string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s: must be at least 1, got %d", key, n)
	}
	return n, nil
}

func positiveDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}

func port(key, defaultValue string) (int, error) {
	p, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("invalid %s: %d out of range", key, p)
	}
	return p, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
