package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host       string `env:"HOST,default=localhost"`
	Port       int    `env:"PORT,default=8080"`
	HealthPort int    `env:"HEALTH_PORT,default=8081"`
	DebugPort  int    `env:"DEBUG_PORT,default=0"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=1h"`

	ConnectionBufferSize int    `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxMessageLength     int    `env:"MAX_MESSAGE_LENGTH,default=4000"`
	CensoredWords        string `env:"CENSORED_WORDS"`

	BlobDir       string `env:"BLOB_DIR,default=./uploads"`
	BlobBaseURL   string `env:"BLOB_BASE_URL,default=http://localhost:8080/files"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE,default=10485760"`

	ArchiveInterval     time.Duration `env:"ARCHIVE_INTERVAL,default=1h"`
	ArchiveRetention    time.Duration `env:"ARCHIVE_RETENTION,default=24h"`
	ArchiveSafetyMargin time.Duration `env:"ARCHIVE_SAFETY_MARGIN,default=1m"`
	ArchiveBatchSize    int           `env:"ARCHIVE_BATCH_SIZE,default=500"`

	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=5s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	AllowedOrigin   string        `env:"ALLOWED_ORIGIN,default=*"`
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}
	if c.AuthTokenDuration <= 0 {
		return fmt.Errorf("AUTH_TOKEN_DURATION must be positive, got %s", c.AuthTokenDuration)
	}
	if c.ConnectionBufferSize <= 0 {
		return fmt.Errorf("CONNECTION_BUFFER_SIZE must be positive, got %d", c.ConnectionBufferSize)
	}
	if c.ArchiveBatchSize <= 0 {
		return fmt.Errorf("ARCHIVE_BATCH_SIZE must be positive, got %d", c.ArchiveBatchSize)
	}
	if c.ArchiveInterval <= 0 || c.MetricInterval <= 0 {
		return fmt.Errorf("ARCHIVE_INTERVAL and METRIC_INTERVAL must be positive")
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
