package internal

import (
	"strings"
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults_From_Environment(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", "/tmp/groupchat")
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("PORT", "9090")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.NoError(err)
	req.NoError(config.Validate())

	req.Equal("localhost:9090", config.Address())
	req.Equal(time.Hour, config.AuthTokenDuration)
	req.Equal(24*time.Hour, config.ArchiveRetention)
	req.Equal(256, config.ConnectionBufferSize)
	req.Equal(int64(10485760), config.MaxUploadSize)
}

func TestConfig_Validate_Rejects_Short_Secret(t *testing.T) {
	req := require.New(t)
	config := Config{
		JWTSecret:            "short",
		AuthTokenDuration:    time.Hour,
		ConnectionBufferSize: 1,
		ArchiveBatchSize:     1,
		ArchiveInterval:      time.Hour,
		MetricInterval:       time.Second,
	}
	req.Error(config.Validate())

	config.JWTSecret = strings.Repeat("s", 32)
	req.NoError(config.Validate())
}
