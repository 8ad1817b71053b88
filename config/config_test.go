package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"15m", 15 * time.Minute},
		{"10d", 240 * time.Hour},
		{"0d", time.Minute},
		{"soon", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("UNIHUB_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("UNIHUB_TEST_DURATION", time.Minute))
		})
	}
}

func TestMergeOrigins(t *testing.T) {
	got := mergeOrigins(
		[]string{"http://localhost:3000", "http://localhost:5173"},
		" https://uni.example.edu/ , http://localhost:3000,,",
	)
	assert.Equal(t, []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"https://uni.example.edu",
	}, got)
}

func TestMaskPassword(t *testing.T) {
	assert.Equal(t,
		"host=db user=app password=***** dbname=unihub",
		maskPassword("host=db user=app password=hunter2 dbname=unihub"))
	assert.Equal(t,
		"postgres://app:*****@db:5432/unihub",
		maskPassword("postgres://app:hunter2@db:5432/unihub"))
	assert.Equal(t, "host=db", maskPassword("host=db"))
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	prev := AppConfig
	t.Cleanup(func() { AppConfig = prev })

	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh")
	t.Setenv("DATABASE_URL", "postgres://app:pw@db/unihub")
	assert.EqualError(t, LoadConfig(), "ACCESS_TOKEN_SECRET is required")

	t.Setenv("ACCESS_TOKEN_SECRET", "access")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SMTP_HOST", "")
	assert.EqualError(t, LoadConfig(), "SMTP credentials are required in production")

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("ACCESS_TOKEN_EXPIRE", "30m")
	t.Setenv("REFRESH_TOKEN_EXPIRE", "7d")
	require.NoError(t, LoadConfig())
	assert.Equal(t, 30*time.Minute, AppConfig.AccessTokenExpiry)
	assert.Equal(t, 7*24*time.Hour, AppConfig.RefreshTokenExpiry)
	assert.False(t, AppConfig.IsProduction())
}
