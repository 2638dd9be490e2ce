package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, TransportInProcess, cfg.Transport)
	assert.Equal(t, 10*time.Minute, cfg.HoldTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 100, cfg.RefundPolicy.Percent(25*time.Hour))
	assert.Equal(t, 50, cfg.RefundPolicy.Percent(3*time.Hour))
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORAGE", "Postgres")
	t.Setenv("POSTGRES_DSN", "host=db user=app dbname=booking sslmode=disable")
	t.Setenv("TRANSPORT", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("HOLD_TTL", "5m")
	t.Setenv("REFUND_TIERS", "48h:100,12h:25")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 25, cfg.RefundPolicy.Percent(24*time.Hour))
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=from-file\nHTTP_ADDR=:9090\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":7070")
	t.Cleanup(func() { os.Unsetenv("APP_NAME") })

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AppName)
	assert.Equal(t, ":7070", cfg.HTTPAddr, "environment wins over the file")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORAGE", "postgres")
	t.Setenv("TRANSPORT", "carrier-pigeon")
	t.Setenv("HOLD_TTL", "soon")
	t.Setenv("REFUND_TIERS", "2h:100,24h:50")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
	assert.Contains(t, err.Error(), "TRANSPORT")
	assert.Contains(t, err.Error(), "HOLD_TTL")
	assert.Contains(t, err.Error(), "REFUND_TIERS")
}
