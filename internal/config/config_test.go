package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SHOPIFY_SHOP_DOMAIN", "demo.myshopify.com")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 510*time.Millisecond, cfg.Shopify.RequestPause)
	assert.Equal(t, 15*time.Minute, cfg.Queue.JobDeadline)
	assert.Equal(t, "db", cfg.Queue.Backend)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "wish", cfg.Channels.WishCode)
	assert.Equal(t, "0 0 */1 * * *", cfg.Schedule.StockSpec)
	assert.Equal(t, 7*24*time.Hour, cfg.Queue.Retention)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("QUEUE_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SHOPIFY_LOCATION_ID", "777")
	t.Setenv("QUEUE_WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Queue.KafkaBrokers)
	assert.Equal(t, int64(777), cfg.Shopify.LocationID)
	assert.Equal(t, 4, cfg.Queue.Workers)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"pause below minimum", map[string]string{"SHOPIFY_REQUEST_PAUSE": "100ms"}},
		{"kafka without brokers", map[string]string{"QUEUE_BACKEND": "kafka"}},
		{"unknown backend", map[string]string{"QUEUE_BACKEND": "redis"}},
		{"unknown storage", map[string]string{"STORAGE_PROVIDER": "ftp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("SHOPIFY_SHOP_DOMAIN", "")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "")
	_, err := Load()
	assert.Error(t, err)
}
