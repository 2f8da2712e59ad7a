package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 3, cfg.Wages.UpdateRetries)
	assert.Equal(t, "THB", cfg.Wages.Currency)
	assert.Equal(t, 5*time.Minute, cfg.Cache.WageStatsTTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTokenTTL)
	assert.Empty(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("WAGE_UPDATE_RETRIES", 0)
	v.Set("WAGE_CURRENCY", " usd ")
	v.Set("WAGE_STATS_CACHE_TTL", "not-a-duration")
	v.Set("CACHE_ENABLED", true)
	v.Set("CORS_ALLOWED_ORIGINS", "https://office.example.com, ,https://admin.example.com")

	cfg := fromViper(v)
	assert.Equal(t, 3, cfg.Wages.UpdateRetries)
	assert.Equal(t, "USD", cfg.Wages.Currency)
	assert.Equal(t, 5*time.Minute, cfg.Cache.WageStatsTTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"https://office.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
}
