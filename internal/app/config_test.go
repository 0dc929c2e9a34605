package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	"github.com/yungbote/stackmemory-backend/internal/platform/llm"
)

// clearEnv blanks the keys these tests assert on; viper treats empty env values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATA_PROVIDER", "HOSTED_DATABASE_URL", "JWT_SECRET_KEY", "ACCESS_TOKEN_TTL",
		"AI_MODEL", "AI_TIMEOUT_SECONDS", "QUALITY_GATE_PROBE_TIMEOUT_SECONDS",
		"QUALITY_GATE_CACHE_TTL_SECONDS", "CURRENT_TASKS_AUTOFILL_LIMIT", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestConfigDefaults(t *testing.T) {
	clearEnv(t)
	v := newViper()
	v.Set("JWT_SECRET_KEY", "s3cret")

	cfg, err := configFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, stores.ProviderLocalPG, cfg.DataProvider)
	assert.Equal(t, 7*24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, llm.DefaultModel, cfg.LLM.Model)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 10*time.Minute, cfg.ProbeCacheTTL)
	assert.Equal(t, 5, cfg.CurrentTasksAutofill)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestConfigOverridesAndValidation(t *testing.T) {
	clearEnv(t)
	v := newViper()
	v.Set("JWT_SECRET_KEY", "s3cret")
	v.Set("DATA_PROVIDER", "HOSTED")
	v.Set("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	_, err := configFrom(v)
	assert.ErrorContains(t, err, "HOSTED_DATABASE_URL")

	v.Set("HOSTED_DATABASE_URL", "postgres://u:p@db.example/stackmemory")
	cfg, err := configFrom(v)
	require.NoError(t, err)
	assert.Equal(t, stores.ProviderHosted, cfg.DataProvider)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	v.Set("DATA_PROVIDER", "sqlite")
	_, err = configFrom(v)
	assert.Error(t, err)

	empty := newViper()
	_, err = configFrom(empty)
	assert.ErrorContains(t, err, "JWT_SECRET_KEY")
}
