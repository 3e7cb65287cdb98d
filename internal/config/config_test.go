package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIEW_PACKAGE_SIZE", "")
	t.Setenv("COMMISSION_RATE", "")

	c := Load()
	assert.Equal(t, 4, c.ViewPackageSize)
	assert.Equal(t, 0.05, c.CommissionRate)
	assert.True(t, c.AutoExecuteSAFE)
	assert.Equal(t, "0.0.0.0:8080", c.Addr())
	assert.False(t, c.StripeEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIEW_PACKAGE_SIZE", "10")
	t.Setenv("COMMISSION_RATE", "0.025")
	t.Setenv("AUTO_EXECUTE_SAFE", "false")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	c := Load()
	assert.Equal(t, 10, c.ViewPackageSize)
	assert.Equal(t, 0.025, c.CommissionRate)
	assert.False(t, c.AutoExecuteSAFE)
	assert.Equal(t, 90*time.Minute, c.IdempotencyTTL)
	assert.True(t, c.StripeEnabled())
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SMTP_PORT", "not-a-number")
	t.Setenv("SEED_DEMO", "maybe")

	c := Load()
	assert.Equal(t, 587, c.SMTPPort)
	assert.False(t, c.SeedDemo)
}
