package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 250, 4000, 3.0, 0.1)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 4*time.Second, cfg.MaxBackoff)
	assert.InDelta(t, 3.0, cfg.Multiplier, 1e-9)
	assert.InDelta(t, 0.1, cfg.JitterFraction, 1e-9)
}

func TestFromRetryConfig_ZeroKeepsDefaults(t *testing.T) {
	def := DefaultRetryConfig()
	cfg := FromRetryConfig(0, 0, 0, 0, -1)
	assert.Equal(t, def.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, def.InitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, def.MaxBackoff, cfg.MaxBackoff)
	assert.InDelta(t, def.Multiplier, cfg.Multiplier, 1e-9)
	assert.InDelta(t, def.JitterFraction, cfg.JitterFraction, 1e-9)
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(8, 45)
	assert.Equal(t, 8, cfg.FailureThreshold)
	assert.Equal(t, 45*time.Second, cfg.ResetTimeout)

	def := FromCircuitConfig(0, 0)
	assert.Equal(t, 5, def.FailureThreshold)
	assert.Equal(t, 30*time.Second, def.ResetTimeout)
}
