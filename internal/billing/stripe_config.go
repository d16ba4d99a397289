package billing

import (
	"errors"
	"strings"
)

// StripeConfig configures StripeProvider. Zero MaxRetries and
// TimeoutSeconds take the provider defaults.
type StripeConfig struct {
	APIKey         string // sk_test_... or sk_live_...
	WebhookSecret  string // whsec_...
	MaxRetries     int
	TimeoutSeconds int
}

// Validate reports the first missing or invalid setting.
func (c *StripeConfig) Validate() error {
	switch {
	case c.APIKey == "":
		return ErrInvalidAPIKey
	case c.WebhookSecret == "":
		return errors.New("billing: webhook secret is required")
	case c.MaxRetries < 0:
		return errors.New("billing: max retries cannot be negative")
	case c.TimeoutSeconds < 0:
		return errors.New("billing: timeout cannot be negative")
	}
	return nil
}

// IsTestMode reports whether the key is a test-mode secret or restricted key.
func (c *StripeConfig) IsTestMode() bool {
	for _, prefix := range []string{"sk_test_", "rk_test_"} {
		if strings.HasPrefix(c.APIKey, prefix) {
			return true
		}
	}
	return false
}
