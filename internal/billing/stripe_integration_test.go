//go:build integration
// +build integration

package billing

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadTestConfig loads Stripe test credentials from .env.test
func loadTestConfig(t *testing.T) StripeConfig {
	t.Helper()

	if err := godotenv.Load("../../.env.test"); err != nil {
		t.Logf(".env.test not found, falling back to environment (%v)", err)
	}

	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	if apiKey == "" || apiKey == "sk_test_your_key_here" {
		t.Skip("Skipping integration test: STRIPE_SECRET_KEY not set")
	}

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret == "" {
		webhookSecret = "whsec_integration_placeholder"
	}

	cfg := StripeConfig{
		APIKey:         apiKey,
		WebhookSecret:  webhookSecret,
		MaxRetries:     2,
		TimeoutSeconds: 30,
	}
	if !cfg.IsTestMode() {
		t.Skip("Skipping integration test: refusing to run against a live key")
	}
	return cfg
}

func TestStripeIntegration_PaymentIntentLifecycle(t *testing.T) {
	cfg := loadTestConfig(t)
	provider, err := NewStripeProvider(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := fmt.Sprintf("integration-%d", time.Now().UnixNano())
	params := CreatePaymentIntentParams{
		AmountCents:    2150,
		Currency:       "usd",
		CustomerEmail:  "integration@example.com",
		Metadata:       map[string]string{"order_id": key, "order_number": "ORD-0-0"},
		IdempotencyKey: key,
	}

	pi, err := provider.CreatePaymentIntent(ctx, params)
	require.NoError(t, err)
	assert.NotEmpty(t, pi.ClientSecret)
	assert.Equal(t, int64(2150), pi.AmountCents)

	again, err := provider.CreatePaymentIntent(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, pi.ID, again.ID, "same idempotency key returns same intent")

	fetched, err := provider.GetPaymentIntent(ctx, GetPaymentIntentParams{PaymentIntentID: pi.ID})
	require.NoError(t, err)
	assert.Equal(t, key, fetched.Metadata["order_id"])

	require.NoError(t, provider.CancelPaymentIntent(ctx, pi.ID))

	_, err = provider.GetPaymentIntent(ctx, GetPaymentIntentParams{PaymentIntentID: "pi_does_not_exist"})
	assert.ErrorIs(t, err, ErrPaymentIntentNotFound)
}
