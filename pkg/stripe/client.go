package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/makersrow/makersrow-backend/pkg/config"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

// Environment names accepted by MAKERSROW_STRIPE_ENV. Test is the default so
// a fresh checkout never talks to live money.
const (
	EnvTest = "test"
	EnvLive = "live"
)

// keyPrefixes maps each environment to the secret-key prefixes the provider
// issues for it. A mismatch means the operator pasted the wrong key.
var keyPrefixes = map[string][]string{
	EnvTest: {"sk_test", "rk_test"},
	EnvLive: {"sk_live", "rk_live"},
}

// Client holds the provider API handle together with the webhook signing
// secret and the environment it was validated against.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient validates the configured credentials and initializes the
// provider SDK. The key prefix must agree with the environment; failing fast
// here beats a live charge from a test deployment.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := strings.TrimSpace(strings.ToLower(cfg.Environment()))
	if env == "" {
		env = EnvTest
	}
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, fmt.Errorf("stripe environment must be %q or %q, got %q", EnvTest, EnvLive, env)
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}
	if !hasAnyPrefix(key, prefixes) {
		return nil, fmt.Errorf("stripe %s environment requires a key with prefix %s", env, strings.Join(prefixes, " or "))
	}

	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("stripe webhook signing secret is required")
	}

	api := stripe.NewClient(key)
	stripe.Key = key

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client ready (%s mode)", env))
	}

	return &Client{
		api:           api,
		environment:   env,
		signingSecret: secret,
	}, nil
}

// API exposes the underlying provider client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports which mode the credentials were validated for.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret is the secret used to verify webhook signatures.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
