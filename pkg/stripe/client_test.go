package stripe

import (
	"context"
	"strings"
	"testing"

	"github.com/makersrow/makersrow-backend/pkg/config"
)

func TestNewClientRejectsMismatchedKeyPrefix(t *testing.T) {
	cfg := config.StripeConfig{APIKey: "sk_live_abc", Secret: "whsec_x", Env: "test"}

	_, err := NewClient(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected live key in test environment to be rejected")
	}
	if !strings.Contains(err.Error(), "sk_test") {
		t.Fatalf("error should name the expected prefix: %v", err)
	}
}

func TestNewClientRejectsUnknownEnvironment(t *testing.T) {
	cfg := config.StripeConfig{APIKey: "sk_test_abc", Secret: "whsec_x", Env: "staging"}

	if _, err := NewClient(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected unknown environment to be rejected")
	}
}

func TestNewClientDefaultsToTestMode(t *testing.T) {
	cfg := config.StripeConfig{APIKey: "sk_test_abc", Secret: "whsec_x"}

	client, err := NewClient(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Environment() != EnvTest {
		t.Fatalf("expected test mode, got %s", client.Environment())
	}
	if client.SigningSecret() != "whsec_x" {
		t.Fatal("signing secret not retained")
	}
}
