package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/makersrow/makersrow-backend/pkg/logger"
)

// Runner executes best-effort side effects. Failures never reach the
// caller; the critical path depends on nothing that runs through here.
type Runner struct {
	logg *logger.Logger
}

func NewRunner(logg *logger.Logger) (*Runner, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Runner{logg: logg}, nil
}

// Run invokes fn when enabled, swallowing errors and panics. A disabled
// task is logged as skipped rather than silently dropped.
func (r *Runner) Run(ctx context.Context, task string, enabled bool, fn func(context.Context) error) {
	if !enabled {
		r.logg.Info(ctx, fmt.Sprintf("side effect %s skipped: feature disabled", task))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logg.Error(ctx, fmt.Sprintf("side effect %s panicked", task), fmt.Errorf("%v", rec))
		}
	}()

	if err := fn(ctx); err != nil {
		r.logg.Error(ctx, fmt.Sprintf("side effect %s failed", task), err)
	}
}

// NormalizeRecipients lowercases, trims, and de-duplicates email addresses
// for notification fan-out. Order of first appearance is preserved.
func NormalizeRecipients(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, address := range addresses {
		normalized := strings.ToLower(strings.TrimSpace(address))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
