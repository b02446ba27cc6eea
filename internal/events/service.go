package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"

	analyticstypes "github.com/makersrow/makersrow-backend/internal/analytics/types"
	"github.com/makersrow/makersrow-backend/internal/orders"
	"github.com/makersrow/makersrow-backend/pkg/db/models"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

// Outcome classifies how an admitted event terminated. All outcomes map to a
// success response; a non-nil error from Admit is the only failure path.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRecovered Outcome = "recovered"
	outcomeFailed            = "failed"
)

var allowedEventTypes = map[stripe.EventType]struct{}{
	stripe.EventTypeCheckoutSessionCompleted:   {},
	stripe.EventTypeCheckoutSessionExpired:     {},
	stripe.EventTypePaymentIntentPaymentFailed: {},
	stripe.EventTypeAccountUpdated:             {},
	stripe.EventTypeRefundCreated:              {},
	stripe.EventTypeRefundUpdated:              {},
	stripe.EventTypeChargeRefunded:             {},
	stripe.EventTypeChargeRefundUpdated:        {},
}

type orderMaterializer interface {
	Materialize(ctx context.Context, event *stripe.Event) (*orders.Result, error)
}

type refundReconciler interface {
	Reconcile(ctx context.Context, refund *stripe.Refund) (*models.Order, error)
	ReconcileCharge(ctx context.Context, charge *stripe.Charge) (*models.Order, error)
}

type accountSyncer interface {
	SyncAccount(ctx context.Context, account *stripe.Account) error
}

type idempotencyLedger interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string) error
	Forget(ctx context.Context, eventID string) error
}

type webhookMetrics interface {
	ObserveDuration(eventType string, duration time.Duration)
	IncProcessed(eventType, outcome string)
}

// Service is the event admitter: allowlist filter, dedup gate, dispatch by
// type, and terminal processed-marking.
type Service struct {
	ledger   idempotencyLedger
	orders   orderMaterializer
	refunds  refundReconciler
	accounts accountSyncer
	notifier *Notifier
	metrics  webhookMetrics
	devMode  bool
	logg     *logger.Logger
}

// ServiceParams collects the admitter collaborators.
type ServiceParams struct {
	Ledger   idempotencyLedger
	Orders   orderMaterializer
	Refunds  refundReconciler
	Accounts accountSyncer
	Notifier *Notifier
	Metrics  webhookMetrics
	DevMode  bool
	Logger   *logger.Logger
}

// NewService validates the collaborators and builds the admitter.
func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency ledger required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order materializer required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund reconciler required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account syncer required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	if params.Metrics == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "metrics required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		ledger:   params.Ledger,
		orders:   params.Orders,
		refunds:  params.Refunds,
		accounts: params.Accounts,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		devMode:  params.DevMode,
		logg:     params.Logger,
	}, nil
}

// Admit routes one verified event through the allowlist, the dedup gate, and
// the type-specific handler, then writes the terminal processed marker.
func (s *Service) Admit(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "event payload required")
	}

	eventType := string(event.Type)
	ctx = s.logg.WithEventID(ctx, event.ID)
	start := time.Now()
	defer func() {
		s.metrics.ObserveDuration(eventType, time.Since(start))
	}()

	if _, ok := allowedEventTypes[event.Type]; !ok {
		if err := s.ledger.MarkProcessed(ctx, event.ID, eventType); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("mark ignored event: %v", err))
		}
		s.logg.Info(ctx, fmt.Sprintf("event type %s not handled, ignoring", eventType))
		s.metrics.IncProcessed(eventType, string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}

	// a dedup read failure is availability over exactness: continue and let
	// downstream idempotency absorb the duplicate
	already, err := s.ledger.CheckAndMark(ctx, event.ID)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("dedup check failed, continuing: %v", err))
	}
	if already {
		s.logg.Info(ctx, "event already processed")
		s.metrics.IncProcessed(eventType, string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		if s.devMode {
			s.logg.Warn(ctx, fmt.Sprintf("swallowing %s failure in dev: %v", eventType, err))
			if markErr := s.ledger.MarkProcessed(ctx, event.ID, eventType); markErr != nil {
				s.logg.Warn(ctx, fmt.Sprintf("mark recovered event: %v", markErr))
			}
			s.metrics.IncProcessed(eventType, string(OutcomeRecovered))
			return OutcomeRecovered, nil
		}
		if forgetErr := s.ledger.Forget(ctx, event.ID); forgetErr != nil {
			s.logg.Warn(ctx, fmt.Sprintf("release idempotency claim: %v", forgetErr))
		}
		s.metrics.IncProcessed(eventType, outcomeFailed)
		return "", retryableFailure(err)
	}

	if err := s.ledger.MarkProcessed(ctx, event.ID, eventType); err != nil {
		s.logg.Error(ctx, "write processed marker", err)
	}
	s.metrics.IncProcessed(eventType, string(OutcomeProcessed))
	return OutcomeProcessed, nil
}

// retryableFailure keeps undelivered events redeliverable. The provider only
// retries on a server error, so a client-coded failure here would strand the
// event after the claim was released.
func retryableFailure(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		if pkgerrors.MetadataFor(typed.Code()).HTTPStatus < 500 {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "event processing failed")
		}
	}
	return err
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		result, err := s.orders.Materialize(ctx, event)
		if err != nil {
			return err
		}
		if !result.Reused {
			s.notifier.OrderCompleted(ctx, result.Order)
		}
		return nil

	case stripe.EventTypeCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session")
		}
		s.notifier.SessionExpired(ctx, analyticstypes.SessionExpiredPayload{
			CheckoutSessionID: session.ID,
			Currency:          string(session.Currency),
			AmountCents:       session.AmountTotal,
		}, eventTime(event))
		return nil

	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent")
		}
		payload := analyticstypes.PaymentFailedPayload{
			PaymentIntentID: intent.ID,
			Currency:        string(intent.Currency),
			AmountCents:     intent.Amount,
		}
		if intent.LastPaymentError != nil {
			payload.FailureCode = string(intent.LastPaymentError.Code)
			payload.FailureMessage = intent.LastPaymentError.Msg
		}
		s.notifier.PaymentFailed(ctx, payload, eventTime(event))
		return nil

	case stripe.EventTypeAccountUpdated:
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode account")
		}
		return s.accounts.SyncAccount(ctx, &account)

	case stripe.EventTypeRefundCreated,
		stripe.EventTypeRefundUpdated,
		stripe.EventTypeChargeRefundUpdated:
		var refund stripe.Refund
		if err := json.Unmarshal(event.Data.Raw, &refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode refund")
		}
		order, err := s.refunds.Reconcile(ctx, &refund)
		if err != nil {
			return err
		}
		s.notifier.RefundReconciled(ctx, order)
		return nil

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode charge")
		}
		order, err := s.refunds.ReconcileCharge(ctx, &charge)
		if err != nil {
			return err
		}
		s.notifier.RefundReconciled(ctx, order)
		return nil
	}

	return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no handler for allowed event type %s", event.Type))
}

func eventTime(event *stripe.Event) time.Time {
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return time.Now().UTC()
}
