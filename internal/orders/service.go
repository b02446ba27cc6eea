package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/internal/inventory"
	"github.com/makersrow/makersrow-backend/internal/shipping"
	"github.com/makersrow/makersrow-backend/pkg/db"
	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/enums"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

// MetadataProductKey is the provider-side product metadata key carrying our
// catalog product id.
const MetadataProductKey = "product_id"

var sessionExpand = []string{
	"line_items",
	"line_items.data.price.product",
	"payment_intent",
	"payment_intent.latest_charge",
}

type orderRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindByEventID(ctx context.Context, eventID string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	MarkInventoryAdjusted(ctx context.Context, orderID uuid.UUID, at time.Time) error
}

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type tenantResolver interface {
	Resolve(ctx context.Context, metadata map[string]string, accountID string) (*models.Tenant, error)
}

type inventoryBatcher interface {
	DecrementBatch(ctx context.Context, qtyByProduct map[uuid.UUID]int, autoArchive bool) ([]inventory.BatchOutcome, error)
}

type sessionFetcher interface {
	GetCheckoutSession(ctx context.Context, id, account string, expand ...string) (*stripe.CheckoutSession, error)
	GetPaymentIntent(ctx context.Context, id, account string, expand ...string) (*stripe.PaymentIntent, error)
}

// Result reports the materialized order and whether it already existed.
type Result struct {
	Order  *models.Order
	Reused bool
}

// Materializer converts a completed checkout event into a durable order
// exactly once. Redeliveries converge on the same order through the
// precheck and the session-id uniqueness constraint.
type Materializer struct {
	repo      orderRepository
	products  productFinder
	tenants   tenantResolver
	inventory inventoryBatcher
	resources sessionFetcher
	logg      *logger.Logger
	validate  *validator.Validate
}

func NewMaterializer(
	repo orderRepository,
	products productFinder,
	tenants tenantResolver,
	inv inventoryBatcher,
	resources sessionFetcher,
	logg *logger.Logger,
) (*Materializer, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if tenants == nil {
		return nil, fmt.Errorf("tenant resolver required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory batcher required")
	}
	if resources == nil {
		return nil, fmt.Errorf("resource fetcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Materializer{
		repo:      repo,
		products:  products,
		tenants:   tenants,
		inventory: inv,
		resources: resources,
		logg:      logg,
		validate:  validator.New(),
	}, nil
}

// Materialize runs precheck, resolution, and idempotent creation for one
// checkout.session.completed event.
func (m *Materializer) Materialize(ctx context.Context, event *stripe.Event) (*Result, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout event payload required")
	}

	var partial stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &partial); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if partial.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}

	if existing, found, err := m.precheck(ctx, partial.ID, event.ID); err != nil {
		return nil, err
	} else if found {
		return &Result{Order: existing, Reused: true}, nil
	}

	order, err := m.resolve(ctx, event, &partial)
	if err != nil {
		return nil, err
	}

	created, reused, err := m.create(ctx, order, partial.ID, event.ID)
	if err != nil {
		return nil, err
	}
	if reused {
		return &Result{Order: created, Reused: true}, nil
	}

	if err := m.adjustInventory(ctx, created); err != nil {
		return &Result{Order: created}, err
	}
	return &Result{Order: created}, nil
}

// precheck handles redelivery: the same event, or a distinct event carrying
// the same session, may already have produced an order. A found order whose
// inventory was never adjusted gets its batch run here.
func (m *Materializer) precheck(ctx context.Context, sessionID, eventID string) (*models.Order, bool, error) {
	order, err := m.repo.FindBySessionID(ctx, sessionID)
	if err == gorm.ErrRecordNotFound {
		order, err = m.repo.FindByEventID(ctx, eventID)
	}
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "precheck order lookup")
	}

	if order.InventoryAdjustedAt == nil && len(order.Items) > 0 {
		if err := m.adjustInventory(ctx, order); err != nil {
			return nil, false, err
		}
	}
	return order, true, nil
}

type normalizedLine struct {
	ProductID       uuid.UUID `validate:"required"`
	Name            string    `validate:"required"`
	UnitAmountCents int       `validate:"gte=0"`
	Qty             int       `validate:"gt=0"`
	SubtotalCents   int       `validate:"gte=0"`
	TaxCents        int       `validate:"gte=0"`
	TotalCents      int       `validate:"gte=0"`
}

func (m *Materializer) resolve(ctx context.Context, event *stripe.Event, partial *stripe.CheckoutSession) (*models.Order, error) {
	buyerRef := strings.TrimSpace(partial.ClientReferenceID)
	buyerEmail := ""
	if partial.CustomerDetails != nil {
		buyerEmail = strings.TrimSpace(partial.CustomerDetails.Email)
	}
	if buyerRef == "" {
		buyerRef = buyerEmail
	}
	if buyerRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer reference missing").
			WithDetails(map[string]any{"reason": "missing_buyer_reference"})
	}

	account := strings.TrimSpace(event.Account)
	if account == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "connected account missing").
			WithDetails(map[string]any{"reason": "missing_connected_account"})
	}

	full, err := m.resources.GetCheckoutSession(ctx, partial.ID, account, sessionExpand...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch checkout session")
	}

	if full.LineItems == nil || len(full.LineItems.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no line items").
			WithDetails(map[string]any{"reason": "missing_line_items"})
	}

	lines := make([]normalizedLine, 0, len(full.LineItems.Data))
	for _, item := range full.LineItems.Data {
		line, err := m.normalizeLine(item)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}

	tenant, err := m.tenants.Resolve(ctx, full.Metadata, account)
	if err != nil {
		return nil, err
	}

	if err := m.guardSingleTenant(ctx, lines, tenant.ID); err != nil {
		return nil, err
	}

	total := 0
	for _, line := range lines {
		total += line.TotalCents
	}

	pi := full.PaymentIntent
	if total <= 0 {
		// fully-discounted carts report zero line totals; fall back to the
		// captured amount
		pi, err = m.ensurePaymentIntent(ctx, full, account)
		if err != nil {
			return nil, err
		}
		if pi != nil {
			total = int(pi.AmountReceived)
		}
	}

	var charge *stripe.Charge
	if pi != nil {
		charge = pi.LatestCharge
	}
	address := shipping.Resolve(shipping.Sources{
		Session:       full,
		RawSession:    event.Data.Raw,
		PaymentIntent: pi,
		Charge:        charge,
	})

	currency := enums.CurrencyUSD
	if parsed, err := enums.ParseCurrency(string(full.Currency)); err == nil {
		currency = parsed
	} else if full.Currency != "" {
		m.logg.Warn(ctx, fmt.Sprintf("unknown currency %q on session %s, defaulting to USD", full.Currency, full.ID))
	}

	order := &models.Order{
		ID:                uuid.New(),
		BuyerRef:          buyerRef,
		TenantID:          tenant.ID,
		Currency:          currency,
		TotalCents:        total,
		Status:            enums.OrderStatusPaid,
		CheckoutSessionID: full.ID,
		EventID:           event.ID,
		ShippingAddress:   address,
	}
	if buyerEmail != "" {
		order.BuyerEmail = &buyerEmail
	}
	if pi != nil && pi.ID != "" {
		piID := pi.ID
		order.PaymentIntentID = &piID
	}
	if charge != nil && charge.ID != "" {
		chargeID := charge.ID
		order.ChargeID = &chargeID
	}

	for _, line := range lines {
		order.Items = append(order.Items, models.OrderLineItem{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ProductID:       line.ProductID,
			Name:            line.Name,
			UnitAmountCents: line.UnitAmountCents,
			Qty:             line.Qty,
			SubtotalCents:   line.SubtotalCents,
			TaxCents:        line.TaxCents,
			TotalCents:      line.TotalCents,
		})
	}

	return order, nil
}

func (m *Materializer) normalizeLine(item *stripe.LineItem) (*normalizedLine, error) {
	if item == nil || item.Price == nil || item.Price.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item missing product").
			WithDetails(map[string]any{"reason": "unresolvable_product_id"})
	}

	declared := strings.TrimSpace(item.Price.Product.Metadata[MetadataProductKey])
	if declared == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item product metadata id missing").
			WithDetails(map[string]any{"reason": "unresolvable_product_id"})
	}
	productID, err := uuid.Parse(declared)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item product metadata id is not a uuid").
			WithDetails(map[string]any{"reason": "unresolvable_product_id"})
	}

	name := item.Description
	if name == "" {
		name = item.Price.Product.Name
	}

	line := &normalizedLine{
		ProductID:       productID,
		Name:            name,
		UnitAmountCents: int(item.Price.UnitAmount),
		Qty:             int(item.Quantity),
		SubtotalCents:   int(item.AmountSubtotal),
		TaxCents:        int(item.AmountTax),
		TotalCents:      int(item.AmountTotal),
	}
	if err := m.validate.Struct(line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "line item failed validation")
	}
	return line, nil
}

// guardSingleTenant rejects carts mixing products from different sellers.
func (m *Materializer) guardSingleTenant(ctx context.Context, lines []normalizedLine, tenantID uuid.UUID) error {
	for _, line := range lines {
		product, err := m.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeValidation, "line item product not in catalog").
					WithDetails(map[string]any{"reason": "unresolvable_product_id", "product_id": line.ProductID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line item product")
		}
		if product.TenantID != tenantID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart mixes products from different tenants").
				WithDetails(map[string]any{"reason": "mixed_tenant_cart", "product_id": line.ProductID})
		}
	}
	return nil
}

func (m *Materializer) ensurePaymentIntent(ctx context.Context, full *stripe.CheckoutSession, account string) (*stripe.PaymentIntent, error) {
	if full.PaymentIntent != nil && full.PaymentIntent.AmountReceived > 0 {
		return full.PaymentIntent, nil
	}
	if full.PaymentIntent == nil || full.PaymentIntent.ID == "" {
		return full.PaymentIntent, nil
	}
	pi, err := m.resources.GetPaymentIntent(ctx, full.PaymentIntent.ID, account, "latest_charge")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment intent")
	}
	return pi, nil
}

// create persists the order. A uniqueness conflict means a concurrent
// delivery won the race; the existing order is read back and returned as
// success.
func (m *Materializer) create(ctx context.Context, order *models.Order, sessionID, eventID string) (*models.Order, bool, error) {
	err := m.repo.Create(ctx, order)
	if err == nil {
		return order, false, nil
	}
	if !db.IsConflict(err) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	m.logg.Info(ctx, fmt.Sprintf("order create conflict for session %s, reusing existing order", sessionID))
	existing, lookupErr := m.repo.FindBySessionID(ctx, sessionID)
	if lookupErr == gorm.ErrRecordNotFound {
		existing, lookupErr = m.repo.FindByEventID(ctx, eventID)
	}
	if lookupErr != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, lookupErr, "load order after conflict")
	}
	return existing, true, nil
}

// adjustInventory runs the decrement batch and stamps the order. Typed
// per-product failures are reported by the ledger and do not block the
// stamp; storage errors leave the stamp unset so a redelivery retries.
func (m *Materializer) adjustInventory(ctx context.Context, order *models.Order) error {
	qtyByProduct := make(map[uuid.UUID]int, len(order.Items))
	for _, item := range order.Items {
		qtyByProduct[item.ProductID] += item.Qty
	}
	if len(qtyByProduct) == 0 {
		return nil
	}

	_, err := m.inventory.DecrementBatch(ctx, qtyByProduct, true)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inventory batch")
	}

	now := time.Now().UTC()
	if err := m.repo.MarkInventoryAdjusted(ctx, order.ID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark inventory adjusted")
	}
	order.InventoryAdjustedAt = &now
	return nil
}
