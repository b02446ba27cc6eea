package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/internal/inventory"
	"github.com/makersrow/makersrow-backend/internal/products"
	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/enums"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

type stubTenantResolver struct {
	tenant *models.Tenant
}

func (s stubTenantResolver) Resolve(context.Context, map[string]string, string) (*models.Tenant, error) {
	if s.tenant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant unresolved")
	}
	return s.tenant, nil
}

type stubResources struct {
	session *stripe.CheckoutSession
	pi      *stripe.PaymentIntent
}

func (s stubResources) GetCheckoutSession(context.Context, string, string, ...string) (*stripe.CheckoutSession, error) {
	return s.session, nil
}

func (s stubResources) GetPaymentIntent(context.Context, string, string, ...string) (*stripe.PaymentIntent, error) {
	return s.pi, nil
}

type materializerFixture struct {
	db           *gorm.DB
	materializer *Materializer
	tenant       *models.Tenant
}

func newFixture(t *testing.T, session *stripe.CheckoutSession) *materializerFixture {
	t.Helper()

	gormDB := newTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test"})

	tenant := &models.Tenant{ID: uuid.New(), Name: "Glaze & Co", Status: enums.TenantStatusActive}
	if err := gormDB.Create(tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	ledger, err := inventory.NewLedger(gormDB, logg, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	materializer, err := NewMaterializer(
		NewRepository(gormDB),
		products.NewRepository(gormDB),
		stubTenantResolver{tenant: tenant},
		ledger,
		stubResources{session: session},
		logg,
	)
	if err != nil {
		t.Fatalf("new materializer: %v", err)
	}

	return &materializerFixture{db: gormDB, materializer: materializer, tenant: tenant}
}

func (f *materializerFixture) seedProduct(t *testing.T, tenantID uuid.UUID, stock int) uuid.UUID {
	t.Helper()
	product := &models.Product{ID: uuid.New(), TenantID: tenantID, Name: "Stoneware Mug", PriceCents: 1000, Active: true}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	item := &models.InventoryItem{ProductID: product.ID, StockQty: stock, Tracked: true}
	if err := f.db.Create(item).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product.ID
}

func (f *materializerFixture) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var item models.InventoryItem
	if err := f.db.First(&item, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return item.StockQty
}

func fullSession(sessionID string, lines ...*stripe.LineItem) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:                sessionID,
		ClientReferenceID: "buyer_1",
		Currency:          stripe.CurrencyUSD,
		CustomerDetails:   &stripe.CheckoutSessionCustomerDetails{Email: "buyer@example.com"},
		LineItems:         &stripe.LineItemList{Data: lines},
		PaymentIntent:     &stripe.PaymentIntent{ID: "pi_1", AmountReceived: 2000},
	}
}

func lineItem(productID uuid.UUID, qty int64, unitCents int64) *stripe.LineItem {
	total := unitCents * qty
	return &stripe.LineItem{
		Description:    "Stoneware Mug",
		Quantity:       qty,
		AmountSubtotal: total,
		AmountTotal:    total,
		Price: &stripe.Price{
			UnitAmount: unitCents,
			Product: &stripe.Product{
				ID:       "prod_stripe",
				Name:     "Stoneware Mug",
				Metadata: map[string]string{MetadataProductKey: productID.String()},
			},
		},
	}
}

// checkoutEvent carries the session object the way the provider delivers it:
// the event payload is the session itself, buyer identity included.
func checkoutEvent(eventID, sessionID string) *stripe.Event {
	raw, _ := json.Marshal(map[string]any{
		"id":                  sessionID,
		"client_reference_id": "buyer_1",
		"customer_details":    map[string]any{"email": "buyer@example.com"},
	})
	return &stripe.Event{
		ID:      eventID,
		Account: "acct_t1",
		Type:    "checkout.session.completed",
		Data:    &stripe.EventData{Raw: raw},
	}
}

func anonymousCheckoutEvent(eventID, sessionID string) *stripe.Event {
	raw, _ := json.Marshal(map[string]any{"id": sessionID})
	return &stripe.Event{
		ID:      eventID,
		Account: "acct_t1",
		Type:    "checkout.session.completed",
		Data:    &stripe.EventData{Raw: raw},
	}
}

func validationReason(t *testing.T, err error) string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected reason details, got %v", typed.Details())
	}
	reason, _ := details["reason"].(string)
	return reason
}

func TestMaterializeCreatesOrderAndDecrementsStock(t *testing.T) {
	t.Parallel()

	session := fullSession("cs_1")
	fixture := newFixture(t, session)
	productID := fixture.seedProduct(t, fixture.tenant.ID, 5)
	session.LineItems.Data = []*stripe.LineItem{lineItem(productID, 2, 1000)}

	result, err := fixture.materializer.Materialize(context.Background(), checkoutEvent("evt_1", "cs_1"))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if result.Reused {
		t.Fatal("expected fresh order")
	}

	order := result.Order
	if order.TotalCents != 2000 {
		t.Fatalf("expected total 2000, got %d", order.TotalCents)
	}
	if order.TenantID != fixture.tenant.ID {
		t.Fatalf("unexpected tenant: %s", order.TenantID)
	}
	if order.InventoryAdjustedAt == nil {
		t.Fatal("inventory adjustment not stamped")
	}
	if got := fixture.stockOf(t, productID); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}
}

func TestMaterializeRedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	session := fullSession("cs_1")
	fixture := newFixture(t, session)
	productID := fixture.seedProduct(t, fixture.tenant.ID, 5)
	session.LineItems.Data = []*stripe.LineItem{lineItem(productID, 2, 1000)}

	first, err := fixture.materializer.Materialize(context.Background(), checkoutEvent("evt_1", "cs_1"))
	if err != nil {
		t.Fatalf("first materialize: %v", err)
	}

	second, err := fixture.materializer.Materialize(context.Background(), checkoutEvent("evt_1", "cs_1"))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !second.Reused {
		t.Fatal("expected reused order")
	}
	if second.Order.ID != first.Order.ID {
		t.Fatalf("expected same order id, got %s and %s", first.Order.ID, second.Order.ID)
	}
	if got := fixture.stockOf(t, productID); got != 3 {
		t.Fatalf("stock decremented twice: %d", got)
	}

	// a distinct event carrying the same session also converges
	third, err := fixture.materializer.Materialize(context.Background(), checkoutEvent("evt_2", "cs_1"))
	if err != nil {
		t.Fatalf("same-session event: %v", err)
	}
	if !third.Reused || third.Order.ID != first.Order.ID {
		t.Fatalf("expected converged order, got %+v", third)
	}
}

func TestMaterializeInsufficientStockStillCreatesOrder(t *testing.T) {
	t.Parallel()

	session := fullSession("cs_short")
	fixture := newFixture(t, session)
	productID := fixture.seedProduct(t, fixture.tenant.ID, 1)
	session.LineItems.Data = []*stripe.LineItem{lineItem(productID, 2, 1000)}

	result, err := fixture.materializer.Materialize(context.Background(), checkoutEvent("evt_short", "cs_short"))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if result.Order == nil {
		t.Fatal("expected order despite shortfall")
	}
	if got := fixture.stockOf(t, productID); got != 1 {
		t.Fatalf("stock mutated on shortfall: %d", got)
	}
	if result.Order.InventoryAdjustedAt == nil {
		t.Fatal("expected adjustment stamp even on reported shortfall")
	}
}

func TestMaterializeMixedTenantCartRejected(t *testing.T) {
	t.Parallel()

	session := fullSession("cs_mixed")
	fixture := newFixture(t, session)
	ownID := fixture.seedProduct(t, fixture.tenant.ID, 5)

	otherTenant := &models.Tenant{ID: uuid.New(), Name: "Other Seller", Status: enums.TenantStatusActive}
	if err := fixture.db.Create(otherTenant).Error; err != nil {
		t.Fatalf("seed other tenant: %v", err)
	}
	foreignID := fixture.seedProduct(t, otherTenant.ID, 5)

	session.LineItems.Data = []*stripe.LineItem{
		lineItem(ownID, 1, 1000),
		lineItem(foreignID, 1, 1500),
	}

	_, err := fixture.materializer.Materialize(context.Background(), checkoutEvent("evt_mixed", "cs_mixed"))
	if err == nil {
		t.Fatal("expected mixed tenant rejection")
	}
	if reason := validationReason(t, err); reason != "mixed_tenant_cart" {
		t.Fatalf("expected mixed_tenant_cart reason, got %q", reason)
	}

	var count int64
	if err := fixture.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("order created despite mixed cart: %d", count)
	}
}

func TestMaterializeMissingLineItemsRejected(t *testing.T) {
	t.Parallel()

	session := fullSession("cs_empty")
	fixture := newFixture(t, session)
	session.LineItems.Data = nil

	_, err := fixture.materializer.Materialize(context.Background(), checkoutEvent("evt_empty", "cs_empty"))
	if err == nil {
		t.Fatal("expected missing line items rejection")
	}
	if reason := validationReason(t, err); reason != "missing_line_items" {
		t.Fatalf("expected missing_line_items reason, got %q", reason)
	}
}

func TestMaterializeRejectsSessionWithoutBuyerIdentity(t *testing.T) {
	t.Parallel()

	session := fullSession("cs_anon")
	fixture := newFixture(t, session)

	_, err := fixture.materializer.Materialize(context.Background(), anonymousCheckoutEvent("evt_anon", "cs_anon"))
	if err == nil {
		t.Fatal("expected rejection without buyer identity")
	}
	if reason := validationReason(t, err); reason != "missing_buyer_reference" {
		t.Fatalf("expected missing_buyer_reference reason, got %q", reason)
	}
}

func TestMaterializeFallsBackToAmountReceived(t *testing.T) {
	t.Parallel()

	session := fullSession("cs_discount")
	fixture := newFixture(t, session)
	productID := fixture.seedProduct(t, fixture.tenant.ID, 5)
	line := lineItem(productID, 1, 0)
	line.AmountSubtotal = 0
	line.AmountTotal = 0
	session.LineItems.Data = []*stripe.LineItem{line}
	session.PaymentIntent = &stripe.PaymentIntent{ID: "pi_disc", AmountReceived: 350}

	result, err := fixture.materializer.Materialize(context.Background(), checkoutEvent("evt_disc", "cs_discount"))
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if result.Order.TotalCents != 350 {
		t.Fatalf("expected fallback total 350, got %d", result.Order.TotalCents)
	}
}
