package tenants

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/makersrow/makersrow-backend/pkg/db/models"
	"github.com/makersrow/makersrow-backend/pkg/enums"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

// MetadataTenantKey is the checkout metadata key sellers set when creating
// a session, declaring which tenant owns the sale.
const MetadataTenantKey = "tenant_id"

// MetadataSellerAccountKey optionally mirrors the connected account id in
// metadata; a mismatch against the event's account is logged, never fatal.
const MetadataSellerAccountKey = "seller_account"

type tenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindByStripeAccount(ctx context.Context, accountID string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
}

// Service resolves the owning tenant for inbound events and keeps tenant
// payment capabilities in sync with the provider.
type Service struct {
	repo tenantRepository
	logg *logger.Logger
}

func NewService(repo tenantRepository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Resolve finds the tenant for a checkout event. A metadata-declared tenant
// id wins; otherwise the connected account id is used. Neither resolving is
// a validation failure surfaced to the admitter.
func (s *Service) Resolve(ctx context.Context, metadata map[string]string, accountID string) (*models.Tenant, error) {
	if declared := strings.TrimSpace(metadata[MetadataTenantKey]); declared != "" {
		id, err := uuid.Parse(declared)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant metadata id is not a uuid")
		}
		tenant, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant not found for metadata id")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant by id")
		}
		s.warnOnAccountMismatch(ctx, metadata, accountID, tenant)
		return tenant, nil
	}

	if strings.TrimSpace(accountID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant unresolved: no metadata id and no connected account")
	}

	tenant, err := s.repo.FindByStripeAccount(ctx, accountID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant unresolved for connected account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant by connected account")
	}
	s.warnOnAccountMismatch(ctx, metadata, accountID, tenant)
	return tenant, nil
}

func (s *Service) warnOnAccountMismatch(ctx context.Context, metadata map[string]string, accountID string, tenant *models.Tenant) {
	declared := strings.TrimSpace(metadata[MetadataSellerAccountKey])
	if declared == "" || accountID == "" || declared == accountID {
		return
	}
	ctx = s.logg.WithTenantID(ctx, tenant.ID.String())
	s.logg.Warn(ctx, fmt.Sprintf("seller account metadata %s disagrees with event account %s", declared, accountID))
}

// SyncAccount applies an account.updated event: payment capability flags and
// the derived status. Unknown accounts are logged and skipped.
func (s *Service) SyncAccount(ctx context.Context, account *stripe.Account) error {
	if account == nil || account.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "account payload required")
	}

	tenant, err := s.repo.FindByStripeAccount(ctx, account.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			s.logg.Warn(ctx, fmt.Sprintf("account.updated for unknown account %s", account.ID))
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant for account sync")
	}

	status := enums.TenantStatusActive
	if !account.ChargesEnabled || !account.PayoutsEnabled {
		status = enums.TenantStatusRestricted
	}

	if tenant.ChargesEnabled == account.ChargesEnabled &&
		tenant.PayoutsEnabled == account.PayoutsEnabled &&
		tenant.Status == status {
		return nil
	}

	tenant.ChargesEnabled = account.ChargesEnabled
	tenant.PayoutsEnabled = account.PayoutsEnabled
	tenant.Status = status
	if err := s.repo.Update(ctx, tenant); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tenant capabilities")
	}

	ctx = s.logg.WithTenantID(ctx, tenant.ID.String())
	s.logg.Info(ctx, fmt.Sprintf("tenant capabilities synced: status=%s", status))
	return nil
}
