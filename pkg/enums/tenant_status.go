package enums

// TenantStatus reflects whether a seller can currently take payments.
type TenantStatus string

const (
	TenantStatusActive     TenantStatus = "active"
	TenantStatusRestricted TenantStatus = "restricted"
)

// IsValid reports whether the value is a known TenantStatus.
func (t TenantStatus) IsValid() bool {
	return t == TenantStatusActive || t == TenantStatusRestricted
}
