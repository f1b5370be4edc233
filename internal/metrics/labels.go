package metrics

import "sync"

const (
	// OtherTenant labels every tenant past the label budget.
	OtherTenant = "other"

	// DefaultTenantLabelLimit is the number of distinct unlisted tenants that
	// get their own label.
	DefaultTenantLabelLimit = 50

	invalidTenant = "invalid"
)

// TenantLabels keeps the tenant label set of the per-tenant counters
// bounded. Tenants accepted by the allow func always keep their own label.
// Other tenants get one while the budget lasts and share OtherTenant after.
type TenantLabels struct {
	allow func(string) bool
	limit int

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewTenantLabels creates a label set. allow may be nil.
func NewTenantLabels(limit int, allow func(string) bool) *TenantLabels {
	if limit < 0 {
		limit = 0
	}
	return &TenantLabels{allow: allow, limit: limit, seen: make(map[string]struct{})}
}

// Label returns the counter label for tenant.
func (l *TenantLabels) Label(tenant string) string {
	if tenant == OtherTenant || tenant == invalidTenant {
		return OtherTenant
	}
	if l.allow != nil && l.allow(tenant) {
		return tenant
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[tenant]; ok {
		return tenant
	}
	if len(l.seen) >= l.limit {
		return OtherTenant
	}
	l.seen[tenant] = struct{}{}
	return tenant
}

// InvalidTenantLabel labels records rejected for a malformed tenant.
func InvalidTenantLabel() string { return invalidTenant }
