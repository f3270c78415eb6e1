package ledger

import (
	"context"

	"github.com/google/uuid"
)

// ProductSnapshot is the catalog data denormalised onto a line item
type ProductSnapshot struct {
	Ref  string
	Name string
	SKU  string
	Unit string
}

// CatalogLookup resolves product references. Implementations live outside
// the ledger; a missing ref is reported by omitting it from the result.
type CatalogLookup interface {
	LookupProducts(ctx context.Context, tenantID uuid.UUID, refs []string) (map[string]ProductSnapshot, error)
}

// Counterparty is the display data for a counterparty reference
type Counterparty struct {
	Ref   string
	Name  string
	Email string
}

// CounterpartyLookup resolves counterparty references. It returns
// shared.ErrNotFound when the reference is unknown.
type CounterpartyLookup interface {
	LookupCounterparty(ctx context.Context, tenantID uuid.UUID, ref string) (*Counterparty, error)
}
