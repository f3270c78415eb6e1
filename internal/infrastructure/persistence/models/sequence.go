package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentSequenceModel holds the last number issued for one tenant, kind
// and period. The row is locked while the next number is taken.
type DocumentSequenceModel struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"type:varchar(20);primaryKey"`
	Period    string    `gorm:"type:varchar(6);primaryKey"`
	LastSeq   int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// LedgerModels lists every model of the ledger schema in dependency order.
func LedgerModels() []any {
	return []any{
		&DocumentModel{},
		&DocumentItemModel{},
		&PaymentModel{},
		&AllocationModel{},
		&ReturnModel{},
		&ReturnItemModel{},
		&DocumentSequenceModel{},
	}
}
