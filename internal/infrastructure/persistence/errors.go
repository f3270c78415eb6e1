package persistence

import (
	"errors"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// notFound maps gorm's missing-row error to the domain sentinel
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// duplicateNumber maps a unique violation on insert to NUMBERING_COLLISION
func duplicateNumber(err error, number string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainErrorf(ledger.CodeNumberingCollision, "document number %s is already taken", number)
	}
	return err
}

// inTransaction reports whether db is bound to an open transaction
func inTransaction(db *gorm.DB) bool {
	_, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

// versionConflict is returned when the stored version is not the expected one
func versionConflict(what string) error {
	return shared.NewDomainErrorf(shared.ErrConcurrencyConflict.Code,
		"the %s has been modified by another request", what)
}
