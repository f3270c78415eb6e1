package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NumberingPeriod is the YYYYMM period a document number belongs to
func NumberingPeriod(t time.Time) string {
	return t.UTC().Format("200601")
}

// FormatDocumentNumber renders PREFIX-YYYYMM-NNNN. The counter widens past
// four digits instead of wrapping.
func FormatDocumentNumber(kind DocumentKind, period string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", kind.NumberPrefix(), period, seq)
}

// DocumentNumber is a parsed document number
type DocumentNumber struct {
	Kind   DocumentKind
	Period string
	Seq    int64
}

// ParseDocumentNumber splits a number produced by FormatDocumentNumber
func ParseDocumentNumber(s string) (DocumentNumber, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[1]) != 6 {
		return DocumentNumber{}, validationError("malformed document number %q", s)
	}
	var kind DocumentKind
	for _, k := range AllDocumentKinds() {
		if k.NumberPrefix() == parts[0] {
			kind = k
		}
	}
	if kind == "" {
		return DocumentNumber{}, validationError("unknown document number prefix %q", parts[0])
	}
	if _, err := time.Parse("200601", parts[1]); err != nil {
		return DocumentNumber{}, validationError("malformed period in document number %q", s)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 {
		return DocumentNumber{}, validationError("malformed sequence in document number %q", s)
	}
	return DocumentNumber{Kind: kind, Period: parts[1], Seq: seq}, nil
}

// DocumentNumberGenerator hands out the next number for (tenant, kind,
// period). Implementations must serialise concurrent callers with a lock
// held by the surrounding transaction.
type DocumentNumberGenerator interface {
	Next(ctx context.Context, tenantID uuid.UUID, kind DocumentKind, at time.Time) (string, error)
}

// IsNumberingCollision reports whether err signals a duplicate number that
// the creation transaction may retry
func IsNumberingCollision(err error) bool {
	return errors.Is(err, ErrNumberingCollision)
}
