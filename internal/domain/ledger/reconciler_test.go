package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_ToleranceOnDeclaredTotal(t *testing.T) {
	items := []LineItemInput{line("X", "2", "100", "0", "15")}

	tests := []struct {
		name     string
		subtotal string
		total    string
		wantErr  bool
	}{
		{"exact", "200", "215", false},
		{"one cent over", "200", "215.01", false},
		{"one cent under", "200", "214.99", false},
		{"one dollar over", "200", "216", true},
		{"subtotal off", "201", "215", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Reconcile(ReconcileInput{
				Items:    items,
				Declared: Totals{Subtotal: dec(tt.subtotal), TotalAmount: dec(tt.total)},
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInconsistentTotals))
				assert.Nil(t, rec)
				return
			}
			require.NoError(t, err)
			assert.True(t, rec.Totals.Subtotal.Equal(dec("200")))
			assert.True(t, rec.Totals.TaxAmount.Equal(dec("15")))
			assert.True(t, rec.Totals.TotalAmount.Equal(dec("215")), "canonical total is stored, not the declared one")
		})
	}
}

func TestReconcile_LineTotals(t *testing.T) {
	items := []LineItemInput{
		line("A", "3", "10", "5", "2"),
		line("B", "1.5", "20", "0", "0"),
	}
	rec, err := Reconcile(ReconcileInput{Items: items, Declared: ComputeTotals(items, nil)})
	require.NoError(t, err)

	require.Len(t, rec.Items, 2)
	assert.True(t, rec.Items[0].LineTotal.Equal(dec("27")))
	assert.True(t, rec.Items[1].LineTotal.Equal(dec("30")))
	assert.True(t, rec.Totals.Subtotal.Equal(dec("60")))
	assert.True(t, rec.Totals.DiscountAmount.Equal(dec("5")))
	assert.True(t, rec.Totals.TotalAmount.Equal(dec("57")))
}

func TestReconcile_TaxOverride(t *testing.T) {
	items := []LineItemInput{line("A", "1", "100", "0", "3")}
	override := dec("10")

	rec, err := Reconcile(ReconcileInput{
		Items:       items,
		Declared:    Totals{Subtotal: dec("100"), TotalAmount: dec("110")},
		TaxOverride: &override,
	})
	require.NoError(t, err)
	assert.True(t, rec.Totals.TaxAmount.Equal(dec("10")))
	assert.True(t, rec.Totals.TotalAmount.Equal(dec("110")))

	negative := dec("-1")
	_, err = Reconcile(ReconcileInput{Items: items, TaxOverride: &negative})
	assert.Error(t, err)
}

func TestReconcile_InvalidLines(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItemInput
	}{
		{"no items", nil},
		{"zero quantity", []LineItemInput{line("A", "0", "10", "0", "0")}},
		{"negative price", []LineItemInput{line("A", "1", "-10", "0", "0")}},
		{"negative discount", []LineItemInput{line("A", "1", "10", "-1", "0")}},
		{"negative tax", []LineItemInput{line("A", "1", "10", "0", "-1")}},
		{"missing product", []LineItemInput{line(" ", "1", "10", "0", "0")}},
		{"discount above gross", []LineItemInput{line("A", "1", "10", "11", "0")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconcile(ReconcileInput{Items: tt.items, Declared: ComputeTotals(tt.items, nil)})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidLineItem), "got %v", err)
		})
	}
}

func TestComputeTotals(t *testing.T) {
	items := []LineItemInput{line("A", "2", "100", "10", "15")}
	totals := ComputeTotals(items, nil)
	assert.True(t, totals.Subtotal.Equal(dec("200")))
	assert.True(t, totals.TotalAmount.Equal(dec("205")))

	override := decimal.Zero
	totals = ComputeTotals(items, &override)
	assert.True(t, totals.TotalAmount.Equal(dec("190")))
}
