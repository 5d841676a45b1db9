package arithmetic

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/diewo77/invoice-pipeline/canonical"
)

var tolerance = decimal.RequireFromString("0.02")

func validInvoice() canonical.Invoice {
	return canonical.Invoice{
		Lines: []canonical.InvoiceLine{
			{NetAmount: decimal.RequireFromString("50.00")},
		},
		TaxBreakdown: []canonical.TaxBreakdown{
			{CategoryCode: "S", Rate: decimal.RequireFromString("19"), TaxableBase: decimal.RequireFromString("50.00"), TaxAmount: decimal.RequireFromString("9.50")},
		},
		Totals: canonical.Totals{
			LineExtensionSum: decimal.RequireFromString("50.00"),
			TaxExclusive:     decimal.RequireFromString("50.00"),
			TaxInclusive:     decimal.RequireFromString("59.50"),
			Payable:          decimal.RequireFromString("59.50"),
		},
	}
}

func TestValidateHappyPath(t *testing.T) {
	step := Validate(validInvoice(), tolerance)
	if step.Outcome != canonical.OutcomeSuccess {
		t.Fatalf("expected SUCCESS, got %s with findings %+v", step.Outcome, step.Findings)
	}
}

func TestValidateDetectsLineExtensionMismatch(t *testing.T) {
	inv := validInvoice()
	inv.Totals.LineExtensionSum = decimal.RequireFromString("55.00")
	step := Validate(inv, tolerance)
	if step.Outcome != canonical.OutcomeErrors {
		t.Fatalf("expected ERRORS, got %s", step.Outcome)
	}
	found := false
	for _, f := range step.Findings {
		if f.Code == canonical.CodeCalcTotalMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected CALC_TOTAL_MISMATCH, got %+v", step.Findings)
	}
}

func TestValidateDetectsTaxMismatch(t *testing.T) {
	inv := validInvoice()
	inv.TaxBreakdown[0].TaxAmount = decimal.RequireFromString("5.00")
	step := Validate(inv, tolerance)
	if step.Outcome != canonical.OutcomeErrors {
		t.Fatalf("expected ERRORS, got %s", step.Outcome)
	}
}

func TestValidateDetectsPayableMismatch(t *testing.T) {
	inv := validInvoice()
	inv.Totals.Payable = decimal.RequireFromString("100.00")
	step := Validate(inv, tolerance)
	found := false
	for _, f := range step.Findings {
		if f.Code == canonical.CodeCalcPayableMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected CALC_PAYABLE_MISMATCH, got %+v", step.Findings)
	}
}

func TestValidateWithinToleranceIsSuccess(t *testing.T) {
	inv := validInvoice()
	inv.Totals.LineExtensionSum = decimal.RequireFromString("50.01")
	step := Validate(inv, tolerance)
	if step.Outcome != canonical.OutcomeSuccess {
		t.Fatalf("expected SUCCESS within tolerance, got %s: %+v", step.Outcome, step.Findings)
	}
}
