// Package arithmetic recomputes an invoice's monetary figures from its
// line and tax data and compares them against the declared totals,
// implementing spec.md §4.10. It operates purely on canonical.Invoice
// — no XML, no I/O — grounded on
// original_source/src/services/validation/calculation_validator.py.
package arithmetic

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/diewo77/invoice-pipeline/canonical"
)

// DefaultTolerance is the ±0.02 currency-unit tolerance spec.md §4.10
// mandates for every comparison in this stage.
const DefaultTolerance = "0.02"

// Validate recomputes totals and returns the ERROR findings for every
// mismatch beyond tolerance. tolerance is a currency-unit decimal
// (e.g. 0.02); pass decimal.Zero for an exact match requirement.
func Validate(inv canonical.Invoice, tolerance decimal.Decimal) canonical.ValidationStep {
	var findings []canonical.Finding

	lineSum := decimal.Zero
	for _, l := range inv.Lines {
		lineSum = lineSum.Add(l.NetAmount)
	}
	if diff := lineSum.Sub(inv.Totals.LineExtensionSum).Abs(); diff.GreaterThan(tolerance) {
		findings = append(findings, mismatch(canonical.CodeCalcTotalMismatch,
			fmt.Sprintf("sum of line net amounts %s does not match declared line-extension amount %s (diff %s)",
				lineSum.StringFixed(2), inv.Totals.LineExtensionSum.StringFixed(2), diff.StringFixed(2))))
	}

	taxSum := decimal.Zero
	for _, tb := range inv.TaxBreakdown {
		expected := bankersRound2(tb.TaxableBase.Mul(tb.Rate).Div(decimal.NewFromInt(100)))
		taxSum = taxSum.Add(tb.TaxAmount)
		if diff := expected.Sub(tb.TaxAmount).Abs(); diff.GreaterThan(tolerance) {
			findings = append(findings, mismatch(canonical.CodeCalcTaxMismatch,
				fmt.Sprintf("tax category %s (%s%%): recomputed %s vs declared %s (diff %s)",
					tb.CategoryCode, tb.Rate.StringFixed(2), expected.StringFixed(2), tb.TaxAmount.StringFixed(2), diff.StringFixed(2))))
		}
	}

	expectedTaxSum := inv.Totals.TaxInclusive.Sub(inv.Totals.TaxExclusive)
	if diff := taxSum.Sub(expectedTaxSum).Abs(); diff.GreaterThan(tolerance) {
		findings = append(findings, mismatch(canonical.CodeCalcTaxMismatch,
			fmt.Sprintf("sum of tax breakdown amounts %s does not match tax-inclusive minus tax-exclusive %s (diff %s)",
				taxSum.StringFixed(2), expectedTaxSum.StringFixed(2), diff.StringFixed(2))))
	}

	expectedPayable := inv.Totals.TaxInclusive.Sub(inv.Totals.Prepaid)
	if diff := expectedPayable.Sub(inv.Totals.Payable).Abs(); diff.GreaterThan(tolerance) {
		findings = append(findings, mismatch(canonical.CodeCalcPayableMismatch,
			fmt.Sprintf("tax-inclusive minus prepaid %s does not match declared payable %s (diff %s)",
				expectedPayable.StringFixed(2), inv.Totals.Payable.StringFixed(2), diff.StringFixed(2))))
	}

	outcome := canonical.OutcomeSuccess
	if len(findings) > 0 {
		outcome = canonical.OutcomeErrors
	}
	return canonical.ValidationStep{Stage: "arithmetic", Outcome: outcome, Findings: findings}
}

func mismatch(code, message string) canonical.Finding {
	return canonical.Finding{Severity: canonical.SeverityError, Code: code, Message: message}
}

// bankersRound2 rounds d to 2 decimal places using round-half-to-even,
// as spec.md §4.10 requires for the tax recomputation.
func bankersRound2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
