// Package businessvalidate implements the three-way match against the
// read-only ERP database, spec.md §4.12. Grounded on
// original_source/src/services/validation/business_validator.py for
// the step ordering and stop conditions.
package businessvalidate

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/erp"
)

// Validator runs the five-step business check.
type Validator struct {
	erp *erp.Adapter
}

func New(a *erp.Adapter) *Validator {
	return &Validator{erp: a}
}

// Validate runs the three-way match. tolerance is the same
// currency-unit tolerance used by the arithmetic stage.
func (v *Validator) Validate(ctx context.Context, inv canonical.Invoice, tolerance decimal.Decimal) (canonical.ValidationStep, error) {
	var findings []canonical.Finding

	// 1. Vendor lookup.
	if inv.Seller.VATID == "" {
		return terminal(append(findings, f(canonical.SeverityError, canonical.CodeERPVendorUnknown, "invoice has no seller VAT id"))), nil
	}
	vendor, err := v.erp.FindVendorByVATID(ctx, inv.Seller.VATID)
	if err != nil {
		return canonical.ValidationStep{}, err
	}
	if vendor == nil {
		return terminal(append(findings, f(canonical.SeverityError, canonical.CodeERPVendorUnknown,
			"no vendor registered for VAT id "+inv.Seller.VATID))), nil
	}
	if !vendor.Active {
		findings = append(findings, f(canonical.SeverityWarning, canonical.CodeERPVendorInactive,
			"vendor "+vendor.Name+" is registered but marked inactive"))
	}

	// 2. Duplicate check.
	dup, err := v.erp.IsDuplicateInvoice(ctx, vendor.ID, inv.InvoiceNumber)
	if err != nil {
		return canonical.ValidationStep{}, err
	}
	if dup {
		return terminal(append(findings, f(canonical.SeverityFatal, canonical.CodeERPDuplicate,
			"invoice number "+inv.InvoiceNumber+" already recorded for this vendor"))), nil
	}

	// 3. Bank validation — does not stop.
	if len(inv.BankDetails) > 0 {
		registered, err := v.erp.GetVendorBankDetails(ctx, vendor.ID)
		if err != nil {
			return canonical.ValidationStep{}, err
		}
		known := make(map[string]bool, len(registered))
		for _, b := range registered {
			known[b.IBAN] = true
		}
		for _, bd := range inv.BankDetails {
			if !known[bd.IBAN] {
				findings = append(findings, f(canonical.SeverityError, canonical.CodeERPBankMismatch,
					"IBAN "+bd.IBAN+" is not registered for this vendor"))
			}
		}
	}

	// 4. Purchase-order check.
	if inv.PurchaseOrderRef == "" {
		findings = append(findings, f(canonical.SeverityInfo, "PO_NOT_REFERENCED", "no purchase order reference present, skipping three-way match"))
		return terminal(findings), nil
	}

	po, err := v.erp.GetPurchaseOrder(ctx, inv.PurchaseOrderRef, vendor.ID)
	if err != nil {
		return canonical.ValidationStep{}, err
	}
	if po == nil {
		findings = append(findings, f(canonical.SeverityError, canonical.CodeERPPOUnknown,
			"purchase order "+inv.PurchaseOrderRef+" not found for this vendor"))
		return terminal(findings), nil
	}
	if !po.OpenForInvoicing() {
		findings = append(findings, f(canonical.SeverityError, canonical.CodeERPPOClosed,
			"purchase order "+inv.PurchaseOrderRef+" is not open for invoicing"))
		return terminal(findings), nil
	}

	// 5. Three-way match.
	findings = append(findings, threeWayMatch(inv, *po, tolerance)...)

	return terminal(findings), nil
}

func threeWayMatch(inv canonical.Invoice, po erp.PurchaseOrder, tolerance decimal.Decimal) []canonical.Finding {
	var findings []canonical.Finding

	poTotalNet, err := decimal.NewFromString(po.TotalNet)
	if err != nil {
		poTotalNet = decimal.Zero
	}
	diff := inv.Totals.TaxExclusive.Sub(poTotalNet)
	switch {
	case diff.Abs().LessThanOrEqual(tolerance):
		// SUCCESS: no finding.
	case diff.LessThan(decimal.Zero):
		findings = append(findings, f(canonical.SeverityWarning, canonical.CodeERPPOPartial,
			"invoice tax-exclusive total is less than the PO net total; partial billing"))
	default:
		findings = append(findings, f(canonical.SeverityError, canonical.CodeERPPOOverbill,
			"invoice tax-exclusive total exceeds the PO net total"))
	}

	lineByID := make(map[string]erp.PurchaseOrderLine, len(po.Lines))
	for _, l := range po.Lines {
		lineByID[l.ItemIdentifier] = l
	}

	for _, line := range inv.Lines {
		if line.ItemID == "" {
			findings = append(findings, atLine(line.LineID, canonical.SeverityWarning, canonical.CodeERPLineUnidentified,
				"invoice line has no item identifier to match against the PO"))
			continue
		}
		poLine, ok := lineByID[line.ItemID]
		if !ok {
			findings = append(findings, atLine(line.LineID, canonical.SeverityError, canonical.CodeERPLineUnknown,
				"item identifier "+line.ItemID+" not found on purchase order "+po.Number))
			continue
		}
		openQty, err := decimal.NewFromString(poLine.QuantityOpen)
		if err != nil {
			openQty = decimal.Zero
		}
		if line.Quantity.GreaterThan(openQty) {
			findings = append(findings, atLine(line.LineID, canonical.SeverityError, canonical.CodeERPQtyExceeded,
				"invoice line quantity for "+line.ItemID+" exceeds the PO's remaining open quantity"))
		}
	}

	return findings
}

func terminal(findings []canonical.Finding) canonical.ValidationStep {
	outcome := canonical.OutcomeSuccess
	if hasSeverity(findings, canonical.SeverityFatal) {
		outcome = canonical.OutcomeFatal
	} else if hasSeverity(findings, canonical.SeverityError) {
		outcome = canonical.OutcomeErrors
	} else if hasSeverity(findings, canonical.SeverityWarning) {
		outcome = canonical.OutcomeWarnings
	}
	return canonical.ValidationStep{Stage: "business", Outcome: outcome, Findings: findings}
}

func hasSeverity(findings []canonical.Finding, sev canonical.Severity) bool {
	for _, fnd := range findings {
		if fnd.Severity == sev {
			return true
		}
	}
	return false
}

func f(sev canonical.Severity, code, message string) canonical.Finding {
	return canonical.Finding{Severity: sev, Code: code, Message: message}
}

// atLine sets a finding's location to the invoice line it concerns,
// matching original_source's business_validator.py which sets
// location=f"Line {inv_line.line_id}" on the same three checks.
func atLine(lineID string, sev canonical.Severity, code, message string) canonical.Finding {
	loc := "Line " + lineID
	return canonical.Finding{Severity: sev, Code: code, Message: message, XPath: loc, Field: loc}
}
