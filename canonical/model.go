// Package canonical defines the normalised invoice representation
// (spec.md §3) that both mappers produce and that every downstream
// validation stage consumes. No mapper-specific or syntax-specific
// detail leaks into this package.
package canonical

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType distinguishes an invoice from a credit note.
type DocumentType string

const (
	DocumentInvoice           DocumentType = "Invoice"
	DocumentCreditNote        DocumentType = "CreditNote"
	DocumentInvoiceCorrection DocumentType = "InvoiceCorrection"
)

// Party is a seller or buyer.
type Party struct {
	Name           string
	VATID          string // optional; two-letter ISO 3166-1 alpha-2 prefix when present
	CountryCode    string // mandatory
	AddressLine    string
	City           string
	PostalCode     string
}

// InvoiceLine is one line item.
type InvoiceLine struct {
	LineID       string
	ItemName     string
	ItemID       string // optional HAN/EAN/GTIN or seller/buyer assigned id
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	NetAmount    decimal.Decimal
	TaxCategory  string
	TaxRate      decimal.Decimal // percentage, e.g. 19 for 19%
}

// TaxBreakdown is one VAT category/rate bucket.
type TaxBreakdown struct {
	CategoryCode string
	Rate         decimal.Decimal
	TaxableBase  decimal.Decimal
	TaxAmount    decimal.Decimal
}

// BankDetails is one payee bank account referenced by the invoice.
type BankDetails struct {
	IBAN string // normalised uppercase, no spaces
	BIC  string
}

// Totals holds the document-level monetary summation.
type Totals struct {
	LineExtensionSum decimal.Decimal
	TaxExclusive     decimal.Decimal
	TaxInclusive     decimal.Decimal
	Payable          decimal.Decimal
	Prepaid          decimal.Decimal // defaults to zero
}

// Invoice is the canonical, syntax-independent invoice record produced
// by the CII and UBL mappers alike (spec.md §3).
type Invoice struct {
	InvoiceNumber string
	DocumentType  DocumentType
	IssueDate     time.Time
	DeliveryDate  *time.Time
	Currency      string

	Seller Party
	Buyer  Party

	Lines []InvoiceLine

	Totals Totals

	TaxBreakdown []TaxBreakdown

	BankDetails []BankDetails

	PurchaseOrderRef string // optional
}

// StructuralViolation is a hard failure of invariant 1 or the currency
// half of invariant 6 — these make the invoice unusable downstream.
type StructuralViolation struct {
	Reason string
}

// StructuralInvariants checks invariant 1 (at least one line) and the
// currency half of invariant 6. It returns fatal violations; the VAT
// country-prefix half of invariant 6 is intentionally a soft check —
// see PartyWarnings.
func (inv *Invoice) StructuralInvariants(knownCurrencies map[string]bool) []StructuralViolation {
	var problems []StructuralViolation
	if len(inv.Lines) == 0 {
		problems = append(problems, StructuralViolation{Reason: "invoice has no lines"})
	}
	if !knownCurrencies[inv.Currency] {
		problems = append(problems, StructuralViolation{Reason: "unknown currency: " + inv.Currency})
	}
	return problems
}

// PartyWarnings reports VAT ids whose country prefix is unrecognised.
// spec.md §9 open question (a) leaves promoting this to an ERROR
// unresolved; DESIGN.md records the decision to keep it a WARNING,
// matching the source system's behaviour.
func (inv *Invoice) PartyWarnings(knownCountries map[string]bool) []string {
	var warnings []string
	for _, p := range []struct {
		role  string
		party Party
	}{{"seller", inv.Seller}, {"buyer", inv.Buyer}} {
		if p.party.VATID == "" {
			continue
		}
		prefix := VATPrefix(p.party.VATID)
		if !knownCountries[prefix] {
			warnings = append(warnings, p.role+" VAT id has unknown country prefix: "+prefix)
		}
	}
	return warnings
}

// VATPrefix returns the two-letter country prefix of a VAT identifier.
func VATPrefix(vat string) string {
	if len(vat) < 2 {
		return vat
	}
	return vat[:2]
}
