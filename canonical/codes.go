package canonical

// Finding codes — the closed catalogue from spec.md §7. SCHEMATRON_*
// codes are formed at runtime as "SCHEMATRON_" + rule id.
const (
	CodeXSDViolation       = "XSD_VIOLATION"
	CodeMapFieldMissing    = "MAP_FIELD_MISSING"
	CodeMapInvalidValue    = "MAP_INVALID_VALUE"
	CodeCalcTotalMismatch  = "CALC_TOTAL_MISMATCH"
	CodeCalcTaxMismatch    = "CALC_TAX_MISMATCH"
	CodeCalcPayableMismatch = "CALC_PAYABLE_MISMATCH"
	CodeERPVendorUnknown   = "ERP_VENDOR_UNKNOWN"
	CodeERPDuplicate       = "ERP_DUPLICATE"
	CodeERPBankMismatch    = "ERP_BANK_MISMATCH"
	CodeERPPOUnknown       = "ERP_PO_UNKNOWN"
	CodeERPPOClosed        = "ERP_PO_CLOSED"
	CodeERPPOOverbill      = "ERP_PO_OVERBILL"
	CodeERPPOPartial       = "ERP_PO_PARTIAL"
	CodeERPLineUnknown     = "ERP_LINE_UNKNOWN"
	CodeERPQtyExceeded     = "ERP_QTY_EXCEEDED"
	CodeERPLineUnidentified = "ERP_LINE_UNIDENTIFIED"

	// Codes outside the minimum catalogue but needed to describe
	// carrier/format-level outcomes precisely in the report.
	CodeCarrierOpaque      = "CARRIER_OPAQUE_PDF"
	CodeCarrierUnsupported = "CARRIER_UNSUPPORTED"
	CodeFormatMismatch     = "FORMAT_DECLARED_MISMATCH"
	CodeVATPrefixUnknown   = "VAT_PREFIX_UNKNOWN"
	CodeIBANCountryUnknown = "IBAN_COUNTRY_UNKNOWN"
	CodeSemanticSkipped    = "SEMANTIC_ENGINE_UNAVAILABLE"
	CodeERPVendorInactive  = "ERP_VENDOR_INACTIVE"
	CodeProcessingError    = "PROCESSING_ERROR"
)

// SchematronCode builds the SCHEMATRON_<rule-id> code for one SVRL
// assertion.
func SchematronCode(ruleID string) string {
	if ruleID == "" {
		ruleID = "UNSPECIFIED"
	}
	return "SCHEMATRON_" + ruleID
}
