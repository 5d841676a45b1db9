// Package mapper implements the dual CII/UBL mapper and orchestrator
// of spec.md §4.5–§4.7. Both mappers are free-standing functions
// returning (canonical.Invoice, []canonical.Finding, error) — the closed-sum-type dispatch
// table lives in orchestrator.go, not in a shared base type (spec.md
// §9's "dual-syntax mapping without inheritance" redesign note).
package mapper

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/xpathkit"
)

var cciDocumentTypes = map[string]canonical.DocumentType{
	"380": canonical.DocumentInvoice,
	"381": canonical.DocumentCreditNote,
	"384": canonical.DocumentInvoiceCorrection,
}

var globalIDSchemePriority = []string{"0160", "0088"}

// MapCII transforms a parsed CrossIndustryInvoice root into the
// canonical model, per the field table in spec.md §4.5. Every failure
// is a MappingError (permanent) carrying the offending field path.
func MapCII(root *xpathkit.Node) (canonical.Invoice, []canonical.Finding, error) {
	var findings []canonical.Finding
	var inv canonical.Invoice

	number, err := xpathkit.Text(root, "//rsm:ExchangedDocument/ram:ID", true, "")
	if err != nil {
		return inv, nil, err
	}
	inv.InvoiceNumber = number

	issueDate, err := xpathkit.Date(root, "//rsm:ExchangedDocument/ram:IssueDateTime/udt:DateTimeString", true)
	if err != nil {
		return inv, nil, err
	}
	inv.IssueDate = issueDate

	typeCode, err := xpathkit.Text(root, "//rsm:ExchangedDocument/ram:TypeCode", true, "")
	if err != nil {
		return inv, nil, err
	}
	docType, ok := cciDocumentTypes[typeCode]
	if !ok {
		return inv, nil, mappingErr("mapper.MapCII", "ExchangedDocument/TypeCode", typeCode)
	}
	inv.DocumentType = docType

	currency, err := xpathkit.Text(root, "//ram:ApplicableHeaderTradeSettlement/ram:InvoiceCurrencyCode", true, "")
	if err != nil {
		return inv, nil, err
	}
	inv.Currency = currency

	if raw, err := xpathkit.Text(root,
		"//ram:ApplicableHeaderTradeDelivery/ram:ActualDeliverySupplyChainEvent/ram:OccurrenceDateTime/udt:DateTimeString",
		false, ""); err == nil && raw != "" {
		if d, derr := xpathkit.Date(root,
			"//ram:ApplicableHeaderTradeDelivery/ram:ActualDeliverySupplyChainEvent/ram:OccurrenceDateTime/udt:DateTimeString",
			false); derr == nil && !d.IsZero() {
			inv.DeliveryDate = &d
		}
	}

	seller, err := mapCIIParty(root, "SellerTradeParty")
	if err != nil {
		return inv, nil, err
	}
	inv.Seller = seller

	buyer, err := mapCIIParty(root, "BuyerTradeParty")
	if err != nil {
		return inv, nil, err
	}
	inv.Buyer = buyer

	lines, lineFindings, err := mapCIILines(root)
	if err != nil {
		return inv, nil, err
	}
	inv.Lines = lines
	findings = append(findings, lineFindings...)

	tax, taxFindings, err := mapCIITaxBreakdown(root)
	if err != nil {
		return inv, nil, err
	}
	inv.TaxBreakdown = tax
	findings = append(findings, taxFindings...)

	totals, err := mapCIITotals(root)
	if err != nil {
		return inv, nil, err
	}
	inv.Totals = totals

	if iban, err := xpathkit.Text(root,
		"//ram:SpecifiedTradeSettlementPaymentMeans/ram:PayeePartyCreditorFinancialAccount/ram:IBANID",
		false, ""); err == nil && iban != "" {
		normalised := normaliseIBAN(iban)
		ibanFinding, ierr := verifyIBAN("mapper.MapCII", normalised)
		if ierr != nil {
			return inv, nil, ierr
		}
		if ibanFinding != nil {
			findings = append(findings, *ibanFinding)
		}
		inv.BankDetails = append(inv.BankDetails, canonical.BankDetails{IBAN: normalised})
	}

	if po, err := xpathkit.Text(root, "//ram:BuyerOrderReferencedDocument/ram:IssuerAssignedID", false, ""); err == nil {
		inv.PurchaseOrderRef = po
	}

	return inv, findings, nil
}

func mapCIIParty(root *xpathkit.Node, partyElement string) (canonical.Party, error) {
	base := "//ram:" + partyElement
	name, err := xpathkit.Text(root, base+"/ram:Name", true, "")
	if err != nil {
		return canonical.Party{}, err
	}
	country, err := xpathkit.Text(root, base+"/ram:PostalTradeAddress/ram:CountryID", true, "")
	if err != nil {
		return canonical.Party{}, err
	}
	vat, _ := xpathkit.Text(root, base+"/ram:SpecifiedTaxRegistration/ram:ID", false, "")
	addr, _ := xpathkit.Text(root, base+"/ram:PostalTradeAddress/ram:LineOne", false, "")
	city, _ := xpathkit.Text(root, base+"/ram:PostalTradeAddress/ram:CityName", false, "")
	postal, _ := xpathkit.Text(root, base+"/ram:PostalTradeAddress/ram:PostcodeCode", false, "")
	return canonical.Party{
		Name:        name,
		VATID:       vat,
		CountryCode: country,
		AddressLine: addr,
		City:        city,
		PostalCode:  postal,
	}, nil
}

func mapCIILines(root *xpathkit.Node) ([]canonical.InvoiceLine, []canonical.Finding, error) {
	nodes, err := xpathkit.All(root, "//ram:IncludedSupplyChainTradeLineItem")
	if err != nil {
		return nil, nil, err
	}
	var lines []canonical.InvoiceLine
	var findings []canonical.Finding
	for _, n := range nodes {
		lineID, _ := xpathkit.Text(n, "./ram:AssociatedDocumentLineDocument/ram:LineID", false, "")

		itemName, err := xpathkit.Text(n, "./ram:SpecifiedTradeProduct/ram:Name", true, "")
		if err != nil {
			return nil, nil, err
		}

		itemID := firstNonEmptyGlobalID(n, "./ram:SpecifiedTradeProduct")

		netAmount, err := xpathkit.Text(n,
			"./ram:SpecifiedLineTradeSettlement/ram:SpecifiedTradeSettlementLineMonetarySummation/ram:LineTotalAmount",
			true, "")
		if err != nil {
			return nil, nil, err
		}
		netDec, nerr := decimal.NewFromString(strings.TrimSpace(netAmount))
		if nerr != nil {
			return nil, nil, mappingErr("mapper.mapCIILines", "SpecifiedTradeSettlementLineMonetarySummation/LineTotalAmount", netAmount)
		}

		chargeAmount, chFinding, err := xpathkit.Decimal(n,
			"./ram:SpecifiedLineTradeAgreement/ram:NetPriceProductTradePrice/ram:ChargeAmount", true, decimal.Zero)
		if err != nil {
			return nil, nil, err
		}
		if chFinding != nil {
			findings = append(findings, *chFinding)
		}

		basisRaw, _ := xpathkit.Text(n, "./ram:SpecifiedLineTradeAgreement/ram:NetPriceProductTradePrice/ram:BasisQuantity", false, "")
		basis, berr := xpathkit.ParseIntDefault1(basisRaw)
		if berr != nil || basis.IsZero() {
			return nil, nil, mappingErr("mapper.mapCIILines", "NetPriceProductTradePrice/BasisQuantity", basisRaw)
		}
		unitPrice := chargeAmount.Div(basis)

		qty, qtyFinding, err := xpathkit.Decimal(n, "./ram:SpecifiedLineTradeDelivery/ram:BilledQuantity", true, decimal.Zero)
		if err != nil {
			return nil, nil, err
		}
		if qtyFinding != nil {
			findings = append(findings, *qtyFinding)
		}

		taxCat, _ := xpathkit.Text(n, "./ram:SpecifiedLineTradeSettlement/ram:ApplicableTradeTax/ram:CategoryCode", false, "")
		taxRate, trFinding, err := xpathkit.Decimal(n, "./ram:SpecifiedLineTradeSettlement/ram:ApplicableTradeTax/ram:RateApplicablePercent", false, decimal.Zero)
		if err != nil {
			return nil, nil, err
		}
		if trFinding != nil {
			findings = append(findings, *trFinding)
		}

		lines = append(lines, canonical.InvoiceLine{
			LineID:      lineID,
			ItemName:    itemName,
			ItemID:      itemID,
			Quantity:    qty,
			UnitPrice:   unitPrice,
			NetAmount:   netDec,
			TaxCategory: taxCat,
			TaxRate:     taxRate,
		})
	}
	return lines, findings, nil
}

// firstNonEmptyGlobalID picks the first present of
// GlobalID[@schemeID in priority order], SellerAssignedID,
// BuyerAssignedID, all optional per spec.md §4.5.
func firstNonEmptyGlobalID(n *xpathkit.Node, base string) string {
	for _, scheme := range globalIDSchemePriority {
		v, err := xpathkit.Attr(n, base+"/ram:GlobalID[@schemeID='"+scheme+"']", "schemeID", false)
		if err == nil && v != "" {
			if text, terr := xpathkit.Text(n, base+"/ram:GlobalID[@schemeID='"+scheme+"']", false, ""); terr == nil && text != "" {
				return text
			}
		}
	}
	if v, err := xpathkit.Text(n, base+"/ram:SellerAssignedID", false, ""); err == nil && v != "" {
		return v
	}
	if v, err := xpathkit.Text(n, base+"/ram:BuyerAssignedID", false, ""); err == nil && v != "" {
		return v
	}
	return ""
}

func mapCIITaxBreakdown(root *xpathkit.Node) ([]canonical.TaxBreakdown, []canonical.Finding, error) {
	nodes, err := xpathkit.All(root, "//ram:ApplicableHeaderTradeSettlement/ram:ApplicableTradeTax")
	if err != nil {
		return nil, nil, err
	}
	var breakdown []canonical.TaxBreakdown
	var findings []canonical.Finding
	for _, n := range nodes {
		typeCode, _ := xpathkit.Text(n, "./ram:TypeCode", false, "")
		if typeCode != "VAT" {
			continue
		}
		category, err := xpathkit.Text(n, "./ram:CategoryCode", true, "")
		if err != nil {
			return nil, nil, err
		}
		rate, rateFinding, err := xpathkit.Decimal(n, "./ram:RateApplicablePercent", false, decimal.Zero)
		if err != nil {
			return nil, nil, err
		}
		if rateFinding == nil && rate.IsZero() {
			if alt, altFinding, aerr := xpathkit.Decimal(n, "./ram:ApplicablePercent", false, decimal.Zero); aerr == nil && altFinding == nil {
				rate = alt
			}
		}
		if rateFinding != nil {
			findings = append(findings, *rateFinding)
		}
		base, err := xpathkit.Text(n, "./ram:BasisAmount", true, "")
		if err != nil {
			return nil, nil, err
		}
		baseDec, berr := decimal.NewFromString(strings.TrimSpace(base))
		if berr != nil {
			return nil, nil, mappingErr("mapper.mapCIITaxBreakdown", "ApplicableTradeTax/BasisAmount", base)
		}
		amount, err := xpathkit.Text(n, "./ram:CalculatedAmount", true, "")
		if err != nil {
			return nil, nil, err
		}
		amountDec, aerr := decimal.NewFromString(strings.TrimSpace(amount))
		if aerr != nil {
			return nil, nil, mappingErr("mapper.mapCIITaxBreakdown", "ApplicableTradeTax/CalculatedAmount", amount)
		}
		breakdown = append(breakdown, canonical.TaxBreakdown{
			CategoryCode: category,
			Rate:         rate,
			TaxableBase:  baseDec,
			TaxAmount:    amountDec,
		})
	}
	if len(breakdown) == 0 {
		return nil, nil, mappingErr("mapper.mapCIITaxBreakdown", "ApplicableHeaderTradeSettlement/ApplicableTradeTax", "")
	}
	return breakdown, findings, nil
}

func mapCIITotals(root *xpathkit.Node) (canonical.Totals, error) {
	const base = "//ram:SpecifiedTradeSettlementHeaderMonetarySummation/ram:"
	fields := map[string]*decimal.Decimal{}
	var t canonical.Totals
	fields["LineTotalAmount"] = &t.LineExtensionSum
	fields["TaxBasisTotalAmount"] = &t.TaxExclusive
	fields["GrandTotalAmount"] = &t.TaxInclusive
	fields["DuePayableAmount"] = &t.Payable
	for field, dst := range fields {
		raw, err := xpathkit.Text(root, base+field, true, "")
		if err != nil {
			return t, err
		}
		d, derr := decimal.NewFromString(strings.TrimSpace(raw))
		if derr != nil {
			return t, mappingErr("mapper.mapCIITotals", "SpecifiedTradeSettlementHeaderMonetarySummation/"+field, raw)
		}
		*dst = d
	}
	if raw, err := xpathkit.Text(root, base+"TotalPrepaidAmount", false, ""); err == nil && raw != "" {
		if d, derr := decimal.NewFromString(strings.TrimSpace(raw)); derr == nil {
			t.Prepaid = d
		}
	}
	return t, nil
}

func normaliseIBAN(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}
