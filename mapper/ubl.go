package mapper

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/xmlclassify"
	"github.com/diewo77/invoice-pipeline/xpathkit"
)

// MapUBL transforms a parsed UBL Invoice or CreditNote root into the
// canonical model, per spec.md §4.6. syntax picks the line quantity
// element and the resulting DocumentType.
func MapUBL(root *xpathkit.Node, syntax xmlclassify.Syntax) (canonical.Invoice, []canonical.Finding, error) {
	var inv canonical.Invoice
	var findings []canonical.Finding

	lineElement := "cac:InvoiceLine"
	qtyElement := "cbc:InvoicedQuantity"
	inv.DocumentType = canonical.DocumentInvoice
	if syntax == xmlclassify.SyntaxUBLCreditNote {
		lineElement = "cac:CreditNoteLine"
		qtyElement = "cbc:CreditedQuantity"
		inv.DocumentType = canonical.DocumentCreditNote
	}

	number, err := xpathkit.Text(root, "/*/cbc:ID", true, "")
	if err != nil {
		return inv, nil, err
	}
	inv.InvoiceNumber = number

	issueDate, err := xpathkit.Date(root, "/*/cbc:IssueDate", true)
	if err != nil {
		return inv, nil, err
	}
	inv.IssueDate = issueDate

	currency, err := xpathkit.Text(root, "/*/cbc:DocumentCurrencyCode", true, "")
	if err != nil {
		return inv, nil, err
	}
	inv.Currency = currency

	seller, err := mapUBLParty(root, "cac:AccountingSupplierParty")
	if err != nil {
		return inv, nil, err
	}
	inv.Seller = seller

	buyer, err := mapUBLParty(root, "cac:AccountingCustomerParty")
	if err != nil {
		return inv, nil, err
	}
	inv.Buyer = buyer

	lines, lineFindings, err := mapUBLLines(root, lineElement, qtyElement)
	if err != nil {
		return inv, nil, err
	}
	inv.Lines = lines
	findings = append(findings, lineFindings...)

	tax, taxFindings, err := mapUBLTaxBreakdown(root)
	if err != nil {
		return inv, nil, err
	}
	inv.TaxBreakdown = tax
	findings = append(findings, taxFindings...)

	totals, err := mapUBLTotals(root)
	if err != nil {
		return inv, nil, err
	}
	inv.Totals = totals

	if iban, err := xpathkit.Text(root, "/*/cac:PaymentMeans/cac:PayeeFinancialAccount/cbc:ID", false, ""); err == nil && iban != "" {
		normalised := normaliseIBAN(iban)
		ibanFinding, ierr := verifyIBAN("mapper.MapUBL", normalised)
		if ierr != nil {
			return inv, nil, ierr
		}
		if ibanFinding != nil {
			findings = append(findings, *ibanFinding)
		}
		inv.BankDetails = append(inv.BankDetails, canonical.BankDetails{IBAN: normalised})
	}

	return inv, findings, nil
}

func mapUBLParty(root *xpathkit.Node, partyRefElement string) (canonical.Party, error) {
	base := "/*/" + partyRefElement + "/cac:Party"

	name, err := xpathkit.Text(root, base+"/cac:PartyName/cbc:Name", false, "")
	if err != nil {
		return canonical.Party{}, err
	}
	if name == "" {
		name, err = xpathkit.Text(root, base+"/cac:PartyLegalEntity/cbc:RegistrationName", true, "")
		if err != nil {
			return canonical.Party{}, err
		}
	}

	country, err := xpathkit.Text(root, base+"/cac:PostalAddress/cac:Country/cbc:IdentificationCode", true, "")
	if err != nil {
		return canonical.Party{}, err
	}
	vat, _ := xpathkit.Text(root, base+"/cac:PartyTaxScheme/cbc:CompanyID", false, "")
	addr, _ := xpathkit.Text(root, base+"/cac:PostalAddress/cbc:StreetName", false, "")
	city, _ := xpathkit.Text(root, base+"/cac:PostalAddress/cbc:CityName", false, "")
	postal, _ := xpathkit.Text(root, base+"/cac:PostalAddress/cbc:PostalZone", false, "")

	return canonical.Party{
		Name:        name,
		VATID:       vat,
		CountryCode: country,
		AddressLine: addr,
		City:        city,
		PostalCode:  postal,
	}, nil
}

func mapUBLLines(root *xpathkit.Node, lineElement, qtyElement string) ([]canonical.InvoiceLine, []canonical.Finding, error) {
	nodes, err := xpathkit.All(root, "/*/"+lineElement)
	if err != nil {
		return nil, nil, err
	}
	var lines []canonical.InvoiceLine
	var findings []canonical.Finding
	for _, n := range nodes {
		lineID, _ := xpathkit.Text(n, "./cbc:ID", false, "")

		itemName, err := xpathkit.Text(n, "./cac:Item/cbc:Name", true, "")
		if err != nil {
			return nil, nil, err
		}

		itemID := firstNonEmptyUBLItemID(n)

		netRaw, err := xpathkit.Text(n, "./cbc:LineExtensionAmount", true, "")
		if err != nil {
			return nil, nil, err
		}
		netDec, nerr := decimal.NewFromString(strings.TrimSpace(netRaw))
		if nerr != nil {
			return nil, nil, mappingErr("mapper.mapUBLLines", lineElement+"/LineExtensionAmount", netRaw)
		}

		priceAmount, priceFinding, err := xpathkit.Decimal(n, "./cac:Price/cbc:PriceAmount", true, decimal.Zero)
		if err != nil {
			return nil, nil, err
		}
		if priceFinding != nil {
			findings = append(findings, *priceFinding)
		}

		baseQtyRaw, _ := xpathkit.Text(n, "./cac:Price/cbc:BaseQuantity", false, "")
		baseQty, berr := xpathkit.ParseIntDefault1(baseQtyRaw)
		if berr != nil || baseQty.IsZero() {
			return nil, nil, mappingErr("mapper.mapUBLLines", lineElement+"/Price/BaseQuantity", baseQtyRaw)
		}
		unitPrice := priceAmount.Div(baseQty)

		qty, qtyFinding, err := xpathkit.Decimal(n, "./"+qtyElement, true, decimal.Zero)
		if err != nil {
			return nil, nil, err
		}
		if qtyFinding != nil {
			findings = append(findings, *qtyFinding)
		}

		taxCat, _ := xpathkit.Text(n, "./cac:Item/cac:ClassifiedTaxCategory/cbc:ID", false, "")
		taxRate, trFinding, err := xpathkit.Decimal(n, "./cac:Item/cac:ClassifiedTaxCategory/cbc:Percent", false, decimal.Zero)
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

func firstNonEmptyUBLItemID(n *xpathkit.Node) string {
	for _, xp := range []string{
		"./cac:Item/cac:StandardItemIdentification/cbc:ID",
		"./cac:Item/cac:SellersItemIdentification/cbc:ID",
		"./cac:Item/cac:BuyersItemIdentification/cbc:ID",
	} {
		if v, err := xpathkit.Text(n, xp, false, ""); err == nil && v != "" {
			return v
		}
	}
	return ""
}

func mapUBLTaxBreakdown(root *xpathkit.Node) ([]canonical.TaxBreakdown, []canonical.Finding, error) {
	nodes, err := xpathkit.All(root, "/*/cac:TaxTotal/cac:TaxSubtotal")
	if err != nil {
		return nil, nil, err
	}
	totalTaxRaw, terr := xpathkit.Text(root, "/*/cac:TaxTotal/cbc:TaxAmount", false, "")
	if terr == nil && totalTaxRaw != "" && len(nodes) == 0 {
		return nil, nil, mappingErr("mapper.mapUBLTaxBreakdown", "TaxTotal/TaxSubtotal", "")
	}
	var breakdown []canonical.TaxBreakdown
	var findings []canonical.Finding
	for _, n := range nodes {
		category, err := xpathkit.Text(n, "./cac:TaxCategory/cbc:ID", true, "")
		if err != nil {
			return nil, nil, err
		}
		rate, rateFinding, err := xpathkit.Decimal(n, "./cac:TaxCategory/cbc:Percent", false, decimal.Zero)
		if err != nil {
			return nil, nil, err
		}
		if rateFinding != nil {
			findings = append(findings, *rateFinding)
		}
		base, err := xpathkit.Text(n, "./cbc:TaxableAmount", true, "")
		if err != nil {
			return nil, nil, err
		}
		baseDec, berr := decimal.NewFromString(strings.TrimSpace(base))
		if berr != nil {
			return nil, nil, mappingErr("mapper.mapUBLTaxBreakdown", "TaxSubtotal/TaxableAmount", base)
		}
		amount, err := xpathkit.Text(n, "./cbc:TaxAmount", true, "")
		if err != nil {
			return nil, nil, err
		}
		amountDec, aerr := decimal.NewFromString(strings.TrimSpace(amount))
		if aerr != nil {
			return nil, nil, mappingErr("mapper.mapUBLTaxBreakdown", "TaxSubtotal/TaxAmount", amount)
		}
		breakdown = append(breakdown, canonical.TaxBreakdown{
			CategoryCode: category,
			Rate:         rate,
			TaxableBase:  baseDec,
			TaxAmount:    amountDec,
		})
	}
	return breakdown, findings, nil
}

func mapUBLTotals(root *xpathkit.Node) (canonical.Totals, error) {
	const base = "/*/cac:LegalMonetaryTotal/cbc:"
	fields := map[string]*decimal.Decimal{}
	var t canonical.Totals
	fields["LineExtensionAmount"] = &t.LineExtensionSum
	fields["TaxExclusiveAmount"] = &t.TaxExclusive
	fields["TaxInclusiveAmount"] = &t.TaxInclusive
	fields["PayableAmount"] = &t.Payable
	for field, dst := range fields {
		raw, err := xpathkit.Text(root, base+field, true, "")
		if err != nil {
			return t, err
		}
		d, derr := decimal.NewFromString(strings.TrimSpace(raw))
		if derr != nil {
			return t, mappingErr("mapper.mapUBLTotals", "LegalMonetaryTotal/"+field, raw)
		}
		*dst = d
	}
	if raw, err := xpathkit.Text(root, base+"PrepaidAmount", false, ""); err == nil && raw != "" {
		if d, derr := decimal.NewFromString(strings.TrimSpace(raw)); derr == nil {
			t.Prepaid = d
		}
	}
	return t, nil
}
