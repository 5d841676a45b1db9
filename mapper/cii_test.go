package mapper

import (
	"strings"
	"testing"

	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
	"github.com/diewo77/invoice-pipeline/xpathkit"
)

const ciiSample = `<rsm:CrossIndustryInvoice
	xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	xmlns:ram="urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	xmlns:udt="urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100">
	<rsm:ExchangedDocument>
		<ram:ID>INV-42</ram:ID>
		<ram:TypeCode>380</ram:TypeCode>
		<ram:IssueDateTime><udt:DateTimeString format="102">20250601</udt:DateTimeString></ram:IssueDateTime>
	</rsm:ExchangedDocument>
	<rsm:SupplyChainTradeTransaction>
		<ram:IncludedSupplyChainTradeLineItem>
			<ram:AssociatedDocumentLineDocument><ram:LineID>1</ram:LineID></ram:AssociatedDocumentLineDocument>
			<ram:SpecifiedTradeProduct><ram:Name>Widget</ram:Name></ram:SpecifiedTradeProduct>
			<ram:SpecifiedLineTradeAgreement>
				<ram:NetPriceProductTradePrice><ram:ChargeAmount>10.00</ram:ChargeAmount></ram:NetPriceProductTradePrice>
			</ram:SpecifiedLineTradeAgreement>
			<ram:SpecifiedLineTradeDelivery><ram:BilledQuantity>5</ram:BilledQuantity></ram:SpecifiedLineTradeDelivery>
			<ram:SpecifiedLineTradeSettlement>
				<ram:ApplicableTradeTax><ram:CategoryCode>S</ram:CategoryCode><ram:RateApplicablePercent>19</ram:RateApplicablePercent></ram:ApplicableTradeTax>
				<ram:SpecifiedTradeSettlementLineMonetarySummation><ram:LineTotalAmount>50.00</ram:LineTotalAmount></ram:SpecifiedTradeSettlementLineMonetarySummation>
			</ram:SpecifiedLineTradeSettlement>
		</ram:IncludedSupplyChainTradeLineItem>
		<ram:ApplicableHeaderTradeAgreement>
			<ram:SellerTradeParty>
				<ram:Name>Seller GmbH</ram:Name>
				<ram:PostalTradeAddress><ram:CountryID>DE</ram:CountryID></ram:PostalTradeAddress>
			</ram:SellerTradeParty>
			<ram:BuyerTradeParty>
				<ram:Name>Buyer SA</ram:Name>
				<ram:PostalTradeAddress><ram:CountryID>FR</ram:CountryID></ram:PostalTradeAddress>
			</ram:BuyerTradeParty>
		</ram:ApplicableHeaderTradeAgreement>
		<ram:ApplicableHeaderTradeSettlement>
			<ram:InvoiceCurrencyCode>EUR</ram:InvoiceCurrencyCode>
			<ram:ApplicableTradeTax>
				<ram:CalculatedAmount>9.50</ram:CalculatedAmount>
				<ram:TypeCode>VAT</ram:TypeCode>
				<ram:BasisAmount>50.00</ram:BasisAmount>
				<ram:CategoryCode>S</ram:CategoryCode>
				<ram:RateApplicablePercent>19</ram:RateApplicablePercent>
			</ram:ApplicableTradeTax>
			<ram:SpecifiedTradeSettlementHeaderMonetarySummation>
				<ram:LineTotalAmount>50.00</ram:LineTotalAmount>
				<ram:TaxBasisTotalAmount>50.00</ram:TaxBasisTotalAmount>
				<ram:GrandTotalAmount>59.50</ram:GrandTotalAmount>
				<ram:DuePayableAmount>59.50</ram:DuePayableAmount>
			</ram:SpecifiedTradeSettlementHeaderMonetarySummation>
		</ram:ApplicableHeaderTradeSettlement>
	</rsm:SupplyChainTradeTransaction>
</rsm:CrossIndustryInvoice>`

func TestMapCIIHappyPath(t *testing.T) {
	root, err := xpathkit.Parse([]byte(ciiSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	inv, findings, err := MapCII(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("unexpected findings: %+v", findings)
	}
	if inv.InvoiceNumber != "INV-42" {
		t.Fatalf("got %q", inv.InvoiceNumber)
	}
	if inv.Currency != "EUR" {
		t.Fatalf("got %q", inv.Currency)
	}
	if len(inv.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(inv.Lines))
	}
	if inv.Totals.Payable.StringFixed(2) != "59.50" {
		t.Fatalf("got payable %s", inv.Totals.Payable.StringFixed(2))
	}
	if inv.Lines[0].UnitPrice.StringFixed(2) != "10.00" {
		t.Fatalf("got unit price %s", inv.Lines[0].UnitPrice.StringFixed(2))
	}
}

func withCIIPaymentMeans(iban string) string {
	return strings.Replace(ciiSample,
		"<ram:InvoiceCurrencyCode>EUR</ram:InvoiceCurrencyCode>",
		"<ram:InvoiceCurrencyCode>EUR</ram:InvoiceCurrencyCode>"+
			"<ram:SpecifiedTradeSettlementPaymentMeans><ram:PayeePartyCreditorFinancialAccount>"+
			"<ram:IBANID>"+iban+"</ram:IBANID></ram:PayeePartyCreditorFinancialAccount></ram:SpecifiedTradeSettlementPaymentMeans>",
		1)
}

func TestMapCIIValidIBANUnknownCountryWarnsOnly(t *testing.T) {
	// KZ (Kazakhstan) forms a structurally valid, checksum-correct IBAN
	// but is not in the SEPA-area knownIBANCountries set.
	root, err := xpathkit.Parse([]byte(withCIIPaymentMeans("KZ86125KZT5004100100")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	inv, findings, err := MapCII(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inv.BankDetails) != 1 || inv.BankDetails[0].IBAN != "KZ86125KZT5004100100" {
		t.Fatalf("expected the IBAN to still be recorded, got %+v", inv.BankDetails)
	}
	found := false
	for _, fnd := range findings {
		if fnd.Code == canonical.CodeIBANCountryUnknown && fnd.Severity == canonical.SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an IBAN_COUNTRY_UNKNOWN warning, got %+v", findings)
	}
}

func TestMapCIIInvalidIBANChecksumFails(t *testing.T) {
	root, err := xpathkit.Parse([]byte(withCIIPaymentMeans("DE89370400440532013001")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, _, err := MapCII(root); err == nil {
		t.Fatalf("expected a mapping error for a bad IBAN checksum")
	}
}

func TestMapCIIMissingIssueDateFails(t *testing.T) {
	broken := `<rsm:CrossIndustryInvoice
		xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
		xmlns:ram="urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100">
		<rsm:ExchangedDocument><ram:ID>INV-1</ram:ID></rsm:ExchangedDocument>
	</rsm:CrossIndustryInvoice>`
	root, err := xpathkit.Parse([]byte(broken))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, _, err = MapCII(root)
	if err == nil {
		t.Fatalf("expected mapping error")
	}
	if !pipelineerr.Is(err, pipelineerr.KindPermanentMapping) {
		t.Fatalf("expected mapping kind, got %v", pipelineerr.KindOf(err))
	}
	if pipelineerr.FieldOf(err) != "//rsm:ExchangedDocument/ram:IssueDateTime/udt:DateTimeString" {
		t.Fatalf("got field %q", pipelineerr.FieldOf(err))
	}
}
