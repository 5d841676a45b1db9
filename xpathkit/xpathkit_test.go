package xpathkit

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

const sampleXML = `<root xmlns:ram="urn:ram">
	<ram:ID>INV-1</ram:ID>
	<ram:Amount>100.50</ram:Amount>
	<ram:BadAmount>not-a-number</ram:BadAmount>
	<ram:Date>20250115</ram:Date>
	<ram:DateISO>2025-01-15</ram:DateISO>
	<ram:Tax ram:schemeID="VAT">19</ram:Tax>
</root>`

func TestTextMandatoryFound(t *testing.T) {
	doc, err := Parse([]byte(sampleXML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := Text(doc, "//ram:ID", true, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "INV-1" {
		t.Fatalf("got %q", got)
	}
}

func TestTextMandatoryMissing(t *testing.T) {
	doc, _ := Parse([]byte(sampleXML))
	_, err := Text(doc, "//ram:Missing", true, "")
	if err == nil {
		t.Fatalf("expected mapping error")
	}
	if !pipelineerr.Is(err, pipelineerr.KindPermanentMapping) {
		t.Fatalf("expected KindPermanentMapping, got %v", pipelineerr.KindOf(err))
	}
	if pipelineerr.FieldOf(err) != "//ram:Missing" {
		t.Fatalf("expected field path in error, got %q", pipelineerr.FieldOf(err))
	}
}

func TestTextOptionalMissingReturnsDefault(t *testing.T) {
	doc, _ := Parse([]byte(sampleXML))
	got, err := Text(doc, "//ram:Missing", false, "fallback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fallback" {
		t.Fatalf("got %q", got)
	}
}

func TestDecimalMandatoryParses(t *testing.T) {
	doc, _ := Parse([]byte(sampleXML))
	got, finding, err := Decimal(doc, "//ram:Amount", true, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finding != nil {
		t.Fatalf("did not expect a finding: %+v", finding)
	}
	if !got.Equal(decimal.RequireFromString("100.50")) {
		t.Fatalf("got %s", got)
	}
}

func TestDecimalMandatoryBadValueFails(t *testing.T) {
	doc, _ := Parse([]byte(sampleXML))
	_, _, err := Decimal(doc, "//ram:BadAmount", true, decimal.Zero)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !pipelineerr.Is(err, pipelineerr.KindPermanentMapping) {
		t.Fatalf("expected mapping error, got %v", pipelineerr.KindOf(err))
	}
}

func TestDecimalOptionalBadValueWarnsAndDefaults(t *testing.T) {
	doc, _ := Parse([]byte(sampleXML))
	def := decimal.NewFromInt(42)
	got, finding, err := Decimal(doc, "//ram:BadAmount", false, def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finding == nil {
		t.Fatalf("expected a warning finding")
	}
	if finding.Severity != "WARNING" {
		t.Fatalf("expected WARNING severity, got %s", finding.Severity)
	}
	if !got.Equal(def) {
		t.Fatalf("expected default value, got %s", got)
	}
}

func TestDateAcceptsBasicAndExtendedForms(t *testing.T) {
	doc, _ := Parse([]byte(sampleXML))
	basic, err := Date(doc, "//ram:Date", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	iso, err := Date(doc, "//ram:DateISO", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !basic.Equal(iso) {
		t.Fatalf("expected both date forms to parse to the same instant, got %v vs %v", basic, iso)
	}
}

func TestDateRejectsUnrecognisedFormat(t *testing.T) {
	doc, err := Parse([]byte(`<root><d>15/01/2025</d></root>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = Date(doc, "//d", true)
	if err == nil {
		t.Fatalf("expected error for unrecognised date format")
	}
}

func TestAttrExtraction(t *testing.T) {
	doc, _ := Parse([]byte(sampleXML))
	got, err := Attr(doc, "//ram:Tax", "schemeID", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "VAT" {
		t.Fatalf("got %q", got)
	}
}
