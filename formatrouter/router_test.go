package formatrouter

import (
	"testing"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

const sampleUBL = `<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">
	<cbc:ID xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">INV-1</cbc:ID>
</Invoice>`

func TestRouteXMLPath(t *testing.T) {
	res, err := Route([]byte(sampleUBL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Carrier != CarrierXML {
		t.Fatalf("expected XML carrier, got %s", res.Carrier)
	}
	if res.Root == nil {
		t.Fatalf("expected a parsed root")
	}
}

func TestRouteXMLPathWithBOM(t *testing.T) {
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleUBL)...)
	res, err := Route(withBOM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Carrier != CarrierXML {
		t.Fatalf("expected XML carrier, got %s", res.Carrier)
	}
}

func TestRouteUnsupportedCarrier(t *testing.T) {
	_, err := Route([]byte("not a supported carrier at all"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !pipelineerr.Is(err, pipelineerr.KindPermanentStructural) {
		t.Fatalf("expected structural error, got %v", pipelineerr.KindOf(err))
	}
}

func TestRoutePDFTruncatedIsTransient(t *testing.T) {
	_, err := Route([]byte("%PDF-1.4\n"))
	if err == nil {
		t.Fatalf("expected error for a truncated PDF stream")
	}
}
