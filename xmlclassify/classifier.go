// Package xmlclassify identifies whether a parsed XML document is a
// UBL Invoice, a UBL CreditNote, or a UN/CEFACT Cross Industry Invoice
// by inspecting its root element's local name and namespace —
// spec.md §4.3.
package xmlclassify

import (
	"fmt"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
	"github.com/diewo77/invoice-pipeline/xpathkit"
)

// Syntax is the closed sum type spec.md §9 calls for in place of a
// class hierarchy: {UBL_INVOICE, UBL_CREDITNOTE, CII}.
type Syntax string

const (
	SyntaxUBLInvoice    Syntax = "UBL_INVOICE"
	SyntaxUBLCreditNote Syntax = "UBL_CREDITNOTE"
	SyntaxCII           Syntax = "CII"
)

const (
	nsUBLInvoiceRoot    = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsUBLCreditNoteRoot = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
	nsCIIRoot           = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
)

// Classify parses data and returns its syntax and root node. An
// unrecognised root element is a permanent structural error
// (UnknownFormatError in spec terms).
func Classify(data []byte) (Syntax, *xpathkit.Node, error) {
	root, err := xpathkit.Parse(data)
	if err != nil {
		return "", nil, err
	}

	el := xpathkit.Root(root)
	if el == nil {
		return "", nil, pipelineerr.Structural("xmlclassify.Classify", fmt.Errorf("no document element"))
	}

	switch {
	case el.Data == "Invoice" && el.NamespaceURI == nsUBLInvoiceRoot:
		return SyntaxUBLInvoice, root, nil
	case el.Data == "CreditNote" && el.NamespaceURI == nsUBLCreditNoteRoot:
		return SyntaxUBLCreditNote, root, nil
	case el.Data == "CrossIndustryInvoice" && el.NamespaceURI == nsCIIRoot:
		return SyntaxCII, root, nil
	default:
		return "", nil, pipelineerr.Structural("xmlclassify.Classify",
			fmt.Errorf("unrecognised format: root element %q in namespace %q", el.Data, el.NamespaceURI))
	}
}

