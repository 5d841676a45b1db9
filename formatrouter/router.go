// Package formatrouter is the entry point of the extraction layer,
// spec.md §4.4. It sniffs the raw ingested bytes, routes PDF carriers
// through pdfattach and everything else through xmlclassify, and
// yields one normalised (carrier, syntax, declared, xml, root) tuple.
package formatrouter

import (
	"bytes"
	"fmt"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
	"github.com/diewo77/invoice-pipeline/pdfattach"
	"github.com/diewo77/invoice-pipeline/xmlclassify"
	"github.com/diewo77/invoice-pipeline/xpathkit"
)

// Carrier is the outer envelope the invoice arrived in.
type Carrier string

const (
	CarrierPDF Carrier = "PDF"
	CarrierXML Carrier = "XML"
)

// Declared is the hybrid-format hint recovered from a PDF's attachment
// filename. It is empty for plain XML carriers.
type Declared string

const (
	DeclaredNone      Declared = ""
	DeclaredZUGFeRD   Declared = "ZUGFERD"
	DeclaredFacturX   Declared = "FACTURX"
	DeclaredXRechnung Declared = "XRECHNUNG"
)

// Result is the outcome of routing one ingested byte stream.
type Result struct {
	Carrier  Carrier
	Syntax   xmlclassify.Syntax // empty when Carrier=PDF and no attachment was found
	Declared Declared
	XML      []byte
	Root     *xpathkit.Node
}

var pdfMagic = []byte("%PDF-")

// Route sniffs raw and dispatches it through the PDF or XML path.
// A PDF with no matching embedded invoice XML returns a Result with an
// empty Syntax and a nil Root — this is not an error; the caller
// routes such invoices to MANUAL_REVIEW.
func Route(raw []byte) (Result, error) {
	trimmed := skipBOM(raw)

	if bytes.HasPrefix(raw, pdfMagic) {
		format, xml, err := pdfattach.Extract(raw)
		if err != nil {
			return Result{}, err
		}
		if xml == nil {
			return Result{Carrier: CarrierPDF}, nil
		}
		syntax, root, err := xmlclassify.Classify(xml)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Carrier:  CarrierPDF,
			Syntax:   syntax,
			Declared: declaredFromPDFFormat(format),
			XML:      xml,
			Root:     root,
		}, nil
	}

	if len(trimmed) > 0 && trimmed[0] == '<' {
		syntax, root, err := xmlclassify.Classify(trimmed)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Carrier: CarrierXML,
			Syntax:  syntax,
			XML:     trimmed,
			Root:    root,
		}, nil
	}

	return Result{}, pipelineerr.Structural("formatrouter.Route",
		fmt.Errorf("unsupported carrier: not a PDF or XML byte stream"))
}

func declaredFromPDFFormat(f pdfattach.Format) Declared {
	switch f {
	case pdfattach.FormatZUGFeRD:
		return DeclaredZUGFeRD
	case pdfattach.FormatFacturX:
		return DeclaredFacturX
	case pdfattach.FormatXRechnung:
		return DeclaredXRechnung
	default:
		return DeclaredNone
	}
}

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

func skipBOM(raw []byte) []byte {
	if bytes.HasPrefix(raw, byteOrderMark) {
		return raw[len(byteOrderMark):]
	}
	return raw
}
