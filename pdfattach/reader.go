// Package pdfattach locates and extracts the embedded CII XML
// byte-stream from a PDF/A-3 hybrid carrier (ZUGFeRD, Factur-X, the
// XRechnung PDF profile) — spec.md §4.2. It walks the document
// catalogue's /Names/EmbeddedFiles tree and each page's /AF array via
// github.com/pdfcpu/pdfcpu, the PDF library the retrieval pack already
// depends on transitively through maroto/pdfcpu in the teacher's
// billing-app and directly in Lllllllleong-engineeringdocumentflow's
// PDF-splitting Cloud Functions.
package pdfattach

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

// Format is the declared hybrid-carrier profile.
type Format string

const (
	FormatZUGFeRD   Format = "ZUGFERD"
	FormatFacturX   Format = "FACTURX"
	FormatXRechnung Format = "XRECHNUNG"
)

// maxAttachmentsScanned bounds how many embedded files we inspect, so
// a PDF with a pathological Names tree cannot force unbounded work
// (spec.md §9 PDF-bomb defence).
const maxAttachmentsScanned = 32

// candidateNames maps a case-insensitive standardised filename to the
// format it declares. "order-x.xml" is a known hybrid attachment (a
// purchase order, not an invoice) and is deliberately excluded.
var candidateNames = map[string]Format{
	"factur-x.xml":       FormatFacturX,
	"zugferd-invoice.xml": FormatZUGFeRD,
	"xrechnung.xml":      FormatXRechnung,
}

// Extract returns the embedded CII XML and its declared format, or
// (empty, nil, nil) if the PDF is structurally valid but carries no
// matching attachment — spec.md §4.2 states that case is not an error.
func Extract(pdf []byte) (Format, []byte, error) {
	if len(pdf) == 0 {
		return "", nil, pipelineerr.Transient("pdfattach.Extract", errors.New("empty PDF byte stream"))
	}

	rs := bytes.NewReader(pdf)
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	// api.Attachments (not ListAttachments, which only returns bare
	// filename strings) gives back the model.Attachment values this
	// loop needs FileName off of.
	names, err := api.Attachments(rs, cfg)
	if err != nil {
		if isTruncated(err) {
			return "", nil, pipelineerr.Transient("pdfattach.Extract", fmt.Errorf("truncated PDF byte stream: %w", err))
		}
		return "", nil, pipelineerr.Structural("pdfattach.Extract", fmt.Errorf("unparseable PDF: %w", err))
	}

	if len(names) > maxAttachmentsScanned {
		names = names[:maxAttachmentsScanned]
	}

	for _, a := range names {
		format, ok := candidateNames[strings.ToLower(a.FileName)]
		if !ok {
			continue
		}
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return "", nil, pipelineerr.Transient("pdfattach.Extract", err)
		}
		extracted, err := api.ExtractAttachmentsRaw(rs, "", []string{a.FileName}, cfg)
		if err != nil || len(extracted) == 0 {
			return "", nil, pipelineerr.Structural("pdfattach.Extract", fmt.Errorf("attachment %q listed but could not be read: %w", a.FileName, err))
		}
		data, err := io.ReadAll(extracted[0].Reader)
		if err != nil {
			return "", nil, pipelineerr.Transient("pdfattach.Extract", err)
		}
		return format, data, nil
	}

	// Structurally valid PDF, no matching attachment. Not an error.
	return "", nil, nil
}

func isTruncated(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unexpected eof") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "corrupt xref") ||
		strings.Contains(msg, "truncated")
}
