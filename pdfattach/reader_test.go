package pdfattach

import (
	"testing"

	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

func TestExtractEmptyStreamIsTransient(t *testing.T) {
	_, _, err := Extract(nil)
	if err == nil {
		t.Fatalf("expected error for empty PDF")
	}
	if !pipelineerr.Is(err, pipelineerr.KindTransient) {
		t.Fatalf("expected transient error, got %v", pipelineerr.KindOf(err))
	}
}

func TestExtractNonPDFBytesIsStructural(t *testing.T) {
	_, _, err := Extract([]byte("this is not a pdf at all, just plain text padding to look plausible"))
	if err == nil {
		t.Fatalf("expected error for non-PDF bytes")
	}
	if !pipelineerr.Is(err, pipelineerr.KindPermanentStructural) && !pipelineerr.Is(err, pipelineerr.KindTransient) {
		t.Fatalf("expected structural or transient classification, got %v", pipelineerr.KindOf(err))
	}
}

func TestCandidateNamesExcludesOrderX(t *testing.T) {
	if _, ok := candidateNames["order-x.xml"]; ok {
		t.Fatalf("order-x.xml must not be a recognised invoice attachment name")
	}
	if len(candidateNames) != 3 {
		t.Fatalf("expected exactly 3 candidate names, got %d", len(candidateNames))
	}
}
