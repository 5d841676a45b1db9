package xsdvalidate

import (
	"testing"

	"github.com/diewo77/invoice-pipeline/xmlclassify"
)

func TestSchemaFileCoversEverySyntax(t *testing.T) {
	for _, syntax := range []xmlclassify.Syntax{
		xmlclassify.SyntaxUBLInvoice,
		xmlclassify.SyntaxUBLCreditNote,
		xmlclassify.SyntaxCII,
	} {
		if _, ok := schemaFile[syntax]; !ok {
			t.Fatalf("missing schema file mapping for syntax %s", syntax)
		}
	}
}

func TestSchemaFileHasNoEntryForUnknownSyntax(t *testing.T) {
	// A syntax outside the closed set is never registered; loadAll
	// only ever populates the three known keys.
	if _, ok := schemaFile[xmlclassify.Syntax("BOGUS")]; ok {
		t.Fatalf("did not expect a schema entry for an unknown syntax")
	}
}
