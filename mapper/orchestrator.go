package mapper

import (
	"fmt"

	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/formatrouter"
	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
	"github.com/diewo77/invoice-pipeline/internal/registry"
	"github.com/diewo77/invoice-pipeline/xmlclassify"
	"github.com/diewo77/invoice-pipeline/xpathkit"
)

// mapFn is the free-standing procedure shape spec.md §9 calls for: no
// shared base type, just (parsed tree) -> (invoice, findings, error).
type mapFn func(root *xpathkit.Node, syntax xmlclassify.Syntax) (canonical.Invoice, []canonical.Finding, error)

var dispatch = registry.New[xmlclassify.Syntax, mapFn]()

func init() {
	dispatch.Register(xmlclassify.SyntaxCII, func(root *xpathkit.Node, _ xmlclassify.Syntax) (canonical.Invoice, []canonical.Finding, error) {
		return MapCII(root)
	})
	dispatch.Register(xmlclassify.SyntaxUBLInvoice, MapUBL)
	dispatch.Register(xmlclassify.SyntaxUBLCreditNote, MapUBL)
}

// declaredMatchesObserved reports whether a PDF's declared hybrid
// format is consistent with the XML syntax actually extracted from it.
func declaredMatchesObserved(declared formatrouter.Declared, syntax xmlclassify.Syntax) bool {
	if declared == formatrouter.DeclaredNone {
		return true
	}
	// ZUGFeRD/Factur-X/XRechnung PDF carriers all embed CII.
	return syntax == xmlclassify.SyntaxCII
}

// Map dispatches routed input to the CII or UBL mapper and converts a
// MappingError into a FATAL finding rather than propagating the raw
// error, per spec.md §4.7.
func Map(routed formatrouter.Result) (canonical.Invoice, []canonical.Finding, canonical.TerminalStatus, bool) {
	var findings []canonical.Finding

	if !declaredMatchesObserved(routed.Declared, routed.Syntax) {
		findings = append(findings, canonical.Finding{
			Severity: canonical.SeverityWarning,
			Code:     canonical.CodeFormatMismatch,
			Message:  fmt.Sprintf("declared format %s does not match observed syntax %s; proceeding with observed", routed.Declared, routed.Syntax),
		})
	}

	fn, err := dispatch.Lookup(routed.Syntax)
	if err != nil {
		findings = append(findings, canonical.Finding{
			Severity: canonical.SeverityFatal,
			Code:     canonical.CodeMapFieldMissing,
			Message:  fmt.Sprintf("no mapper registered for syntax %s", routed.Syntax),
		})
		return canonical.Invoice{}, findings, "", false
	}

	inv, mapFindings, mapErr := fn(routed.Root, routed.Syntax)
	if mapErr != nil {
		findings = append(findings, mappingErrorToFinding(mapErr))
		return canonical.Invoice{}, findings, "", false
	}

	findings = append(findings, mapFindings...)
	return inv, findings, "", true
}

// mappingErrorToFinding converts a MappingError into the FATAL finding
// spec.md §4.7 requires. Whether the code is MAP_FIELD_MISSING or
// MAP_INVALID_VALUE is read off the error's own Absent marker rather
// than matched against its message text.
func mappingErrorToFinding(err error) canonical.Finding {
	field := pipelineerr.FieldOf(err)
	code := canonical.CodeMapInvalidValue
	if pipelineerr.IsAbsent(err) {
		code = canonical.CodeMapFieldMissing
	}
	return canonical.Finding{
		Severity: canonical.SeverityFatal,
		Code:     code,
		Message:  err.Error(),
		XPath:    field,
		Field:    field,
	}
}
