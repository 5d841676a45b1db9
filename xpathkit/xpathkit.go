// Package xpathkit is the namespace-aware text/decimal/date extraction
// toolkit of spec.md §4.1. It wraps github.com/antchfx/xmlquery, the
// ecosystem library that fills the gap left by gopkg.in/xmlpath.v2 —
// the XPath library the retrieval pack's own fjacquet-camt-csv module
// uses — which cannot resolve namespace prefixes (see DESIGN.md).
package xpathkit

import (
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/shopspring/decimal"

	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

// Node aliases the underlying parser's node type so callers never
// import antchfx/xmlquery directly.
type Node = xmlquery.Node

// Parse parses an XML byte stream with entity resolution and DTD
// loading disabled (XXE protection per spec.md §9). xmlquery's parser
// does not expand external entities or fetch DTDs, so no extra
// configuration is required beyond using it instead of a
// general-purpose encoding/xml decoder with an unrestricted EntityMap.
func Parse(data []byte) (*Node, error) {
	doc, err := xmlquery.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, pipelineerr.Structural("xpathkit.Parse", err)
	}
	return doc, nil
}

// Root returns the document's root element, skipping any leading
// comments, processing instructions, or the DOCTYPE node.
func Root(doc *Node) *Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// first returns the first match in document order, or nil.
func first(el *Node, query string) (*Node, error) {
	nodes, err := xmlquery.QueryAll(el, query)
	if err != nil {
		return nil, fmt.Errorf("xpathkit: invalid query %q: %w", query, err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// Text extracts the scalar text at the unique first match of query in
// document order. If mandatory and no node matches (or the text is
// empty), it returns a MappingError carrying the query string.
func Text(el *Node, query string, mandatory bool, def string) (string, error) {
	node, err := first(el, query)
	if err != nil {
		return "", pipelineerr.Structural("xpathkit.Text", err)
	}
	if node == nil || strings.TrimSpace(node.InnerText()) == "" {
		if mandatory {
			return "", pipelineerr.MappingAbsent("xpathkit.Text", query, fmt.Errorf("no match or empty text"))
		}
		return def, nil
	}
	return strings.TrimSpace(node.InnerText()), nil
}

// Decimal extracts and strictly parses a decimal value. A non-numeric
// value when mandatory fails as a MappingError; when optional and
// unparsable, it returns def and a non-nil WARNING Finding for the
// caller to append to its report — decimal parsing never fails silently.
func Decimal(el *Node, query string, mandatory bool, def decimal.Decimal) (decimal.Decimal, *canonical.Finding, error) {
	node, err := first(el, query)
	if err != nil {
		return decimal.Zero, nil, pipelineerr.Structural("xpathkit.Decimal", err)
	}
	if node == nil || strings.TrimSpace(node.InnerText()) == "" {
		if mandatory {
			return decimal.Zero, nil, pipelineerr.MappingAbsent("xpathkit.Decimal", query, fmt.Errorf("no match or empty text"))
		}
		return def, nil, nil
	}
	raw := strings.TrimSpace(node.InnerText())
	d, perr := decimal.NewFromString(raw)
	if perr != nil {
		if mandatory {
			return decimal.Zero, nil, pipelineerr.Mapping("xpathkit.Decimal", query, fmt.Errorf("not a decimal: %q", raw))
		}
		return def, &canonical.Finding{
			Severity: canonical.SeverityWarning,
			Code:     canonical.CodeMapInvalidValue,
			Message:  fmt.Sprintf("could not parse decimal %q at %s, using default", raw, query),
			XPath:    query,
			Value:    raw,
		}, nil
	}
	return d, nil, nil
}

// dateLayouts are the CII/UBL date forms this toolkit accepts: the
// UN/CEFACT "102" basic form (YYYYMMDD) and ISO-8601 extended form.
var dateLayouts = []string{"20060102", "2006-01-02"}

// Date extracts and parses a date, accepting both the CII basic
// (YYYYMMDD) and UBL/ISO extended (YYYY-MM-DD) forms. Anything else is
// rejected.
func Date(el *Node, query string, mandatory bool) (time.Time, error) {
	node, err := first(el, query)
	if err != nil {
		return time.Time{}, pipelineerr.Structural("xpathkit.Date", err)
	}
	if node == nil || strings.TrimSpace(node.InnerText()) == "" {
		if mandatory {
			return time.Time{}, pipelineerr.MappingAbsent("xpathkit.Date", query, fmt.Errorf("no match or empty text"))
		}
		return time.Time{}, nil
	}
	raw := strings.TrimSpace(node.InnerText())
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	if mandatory {
		return time.Time{}, pipelineerr.Mapping("xpathkit.Date", query, fmt.Errorf("unrecognised date format: %q", raw))
	}
	return time.Time{}, nil
}

// Attr extracts an attribute value from the unique first matching
// element, e.g. GlobalID/@schemeID.
func Attr(el *Node, query, attrName string, mandatory bool) (string, error) {
	node, err := first(el, query)
	if err != nil {
		return "", pipelineerr.Structural("xpathkit.Attr", err)
	}
	if node == nil {
		if mandatory {
			return "", pipelineerr.MappingAbsent("xpathkit.Attr", query, fmt.Errorf("no match"))
		}
		return "", nil
	}
	for _, a := range node.Attr {
		if a.Name.Local == attrName {
			return a.Value, nil
		}
	}
	if mandatory {
		return "", pipelineerr.MappingAbsent("xpathkit.Attr", query, fmt.Errorf("attribute %s not present", attrName))
	}
	return "", nil
}

// All returns every matching node in document order, for callers that
// must iterate a repeated element (tax breakdown entries, lines).
func All(el *Node, query string) ([]*Node, error) {
	nodes, err := xmlquery.QueryAll(el, query)
	if err != nil {
		return nil, fmt.Errorf("xpathkit: invalid query %q: %w", query, err)
	}
	return nodes, nil
}

// ParseIntDefault1 parses s as an integer-ish decimal quantity used as
// a divisor (BasisQuantity/BaseQuantity), defaulting to 1 when blank.
func ParseIntDefault1(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NewFromInt(1), nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

// FormatDecimal renders d with exactly two fractional digits, the "at
// rest" precision spec.md §9 requires for monetary values.
func FormatDecimal(d decimal.Decimal) string {
	return d.StringFixed(2)
}
