package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
)

// mappingErr builds a MappingError for a field whose value was present
// but structurally wrong (unknown code, unparseable amount, zero
// divisor) as opposed to simply absent.
func mappingErr(op, field, value string) error {
	return pipelineerr.Mapping(op, field, fmt.Errorf("invalid value %q", value))
}

// knownIBANCountries is the EU/EEA-plus-UK/CH/NO set the mappers warn
// against, mirroring the VAT-prefix set processor.knownCountries checks
// against invariant 6.
var knownIBANCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "CY": true, "CZ": true,
	"DE": true, "DK": true, "EE": true, "ES": true, "FI": true,
	"FR": true, "GR": true, "HR": true, "HU": true, "IE": true,
	"IT": true, "LT": true, "LU": true, "LV": true, "MT": true,
	"NL": true, "PL": true, "PT": true, "RO": true, "SE": true,
	"SI": true, "SK": true, "GB": true, "CH": true, "NO": true,
}

// verifyIBAN checks the ISO 13616 mod-97 checksum of a normalised IBAN.
// A bad checksum is a mapping failure; a good checksum with a country
// prefix outside knownIBANCountries only raises a WARNING finding, the
// same present-but-suspicious treatment canonical.Invoice.PartyWarnings
// gives an unrecognised VAT prefix.
func verifyIBAN(op, iban string) (*canonical.Finding, error) {
	if !ibanChecksumValid(iban) {
		return nil, mappingErr(op, "PaymentMeans/IBAN", iban)
	}
	prefix := iban
	if len(iban) >= 2 {
		prefix = iban[:2]
	}
	if !knownIBANCountries[prefix] {
		return &canonical.Finding{
			Severity: canonical.SeverityWarning,
			Code:     canonical.CodeIBANCountryUnknown,
			Message:  "IBAN has unrecognised country prefix: " + prefix,
			Value:    iban,
		}, nil
	}
	return nil, nil
}

// ibanChecksumValid runs the ISO 13616 mod-97 algorithm: move the first
// four characters to the end, convert letters to their A=10..Z=35
// numeric values, and check the resulting number mod 97 equals 1.
func ibanChecksumValid(iban string) bool {
	if len(iban) < 5 || len(iban) > 34 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			digits.WriteString(strconv.Itoa(int(r-'A') + 10))
		default:
			return false
		}
	}
	remainder := 0
	for _, d := range digits.String() {
		remainder = (remainder*10 + int(d-'0')) % 97
	}
	return remainder == 1
}
