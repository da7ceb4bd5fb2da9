// File: internal/casework/country.go
package casework

import "strings"

// Country identifies the examining country whose workflow a case follows.
type Country string

const (
	CountryAU      Country = "AU"
	CountryNZ      Country = "NZ"
	CountryCA      Country = "CA"
	CountryUS      Country = "US"
	CountryUnknown Country = "Unknown"
)

// String implements fmt.Stringer.
func (c Country) String() string { return string(c) }

// prefixRule maps an identifier prefix to a country.
type prefixRule struct {
	prefix  string
	country Country
}

// prefixTable is evaluated in order, first match wins.
// No prefix is a prefix of another entry mapped to a different country.
var prefixTable = []prefixRule{
	{"HAP", CountryAU},
	{"TRN", CountryAU},
	{"NZER", CountryNZ},
	{"NZHR", CountryNZ},
	{"IME", CountryCA},
	{"UMI", CountryCA},
	{"UCI", CountryCA},
	{"CEAC", CountryUS},
}

// Classify returns the country for a case identifier based on its prefix.
// Identifiers that match no known prefix yield CountryUnknown.
func Classify(id string) Country {
	id = strings.TrimSpace(id)
	for _, rule := range prefixTable {
		if strings.HasPrefix(id, rule.prefix) {
			return rule.country
		}
	}
	return CountryUnknown
}

// Prefixes returns the known prefixes for a country, in table order.
func Prefixes(c Country) []string {
	var out []string
	for _, rule := range prefixTable {
		if rule.country == c {
			out = append(out, rule.prefix)
		}
	}
	return out
}
