// Package classify maps raw facility chain labels to provider categories.
// The upstream dataset free-texts the chain organization column, so matching
// is case-insensitive and substring based.
package classify

import "strings"

// Provider categories emitted into the clinics output.
const (
	ProviderDaVita      = "davita"
	ProviderFresenius   = "fresenius"
	ProviderDCI         = "dci"
	ProviderUSRC        = "usrc"
	ProviderIndependent = "independent"
	ProviderOther       = "other"
)

// Provider classifies a chain organization label. Empty, "NONE" and
// placeholder values mean the facility reports no chain affiliation.
func Provider(chain string) string {
	c := strings.ToUpper(strings.TrimSpace(chain))
	switch {
	case c == "" || c == "NONE" || c == "NAN" || c == "N/A":
		return ProviderIndependent
	case strings.Contains(c, "DAVITA"):
		return ProviderDaVita
	case strings.Contains(c, "FRESENIUS"):
		return ProviderFresenius
	case strings.Contains(c, "DIALYSIS CLINIC"), c == "DCI":
		return ProviderDCI
	case strings.Contains(c, "U.S. RENAL") || strings.Contains(c, "US RENAL") || strings.Contains(c, "USRC"):
		return ProviderUSRC
	default:
		return ProviderOther
	}
}
