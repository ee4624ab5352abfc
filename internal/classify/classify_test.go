package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProvider(t *testing.T) {
	cases := []struct {
		chain string
		want  string
	}{
		{"DAVITA", ProviderDaVita},
		{"DaVita Inc.", ProviderDaVita},
		{"FRESENIUS MEDICAL CARE", ProviderFresenius},
		{"Dialysis Clinic, Inc.", ProviderDCI},
		{"DCI", ProviderDCI},
		{"U.S. RENAL CARE", ProviderUSRC},
		{"US RENAL CARE", ProviderUSRC},
		{"", ProviderIndependent},
		{"NONE", ProviderIndependent},
		{"  none  ", ProviderIndependent},
		{"N/A", ProviderIndependent},
		{"SATELLITE HEALTHCARE", ProviderOther},
		{"American Renal Associates", ProviderOther},
	}
	for _, tc := range cases {
		t.Run(tc.chain, func(t *testing.T) {
			assert.Equal(t, tc.want, Provider(tc.chain))
		})
	}
}
