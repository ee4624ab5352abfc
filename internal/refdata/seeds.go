// Package refdata loads the reference points (ski resorts) the proximity
// join runs against. The canonical seed list ships embedded in the binary;
// deployments can override it with a YAML file or a point shapefile.
package refdata

import (
	_ "embed"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed seeds.yaml
var embeddedSeeds []byte

// Seed is one resort awaiting (or holding) coordinates.
type Seed struct {
	Name   string `yaml:"name"`
	State  string `yaml:"state"`
	Region string `yaml:"region"`
}

type seedFile struct {
	Resorts []Seed `yaml:"resorts"`
}

// LoadSeeds parses the embedded seed list.
func LoadSeeds() ([]Seed, error) {
	return parseSeeds(embeddedSeeds)
}

// LoadSeedsFile parses a seed list from disk, replacing the embedded set.
func LoadSeedsFile(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: read seeds %s", path)
	}
	return parseSeeds(data)
}

func parseSeeds(data []byte) ([]Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "refdata: parse seeds")
	}
	if len(f.Resorts) == 0 {
		return nil, eris.New("refdata: seed list is empty")
	}
	for i, s := range f.Resorts {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.State) == "" {
			return nil, eris.Errorf("refdata: seed %d missing name or state", i)
		}
	}
	return f.Resorts, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the stable identifier for a resort, e.g. "vail-co" or
// "heavenly-ca-nv". It survives renames of display fields because output
// consumers key on it.
func Slug(name, state string) string {
	s := strings.ToLower(name + " " + state)
	s = slugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
