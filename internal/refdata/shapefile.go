package refdata

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LoadShapefile reads reference points from a point shapefile. Attributes
// NAME and STATE (case-insensitive) identify each resort; records missing a
// name or a point geometry are skipped with a warning.
func LoadShapefile(path string) ([]Seed, map[string][2]float64, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "refdata: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToUpper(name)] = i
	}
	nameIdx, haveName := fieldIdx["NAME"]
	if !haveName {
		return nil, nil, eris.New("refdata: shapefile has no NAME attribute")
	}
	stateIdx, haveState := fieldIdx["STATE"]

	var (
		seeds   []Seed
		coords  = make(map[string][2]float64)
		skipped int
	)
	for reader.Next() {
		_, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			skipped++
			continue
		}
		state := ""
		if haveState {
			state = strings.TrimSpace(strings.TrimRight(reader.Attribute(stateIdx), "\x00"))
		}

		s := Seed{Name: name, State: state}
		seeds = append(seeds, s)
		coords[CacheKey(s)] = [2]float64{point.Y, point.X} // shapefile points are (x=lon, y=lat)
	}

	if skipped > 0 {
		zap.L().Warn("skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	if len(seeds) == 0 {
		return nil, nil, eris.Errorf("refdata: shapefile %s yielded no usable points", path)
	}
	return seeds, coords, nil
}
