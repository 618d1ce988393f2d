// Package isocodes resolves ISO 3166-1 alpha-2 and alpha-3 country codes to
// country names. The lookup table ships embedded in the binary so that an
// iso-annotated column resolves to a country without touching reference
// data or the network.
package isocodes

import (
	"embed"
	"encoding/csv"
	"strings"
	"sync"
)

//go:embed data/iso_lookup.csv
var dataFS embed.FS

var (
	once sync.Once
	by2  map[string]string
	by3  map[string]string
)

func load() {
	by2 = map[string]string{}
	by3 = map[string]string{}

	f, err := dataFS.Open("data/iso_lookup.csv")
	if err != nil {
		// Embedded file; absence is a build defect, not a runtime condition.
		panic("isocodes: " + err.Error())
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		panic("isocodes: parse iso_lookup.csv: " + err.Error())
	}
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		country, iso2, iso3 := row[0], row[1], row[2]
		by2[iso2] = country
		by3[iso3] = country
	}
}

// Country resolves an ISO code of either width to its country name. Codes
// are matched case-insensitively; the second return is false for unknown
// codes, in which case callers keep the original value.
func Country(code string) (string, bool) {
	once.Do(load)
	c := strings.ToUpper(strings.TrimSpace(code))
	switch len(c) {
	case 2:
		name, ok := by2[c]
		return name, ok
	case 3:
		name, ok := by3[c]
		return name, ok
	}
	return "", false
}
