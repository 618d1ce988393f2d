package geocode

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"geonorm/internal/frame"
	"geonorm/internal/gazetteer"
	"geonorm/internal/metrics"
)

// DefaultMinScore is the fuzzy-match acceptance threshold on the 0..100
// similarity scale. Matches scoring below it leave the value unchanged.
const DefaultMinScore = 60

// ReconcileOptions configures name reconciliation.
type ReconcileOptions struct {
	// Depth is the deepest level the run geocodes to; admin3 is only
	// reconciled when Depth is admin3.
	Depth gazetteer.Level

	// Levels are the administrative levels flagged for reconciliation
	// (resolve_to_gadm annotations).
	Levels []gazetteer.Level

	// MinScore overrides DefaultMinScore when > 0.
	MinScore int
}

func (o *ReconcileOptions) wants(l gazetteer.Level) bool {
	for _, lv := range o.Levels {
		if lv == l {
			return true
		}
	}
	return false
}

// ReconcileNames corrects misspelled administrative names in place by
// fuzzy-matching them against the gazetteer. Candidates for each level are
// scoped to the row's already-resolved parent country; admin pairs across
// levels are deliberately not cross-checked, matching the reference data's
// granularity. Values already present in the gazetteer, blank values, and
// values with no acceptable match are left unchanged.
func ReconcileNames(f *frame.Frame, ref *gazetteer.Reference, opt ReconcileOptions) {
	if ref == nil || !f.Has("country") {
		return
	}
	minScore := opt.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	if opt.wants(gazetteer.Admin0) {
		reconcileColumn(f, "country", ref.Countries(), nil, minScore)
	}

	countries := distinctStrings(f.Column("country"))
	for _, c := range countries {
		inCountry := matchValue(f, "country", c)
		for _, level := range []gazetteer.Level{gazetteer.Admin1, gazetteer.Admin2, gazetteer.Admin3} {
			if level == gazetteer.Admin3 && opt.Depth < gazetteer.Admin3 {
				continue
			}
			col := level.Column()
			if !opt.wants(level) || !f.Has(col) {
				continue
			}
			reconcileColumn(f, col, ref.NamesUnder(level, c), inCountry, minScore)
		}
	}
}

// reconcileColumn rewrites unknown values of one column. When rowScope is
// non-nil only rows it selects are considered and rewritten, which is how
// admin candidates stay scoped to their parent country.
func reconcileColumn(f *frame.Frame, col string, candidates []string, rowScope []bool, minScore int) {
	if len(candidates) == 0 {
		return
	}
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c] = true
	}

	cells := f.Column(col)
	replacements := map[string]string{}
	for i, v := range cells {
		if rowScope != nil && !rowScope[i] {
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" || known[s] {
			continue
		}
		if _, done := replacements[s]; done {
			continue
		}
		if best, ok := bestMatch(s, candidates, minScore); ok {
			metrics.RecordGeocode(metrics.GeocodeFuzzyMatch, 1)
			replacements[s] = best
		} else {
			metrics.RecordGeocode(metrics.GeocodeFuzzyMiss, 1)
			replacements[s] = s
		}
	}
	for i, v := range cells {
		if rowScope != nil && !rowScope[i] {
			continue
		}
		if s, ok := v.(string); ok {
			if r, ok := replacements[s]; ok {
				cells[i] = r
			}
		}
	}
}

// bestMatch scores the query against every candidate and returns the best
// one at or above minScore. Candidates are scanned in order and only a
// strictly better score displaces the incumbent, so ties resolve to the
// first candidate found.
func bestMatch(query string, candidates []string, minScore int) (string, bool) {
	fq := foldName(query)
	best := ""
	bestScore := -1
	for _, c := range candidates {
		s := similarity(fq, foldName(c))
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore < minScore {
		return "", false
	}
	return best, true
}

// similarity maps folded strings onto a 0..100 scale. Containment counts as
// a near-match so that "Khartum city" still finds "Khartoum"; otherwise the
// score is derived from edit distance relative to the longer string.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	if len(a) >= 3 && len(b) >= 3 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return 95
	}
	longer := len([]rune(a))
	if lb := len([]rune(b)); lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	score := 100 - (100*d)/longer
	if score < 0 {
		score = 0
	}
	return score
}

// foldName lowercases and strips diacritics so "São Paulo" and "sao paulo"
// compare equal.
var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldName(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func distinctStrings(cells []any) []string {
	var out []string
	seen := map[string]bool{}
	for _, v := range cells {
		if s, ok := v.(string); ok && s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func matchValue(f *frame.Frame, col, value string) []bool {
	cells := f.Column(col)
	out := make([]bool, len(cells))
	for i, v := range cells {
		s, ok := v.(string)
		out[i] = ok && s == value
	}
	return out
}
