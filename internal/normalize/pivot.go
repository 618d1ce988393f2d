package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"geonorm/internal/frame"
	"geonorm/internal/geocode"
	"geonorm/internal/schema"
)

// sniffColumnKind inspects the first non-null cell to decide how alias
// keys, which arrive as strings, should be coerced before matching.
func sniffColumnKind(cells []any) string {
	for _, v := range cells {
		switch v.(type) {
		case nil:
			continue
		case int64, int:
			return "int"
		case float64:
			return "float"
		case bool:
			return "bool"
		default:
			return "string"
		}
	}
	return "string"
}

func parseTruthy(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "t", "true", "on", "1":
		return true, true
	case "n", "no", "f", "false", "off", "0":
		return false, true
	}
	return false, false
}

// applyAliases rewrites a feature column's values through its alias map.
// Alias keys are sniffed against the column's type (integer, float,
// boolean-from-truthy-string, else string) so "4" can match an int64 cell;
// keys that fail coercion fall back to string matching. Once any alias map
// applies, the whole column is coerced to string, because a half-aliased
// column would otherwise mix labels with raw numbers. Nulls stay null.
func applyAliases(f *frame.Frame, a *schema.FeatureAnnotation) {
	if len(a.Aliases) == 0 || !f.Has(a.Name) {
		return
	}
	cells := f.Column(a.Name)
	kind := sniffColumnKind(cells)

	typed := make(map[any]string, len(a.Aliases))
	for key, label := range a.Aliases {
		switch kind {
		case "int":
			if n, err := strconv.ParseInt(key, 10, 64); err == nil {
				typed[n] = label
				continue
			}
		case "float":
			if fv, err := strconv.ParseFloat(key, 64); err == nil {
				typed[fv] = label
				continue
			}
		case "bool":
			if b, ok := parseTruthy(key); ok {
				typed[b] = label
				continue
			}
		}
		typed[key] = label
	}

	for i, v := range cells {
		if label, ok := typed[v]; ok {
			cells[i] = label
			continue
		}
		if frame.IsNull(v) {
			cells[i] = nil
			continue
		}
		cells[i] = frame.CellString(v)
	}
}

// pivot reshapes the wide table into the canonical long format: one block
// of rows per feature, stacked. Each block carries the protected columns,
// the feature's qualifier columns, a constant feature label, and the
// feature's data as value. Qualifier columns extend width only; they never
// produce their own blocks. When a geocode self-join left a disambiguated
// copy of the feature column, that copy supplies value. New qualifier
// columns are appended to colOrder as they are met.
//
// With no features at all the table reduces to the protected columns.
func pivot(f *frame.Frame, features []string, qualifiers map[string][]string, labels map[string]string, protected []string, colOrder *[]string) (*frame.Frame, error) {
	if len(features) == 0 {
		return f.Select(protected)
	}

	inOrder := map[string]bool{}
	for _, c := range *colOrder {
		inOrder[c] = true
	}

	var out *frame.Frame
	for _, feat := range features {
		using := append([]string(nil), protected...)
		for _, q := range qualifiers[feat] {
			using = append(using, q)
			if !inOrder[q] {
				inOrder[q] = true
				*colOrder = append(*colOrder, q)
			}
		}

		valueCol := feat
		if f.Has(feat + geocode.LeftSuffix) {
			valueCol = feat + geocode.LeftSuffix
		}
		block, err := f.Select(append(using, valueCol))
		if err != nil {
			return nil, fmt.Errorf("normalize: pivot %q: %w", feat, err)
		}
		block = block.Clone()
		if err := block.Rename(valueCol, "value"); err != nil {
			return nil, err
		}
		label := feat
		if l, ok := labels[feat]; ok && l != "" {
			label = l
		}
		block.SetConst("feature", label)

		if out == nil {
			out = block
		} else {
			out = out.Append(block)
		}
	}
	return out, nil
}
