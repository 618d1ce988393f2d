package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"geonorm/internal/frame"
	"geonorm/internal/normalize"
)

// writeOutputs writes the normalized table as CSV and the rename report as
// JSON next to it, deriving file names from the input's base name.
func writeOutputs(dir, inputPath string, res *normalize.Result) (string, string, error) {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outPath := filepath.Join(dir, base+".normalized.csv")
	reportPath := filepath.Join(dir, base+".renames.json")

	if err := writeCSV(outPath, res.Frame); err != nil {
		return "", "", err
	}
	if err := writeRenames(reportPath, res.Renames); err != nil {
		return "", "", err
	}
	return outPath, reportPath, nil
}

func writeCSV(path string, f *frame.Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	cols := f.Columns()
	if err := w.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(cols))
	for i := 0; i < f.Len(); i++ {
		for j, c := range cols {
			row[j] = frame.CellString(f.Column(c)[i])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return file.Close()
}

func writeRenames(path string, ledger normalize.Ledger) error {
	b, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("encode renames: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
