package symbols

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindLatestCSV returns the newest prefix_YYYY-MM-DD.csv in dir, or
// prefix.csv when no dated file exists.
func FindLatestCSV(dir, prefix string) string {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_????-??-??.csv"))
	if err == nil && len(matches) > 0 {
		sort.Strings(matches)
		return matches[len(matches)-1]
	}
	return filepath.Join(dir, prefix+".csv")
}

// LoadCSV reads symbols from the column headed "symbol" (or the first
// column) of the CSV at path. A missing file yields an empty list.
func LoadCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("reference file not found", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	symbolIdx := 0
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "symbol") {
			symbolIdx = i
			break
		}
	}

	var out []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if len(record) > symbolIdx {
			if sym := Normalize(record[symbolIdx]); sym != "" {
				out = append(out, sym)
			}
		}
	}
	return out, nil
}
