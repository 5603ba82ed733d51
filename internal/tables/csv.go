package tables

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write csv rows: %w", err)
	}
	return f.Close()
}

// csvTable is a parsed CSV file with a column index built from its header.
type csvTable struct {
	cols    map[string]int
	records [][]string
}

func readCSV(path string, required []string) (*csvTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	t := &csvTable{cols: make(map[string]int, len(header))}
	for i, h := range header {
		t.cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	t.records, err = r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	return t, nil
}

// get returns the trimmed value of column col in record i.
func (t *csvTable) get(i int, col string) string {
	idx, ok := t.cols[col]
	if !ok || idx >= len(t.records[i]) {
		return ""
	}
	return strings.TrimSpace(t.records[i][idx])
}
