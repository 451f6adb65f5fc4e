package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoData is returned when the output file does not exist
var ErrNoData = errors.New("no data found")

// EachRecord calls fn for every data row in the CSV file at path, keyed by the
// header. A missing file returns ErrNoData; an empty file yields no rows.
func EachRecord(path string, fn func(record map[string]string) error) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoData
		}
		return fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}

		record := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = row[i]
			}
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

// CountRows returns the number of data rows, excluding the header
func CountRows(path string) (int, error) {
	n := 0
	err := EachRecord(path, func(map[string]string) error {
		n++
		return nil
	})
	return n, err
}
