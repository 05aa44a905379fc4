// pkg/model/csv.go
package model

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// DecodeRawCSV structurally decodes a delimited source payload into a
// RawSnapshot. The header row must contain at least the source columns;
// positions are resolved from the header and extra columns are ignored.
// Values pass through untouched. Decoding is all-or-nothing: any structural
// problem returns an error and no snapshot.
func DecodeRawCSV(r io.Reader) (*RawSnapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are caught per-row below

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	// Resolve column positions from the header
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	positions := make([]int, len(SourceColumns))
	for i, name := range SourceColumns {
		pos, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("source header missing required column %q", name)
		}
		positions[i] = pos
	}

	snapshot := &RawSnapshot{}
	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rowNum, err)
		}
		for _, pos := range positions {
			if pos >= len(row) {
				return nil, fmt.Errorf("row %d has %d fields, want at least %d", rowNum, len(row), pos+1)
			}
		}
		snapshot.Records = append(snapshot.Records, RawRecord{
			Date:   row[positions[0]],
			State:  row[positions[1]],
			FIPS:   row[positions[2]],
			Cases:  row[positions[3]],
			Deaths: row[positions[4]],
		})
		rowNum++
	}

	return snapshot, nil
}

// EncodeCSV renders the raw snapshot as a canonical CSV byte stream with a
// header row. Output is byte-identical across calls for the same snapshot.
func (s *RawSnapshot) EncodeCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(SourceColumns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range s.Records {
		row := []string{rec.Date, rec.State, rec.FIPS, rec.Cases, rec.Deaths}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeCSV renders the clean snapshot as a canonical CSV byte stream with a
// header row, dates formatted as calendar days. Output is byte-identical
// across calls for the same snapshot.
func (s *CleanSnapshot) EncodeCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(WarehouseColumns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range s.Records {
		row := []string{
			rec.Date.Format(DateLayout),
			rec.State,
			strconv.Itoa(rec.FIPS),
			strconv.Itoa(rec.Cases),
			strconv.Itoa(rec.Deaths),
			strconv.Itoa(rec.NewCases),
			strconv.Itoa(rec.NewDeaths),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
