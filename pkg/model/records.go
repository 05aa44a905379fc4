// pkg/model/records.go
package model

import "time"

// SourceColumns are the columns the remote dataset must provide, in the
// order they are staged.
var SourceColumns = []string{"date", "state", "fips", "cases", "deaths"}

// WarehouseColumns are the columns of the destination table, in insert order.
var WarehouseColumns = []string{"date", "state", "fips", "cases", "deaths", "new_cases", "new_deaths"}

// DateLayout is the calendar-date format used by the source and the warehouse.
const DateLayout = "2006-01-02"

// RawRecord is one row of the source dataset exactly as received. Values stay
// textual; nothing beyond CSV field splitting has been applied.
type RawRecord struct {
	Date   string
	State  string
	FIPS   string
	Cases  string
	Deaths string
}

// RawSnapshot is a full, immutable copy of the source dataset for one run.
// Row order is preserved from the source.
type RawSnapshot struct {
	Records []RawRecord
}

// Len returns the number of rows in the snapshot
func (s *RawSnapshot) Len() int {
	return len(s.Records)
}

// CleanRecord is one row of the transformed dataset: the source columns in
// typed form plus the derived daily incidence metrics.
type CleanRecord struct {
	Date      time.Time
	State     string
	FIPS      int
	Cases     int
	Deaths    int
	NewCases  int
	NewDeaths int
}

// CleanSnapshot is a full, immutable copy of the transformed dataset for one
// run. Within a state, records are ordered by ascending date; states appear in
// their first-appearance order from the raw input, so the ordering is
// deterministic for a given input.
type CleanSnapshot struct {
	Records []CleanRecord
}

// Len returns the number of rows in the snapshot
func (s *CleanSnapshot) Len() int {
	return len(s.Records)
}
