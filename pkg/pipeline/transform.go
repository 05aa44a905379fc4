// pkg/pipeline/transform.go
package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pranithapadala/covid-data-pipeline/pkg/model"
)

// Transformer derives daily incidence metrics from the cumulative source
// counts. For a fixed input snapshot the output is byte-identical across
// runs: states keep their first-appearance order and dates are ascending
// within each state.
type Transformer struct {
	logger *zap.Logger
}

// NewTransformer creates a transformer
func NewTransformer(logger *zap.Logger) *Transformer {
	return &Transformer{logger: logger.Named("transformer")}
}

// Run transforms a raw snapshot into a clean one. Any unparseable date or
// non-integral numeric value fails the whole transform with MalformedSource;
// no partial output is produced.
func (t *Transformer) Run(raw *model.RawSnapshot) (*model.CleanSnapshot, error) {
	type parsedRow struct {
		date   time.Time
		state  string
		fips   int
		cases  int
		deaths int
	}

	// Parse every row up front so a bad value fails the run before any
	// metrics are derived
	groups := make(map[string][]parsedRow)
	var stateOrder []string

	for i, rec := range raw.Records {
		date, err := time.Parse(model.DateLayout, rec.Date)
		if err != nil {
			return nil, NewFailure(MalformedSource,
				fmt.Errorf("row %d: unparseable date %q: %w", i, rec.Date, err))
		}

		fips, err := parseIntColumn(i, "fips", rec.FIPS)
		if err != nil {
			return nil, err
		}
		cases, err := parseIntColumn(i, "cases", rec.Cases)
		if err != nil {
			return nil, err
		}
		deaths, err := parseIntColumn(i, "deaths", rec.Deaths)
		if err != nil {
			return nil, err
		}

		if _, seen := groups[rec.State]; !seen {
			stateOrder = append(stateOrder, rec.State)
		}
		groups[rec.State] = append(groups[rec.State], parsedRow{
			date:   date,
			state:  rec.State,
			fips:   fips,
			cases:  cases,
			deaths: deaths,
		})
	}

	clean := &model.CleanSnapshot{Records: make([]model.CleanRecord, 0, raw.Len())}

	for _, state := range stateOrder {
		rows := groups[state]

		// Stable sort keeps input order for equal dates, so the output stays
		// deterministic for a given input
		sort.SliceStable(rows, func(a, b int) bool {
			return rows[a].date.Before(rows[b].date)
		})

		for i, row := range rows {
			rec := model.CleanRecord{
				Date:   row.date,
				State:  row.state,
				FIPS:   row.fips,
				Cases:  row.cases,
				Deaths: row.deaths,
			}

			// First date of a state's series has no prior value to diff
			// against; later days clamp negative diffs (source revisions)
			// to zero rather than reporting a decrease
			if i > 0 {
				rec.NewCases = clampNonNegative(row.cases - rows[i-1].cases)
				rec.NewDeaths = clampNonNegative(row.deaths - rows[i-1].deaths)
			}

			clean.Records = append(clean.Records, rec)
		}
	}

	t.logger.Info("Transformed snapshot",
		zap.Int("raw_rows", raw.Len()),
		zap.Int("clean_rows", clean.Len()),
		zap.Int("states", len(stateOrder)))

	return clean, nil
}

// parseIntColumn parses a source value that must be integral. A fractional
// value signals upstream corruption and is rejected rather than truncated.
func parseIntColumn(row int, column, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, NewFailure(MalformedSource,
			fmt.Errorf("row %d: column %s has non-integral value %q", row, column, value))
	}
	return n, nil
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
