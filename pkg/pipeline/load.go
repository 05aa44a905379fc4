// pkg/pipeline/load.go
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/pranithapadala/covid-data-pipeline/pkg/connector"
	"github.com/pranithapadala/covid-data-pipeline/pkg/model"
)

// Loader replaces the destination table's entire content with a clean
// snapshot: remove all rows, then bulk-insert the snapshot. Running twice
// with the same snapshot leaves the table in the same final state. Truncate
// and load are separate statements; a failure between them can leave the
// table emptied-but-not-reloaded, which is surfaced as LoadFailed rather
// than hidden.
type Loader struct {
	warehouse connector.WarehouseConnector
	table     string
	logger    *zap.Logger
}

// NewLoader creates a loader for the destination table
func NewLoader(warehouse connector.WarehouseConnector, table string, logger *zap.Logger) *Loader {
	return &Loader{
		warehouse: warehouse,
		table:     table,
		logger:    logger.Named("loader"),
	}
}

// Run performs the truncate-then-copy replacement and returns the number of
// rows loaded
func (l *Loader) Run(ctx context.Context, snapshot *model.CleanSnapshot) (int64, error) {
	if err := l.warehouse.Truncate(ctx, l.table); err != nil {
		return 0, NewFailure(LoadFailed, err)
	}

	rows := make([][]interface{}, 0, snapshot.Len())
	for _, rec := range snapshot.Records {
		rows = append(rows, []interface{}{
			rec.Date.Format(model.DateLayout),
			rec.State,
			rec.FIPS,
			rec.Cases,
			rec.Deaths,
			rec.NewCases,
			rec.NewDeaths,
		})
	}

	loaded, err := l.warehouse.CopyRows(ctx, l.table, model.WarehouseColumns, rows)
	if err != nil {
		return loaded, NewFailure(LoadFailed, err)
	}

	l.logger.Info("Replaced destination table",
		zap.String("table", l.table),
		zap.Int64("rows", loaded))

	return loaded, nil
}
