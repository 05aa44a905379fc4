// pkg/pipeline/schema.go
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/pranithapadala/covid-data-pipeline/pkg/connector"
)

// destinationColumns is the static schema of the destination table
var destinationColumns = []string{
	"date DATE",
	"state VARCHAR(50)",
	"fips INTEGER",
	"cases INTEGER",
	"deaths INTEGER",
	"new_cases INTEGER",
	"new_deaths INTEGER",
}

const destinationPrimaryKey = "date, state"

// SchemaInitializer idempotently ensures the destination table exists with
// the required columns and primary key. A table that is already present is a
// no-op, not an error.
type SchemaInitializer struct {
	warehouse connector.WarehouseConnector
	table     string
	logger    *zap.Logger
}

// NewSchemaInitializer creates a schema initializer for the destination table
func NewSchemaInitializer(warehouse connector.WarehouseConnector, table string, logger *zap.Logger) *SchemaInitializer {
	return &SchemaInitializer{
		warehouse: warehouse,
		table:     table,
		logger:    logger.Named("schema-initializer"),
	}
}

// Run creates the destination table if it is absent
func (s *SchemaInitializer) Run(ctx context.Context) error {
	if err := s.warehouse.EnsureTable(ctx, s.table, destinationColumns, destinationPrimaryKey); err != nil {
		return NewFailure(LoadFailed, err)
	}

	s.logger.Info("Destination table ready", zap.String("table", s.table))
	return nil
}
