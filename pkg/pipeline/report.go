// pkg/pipeline/report.go
package pipeline

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pranithapadala/covid-data-pipeline/pkg/dag"
)

// RunReport summarizes one pipeline run. Partial success stays observable
// per node; the overall outcome is the AND of the required-node outcomes.
type RunReport struct {
	RunID         string
	StartTime     time.Time
	EndTime       time.Time
	NodeResults   map[string]dag.Result
	RowsExtracted int
	RowsLoaded    int64
}

// NewRunReport initializes a report for a fresh run
func NewRunReport() *RunReport {
	return &RunReport{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
	}
}

// Complete marks the run as finished and records the node results
func (r *RunReport) Complete(results map[string]dag.Result) {
	r.EndTime = time.Now()
	r.NodeResults = results
}

// Duration returns the total run duration
func (r *RunReport) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// Succeeded reports whether every node completed successfully
func (r *RunReport) Succeeded() bool {
	if len(r.NodeResults) == 0 {
		return false
	}
	for _, result := range r.NodeResults {
		if result.Status != dag.StatusSucceeded {
			return false
		}
	}
	return true
}

// Log writes the report through the given logger, one line per node plus a
// summary line
func (r *RunReport) Log(logger *zap.Logger) {
	for nodeID, result := range r.NodeResults {
		fields := []zap.Field{
			zap.String("run_id", r.RunID),
			zap.String("node", nodeID),
			zap.String("status", result.Status.String()),
			zap.Int("attempts", result.Attempts),
			zap.Duration("duration", result.Duration),
		}
		if result.Err != nil {
			fields = append(fields, zap.Error(result.Err))
		}
		if result.Status == dag.StatusSucceeded {
			logger.Info("Node outcome", fields...)
		} else {
			logger.Warn("Node outcome", fields...)
		}
	}

	logger.Info("Run complete",
		zap.String("run_id", r.RunID),
		zap.Bool("success", r.Succeeded()),
		zap.Duration("duration", r.Duration()),
		zap.Int("rows_extracted", r.RowsExtracted),
		zap.Int64("rows_loaded", r.RowsLoaded))
}
