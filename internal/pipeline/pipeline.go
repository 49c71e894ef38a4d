package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/card-etl/internal/dataset"
)

// Pipeline executes a fixed sequence of cleaning stages in order.
type Pipeline struct {
	stages []Stage
	log    zerolog.Logger
}

// New creates a pipeline from the given stages.
func New(log zerolog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, log: log}
}

// NewCleaningPipeline composes the standard eight-stage sequence for the
// transactions dataset, with the state-name lookup injected into the
// enrichment stage.
func NewCleaningPipeline(log zerolog.Logger, states map[string]string) *Pipeline {
	return New(log,
		&SelectColumnsStage{log: log},
		&DropDuplicatesStage{log: log},
		&GenderStage{log: log},
		&LocationStage{log: log},
		NewStateNameStage(log, states),
		&MerchantStage{log: log},
		&AmountStage{log: log},
		&TemporalStage{log: log},
	)
}

// Run executes every stage on a private copy of the raw table and returns the
// cleaned table with the finalized report. The caller's input is never
// mutated. Row-level data quality problems never abort the run; a stage error
// here would indicate a bug, not bad data.
func (p *Pipeline) Run(raw *dataset.Dataset) (*dataset.Dataset, *Report, error) {
	ds := raw.Clone()
	rep := NewReport(ds.Len(), len(ds.Columns))

	p.log.Info().
		Str("run_id", rep.RunID).
		Int("rows_in", rep.RowsIn).
		Int("columns_in", rep.ColumnsIn).
		Msg("cleaning run started")

	for i, stage := range p.stages {
		before := ds.Len()
		if err := stage.Apply(ds, rep); err != nil {
			return nil, nil, fmt.Errorf("pipeline stage %d (%s): %w", i+1, stage.Name(), err)
		}
		if ds.Len() > before {
			return nil, nil, fmt.Errorf("pipeline stage %d (%s): row count grew from %d to %d", i+1, stage.Name(), before, ds.Len())
		}
		p.log.Debug().
			Str("stage", stage.Name()).
			Int("rows_before", before).
			Int("rows_after", ds.Len()).
			Msg("stage complete")
	}

	rep.Finalize(ds.Len())

	p.log.Info().
		Str("run_id", rep.RunID).
		Int("rows_out", rep.RowsOut).
		Int("duplicates_removed", rep.DuplicatesRemoved).
		Strs("derived_fields", rep.DerivedFields).
		Msg("cleaning run finished")

	return ds, rep, nil
}

// Clean runs the standard cleaning pipeline over the raw table. This is the
// public entry point for callers that do not need custom stage wiring.
func Clean(log zerolog.Logger, raw *dataset.Dataset) (*dataset.Dataset, *Report, error) {
	return NewCleaningPipeline(log, USStates()).Run(raw)
}
