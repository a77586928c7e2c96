package pgscope

import (
	"context"
	"time"
)

// SchemaSummary assembles a full snapshot of the database: the table list
// (views excluded), the detailed schema of every listed table, and the
// routine list, plus aggregate totals. Per-table describes run sequentially
// in listed order. A table whose describe step fails is reported in
// failed_tables instead of silently dropped; only a failure of the initial
// table listing fails the whole operation, with that error unchanged.
func (s *Scope) SchemaSummary(ctx context.Context) *SummaryOutput {
	startTime := time.Now()

	tablesOut := s.ListTables(ctx, ListTablesInput{})
	if !tablesOut.Success {
		return &SummaryOutput{Data: emptySchemaSummary(), Error: tablesOut.Error}
	}

	detailed := []TableSchema{}
	failed := []TableFailure{}
	for _, t := range tablesOut.Data {
		schemaOut := s.DescribeTable(ctx, DescribeTableInput{Table: t.Name, Schema: t.Schema})
		if !schemaOut.Success {
			failed = append(failed, TableFailure{Schema: t.Schema, Table: t.Name, Error: *schemaOut.Error})
			continue
		}
		detailed = append(detailed, schemaOut.Data)
	}

	// Routine listing failures degrade to an empty list; the failure is
	// already logged by ListRoutines.
	routinesOut := s.ListRoutines(ctx, ListRoutinesInput{})

	s.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", tablesOut.Count).
		Int("described_count", len(detailed)).
		Int("failed_count", len(failed)).
		Int("routine_count", routinesOut.Count).
		Msg("SchemaSummary executed")

	return &SummaryOutput{
		Success: true,
		Data: SchemaSummary{
			Tables:          tablesOut.Data,
			DetailedSchemas: detailed,
			Functions:       routinesOut.Data,
			FailedTables:    failed,
			Totals: SummaryTotals{
				TotalTables:    tablesOut.Count,
				TotalFunctions: routinesOut.Count,
			},
		},
	}
}
