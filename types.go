package pgscope

// ListTablesInput is the input for the ListTables operation.
type ListTablesInput struct {
	Schema       string `json:"schema"`
	IncludeViews bool   `json:"include_views"`
}

// TableSummary is one table (or view) entry in the ListTables payload.
type TableSummary struct {
	Schema      string `json:"table_schema"`
	Name        string `json:"table_name"`
	Type        string `json:"table_type"` // "BASE TABLE", "VIEW"
	ColumnCount int64  `json:"column_count"`

	// PrimaryKeyColumns is the comma-joined primary key column list,
	// empty when the table has no primary key.
	PrimaryKeyColumns string `json:"primary_key_columns"`

	// TableSize is the human-readable total relation size ("16 kB").
	TableSize string `json:"table_size"`
}

// TablesOutput is the envelope returned by ListTables.
type TablesOutput struct {
	Success bool           `json:"success"`
	Data    []TableSummary `json:"data"`
	Count   int            `json:"count"`
	Error   *string        `json:"error"`
}

// ListRoutinesInput is the input for the ListRoutines operation. Schema
// filters by exact schema name; NamePattern is SQL LIKE syntax. Both are
// optional and independent.
type ListRoutinesInput struct {
	Schema      string `json:"schema"`
	NamePattern string `json:"name_pattern"`
}

// RoutineInfo is one routine entry in the ListRoutines payload.
type RoutineInfo struct {
	Schema     string `json:"schema_name"`
	Name       string `json:"function_name"`
	Arguments  string `json:"arguments"`
	ReturnType string `json:"return_type"`
	Kind       string `json:"routine_type"` // "function", "procedure", "aggregate", "window", "unknown"
	Volatility string `json:"volatility"`   // "immutable", "stable", "volatile"
	Language   string `json:"language"`

	// Definition is the full CREATE statement where the backend can render
	// one; empty for aggregates and window functions.
	Definition string `json:"definition"`
}

// RoutinesOutput is the envelope returned by ListRoutines.
type RoutinesOutput struct {
	Success bool          `json:"success"`
	Data    []RoutineInfo `json:"data"`
	Count   int           `json:"count"`
	Error   *string       `json:"error"`
}

// DescribeTableInput is the input for the DescribeTable operation. Schema
// defaults to "public" when empty.
type DescribeTableInput struct {
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name      string  `json:"column_name"`
	DataType  string  `json:"data_type"`
	MaxLength *int64  `json:"character_maximum_length"`
	Nullable  bool    `json:"is_nullable"`
	Default   *string `json:"column_default"`
	Position  int     `json:"ordinal_position"`
}

// ConstraintInfo describes a single constraint column. Multi-column
// constraints appear as one entry per column. The referenced fields are set
// for foreign keys only.
type ConstraintInfo struct {
	Name             string  `json:"constraint_name"`
	Type             string  `json:"constraint_type"` // PRIMARY KEY, FOREIGN KEY, UNIQUE, CHECK
	Column           *string `json:"column_name"`
	ReferencedTable  *string `json:"foreign_table_name"`
	ReferencedColumn *string `json:"foreign_column_name"`
}

// IndexInfo describes a single index with its column list in index order.
type IndexInfo struct {
	Name      string   `json:"index_name"`
	Columns   []string `json:"columns"`
	Type      string   `json:"index_type"` // access method: "btree", "hash", "gin", ...
	IsUnique  bool     `json:"is_unique"`
	IsPrimary bool     `json:"is_primary"`
}

// TableSchema is the DescribeTable payload: the table identity plus its
// columns, constraints, and indexes. Tables with no constraints or indexes
// carry empty sequences, never null.
type TableSchema struct {
	Table       string           `json:"table_name"`
	Schema      string           `json:"schema"`
	Columns     []ColumnInfo     `json:"columns"`
	Constraints []ConstraintInfo `json:"constraints"`
	Indexes     []IndexInfo      `json:"indexes"`
}

// TableSchemaOutput is the envelope returned by DescribeTable.
type TableSchemaOutput struct {
	Success bool        `json:"success"`
	Data    TableSchema `json:"data"`
	Error   *string     `json:"error"`
}

// QueryInput is the input for the ExecuteQuery operation. Limit caps the
// returned rows for selection queries without an explicit limiting clause;
// zero means the configured default.
type QueryInput struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

// QueryOutput is the envelope returned by ExecuteQuery. Columns preserves
// the result column order that the row mappings cannot.
type QueryOutput struct {
	Success  bool             `json:"success"`
	Columns  []string         `json:"columns"`
	Data     []map[string]any `json:"data"`
	RowCount int              `json:"row_count"`
	Error    *string          `json:"error"`
}

// TableFailure records one table whose describe step failed during a schema
// summary.
type TableFailure struct {
	Schema string `json:"schema"`
	Table  string `json:"table_name"`
	Error  string `json:"error"`
}

// SummaryTotals carries the aggregate counts of a schema summary.
type SummaryTotals struct {
	TotalTables    int `json:"total_tables"`
	TotalFunctions int `json:"total_functions"`
}

// SchemaSummary is the SchemaSummary payload: the table list, the detailed
// schema of every table that could be described, the routine list, and the
// tables that failed along the way.
type SchemaSummary struct {
	Tables          []TableSummary `json:"tables"`
	DetailedSchemas []TableSchema  `json:"detailed_schemas"`
	Functions       []RoutineInfo  `json:"functions"`
	FailedTables    []TableFailure `json:"failed_tables"`
	Totals          SummaryTotals  `json:"summary"`
}

// SummaryOutput is the envelope returned by SchemaSummary.
type SummaryOutput struct {
	Success bool          `json:"success"`
	Data    SchemaSummary `json:"data"`
	Error   *string       `json:"error"`
}

// errText converts an error into the envelope error field.
func errText(err error) *string {
	s := err.Error()
	return &s
}

// emptyTableSchema is the empty-default DescribeTable payload used in
// failure envelopes.
func emptyTableSchema() TableSchema {
	return TableSchema{
		Columns:     []ColumnInfo{},
		Constraints: []ConstraintInfo{},
		Indexes:     []IndexInfo{},
	}
}

// emptySchemaSummary is the empty-default SchemaSummary payload used in
// failure envelopes.
func emptySchemaSummary() SchemaSummary {
	return SchemaSummary{
		Tables:          []TableSummary{},
		DetailedSchemas: []TableSchema{},
		Functions:       []RoutineInfo{},
		FailedTables:    []TableFailure{},
	}
}
