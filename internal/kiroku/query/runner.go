package query

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// maxRows bounds how many rows a single analytics query may return to the
// caller. Results are rendered client-side; anything past this is noise.
const maxRows = 1000

// VisualizationType hints how the client should render a result.
type VisualizationType string

const (
	VizKPI   VisualizationType = "kpi"
	VizTable VisualizationType = "table"
	VizBar   VisualizationType = "bar"
	VizPie   VisualizationType = "pie"
	VizLine  VisualizationType = "line"
	VizArea  VisualizationType = "area"
)

// Metadata describes the shape of a query result for rendering.
type Metadata struct {
	VisualizationType VisualizationType `json:"visualizationType"`
	Columns           []string          `json:"columns"`
	ColumnTypes       map[string]string `json:"columnTypes"`
	RowCount          int               `json:"rowCount"`
	ColumnCount       int               `json:"columnCount"`
}

// Result is the shaped output of one guarded analytics query.
type Result struct {
	SQL         string           `json:"sql"`
	Explanation string           `json:"explanation"`
	Data        []map[string]any `json:"data"`
	Metadata    Metadata         `json:"metadata"`
}

// Runner executes guarded SELECT statements against the diary database.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a Runner over the given database handle.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// Run guards and executes stmt, returning shaped rows plus rendering
// metadata. The guard runs first; a rejected statement never reaches the
// database.
func (r *Runner) Run(ctx context.Context, stmt, explanation string) (*Result, error) {
	if err := Guard(stmt); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query: execute: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query: columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("query: column types: %w", err)
	}

	columnTypes := make(map[string]string, len(columns))
	for _, ct := range colTypes {
		name := ct.Name()
		dbType := strings.ToLower(ct.DatabaseTypeName())
		if dbType == "" {
			dbType = "text"
		}
		columnTypes[name] = dbType
	}

	var data []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query: scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		data = append(data, row)

		if len(data) >= maxRows {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: iterate rows: %w", err)
	}
	if data == nil {
		data = []map[string]any{}
	}

	result := &Result{
		SQL:         stmt,
		Explanation: explanation,
		Data:        data,
		Metadata: Metadata{
			VisualizationType: inferVisualization(columns, columnTypes, data),
			Columns:           columns,
			ColumnTypes:       columnTypes,
			RowCount:          len(data),
			ColumnCount:       len(columns),
		},
	}
	return result, nil
}

// normalizeValue converts driver-level values into JSON-friendly ones.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// datePattern recognises ISO date strings and date-named columns for the
// time-series heuristic.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// inferVisualization picks a rendering hint from the result shape. The
// policy is deterministic and intentionally simple:
//
//	1×1            → kpi
//	date + number  → line
//	label + number → pie (≤ 8 rows) or bar (≤ 30 rows)
//	anything else  → table
func inferVisualization(columns []string, types map[string]string, data []map[string]any) VisualizationType {
	if len(columns) == 1 && len(data) == 1 {
		return VizKPI
	}
	if len(columns) == 2 && len(data) > 0 {
		first, second := columns[0], columns[1]
		// Expression columns (COUNT, AVG, ...) carry no declared type in
		// SQLite, so numeric-ness is judged from the values themselves with
		// the declared type as fallback.
		if isNumericValue(data[0][second]) || isNumericType(types[second]) {
			if isDateLike(first, data) {
				return VizLine
			}
			if len(data) <= 8 {
				return VizPie
			}
			if len(data) <= 30 {
				return VizBar
			}
		}
	}
	return VizTable
}

// isNumericValue reports whether a scanned value is numeric.
func isNumericValue(v any) bool {
	switch v.(type) {
	case int64, float64, int, float32:
		return true
	}
	return false
}

// isNumericType reports whether a SQLite column type name is numeric.
func isNumericType(dbType string) bool {
	switch dbType {
	case "integer", "int", "real", "float", "numeric", "double":
		return true
	}
	return false
}

// isDateLike reports whether the named first column holds date-shaped
// values, judged from its name or the first row's value.
func isDateLike(column string, data []map[string]any) bool {
	lower := strings.ToLower(column)
	if strings.Contains(lower, "date") || strings.Contains(lower, "month") ||
		strings.Contains(lower, "year") || strings.Contains(lower, "day") {
		return true
	}
	if s, ok := data[0][column].(string); ok {
		return datePattern.MatchString(s)
	}
	return false
}
