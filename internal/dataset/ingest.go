package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// LoadCSV ingests a CSV file into an in-memory Dataset. Parsing and type
// inference are delegated to an in-memory DuckDB instance (read_csv_auto),
// which handles quoting, separators and date detection far better than a
// hand-rolled reader would.
func LoadCSV(ctx context.Context, path string) (*Dataset, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT * FROM read_csv_auto('%s')", strings.ReplaceAll(path, "'", "''"))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Type: mapSQLType(colTypes[i].DatabaseTypeName())}
	}

	scan := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range scan {
		ptrs[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range scan {
			columns[i].Values = append(columns[i].Values, normalizeValue(v, columns[i].Type))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return New(columns)
}

// ReadCSV ingests CSV content from a reader by staging it in a temporary
// file, since DuckDB reads from paths.
func ReadCSV(ctx context.Context, r io.Reader) (*Dataset, error) {
	tmp, err := os.CreateTemp("", "rabbit-upload-*.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to stage CSV: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to stage CSV: %w", err)
	}

	return LoadCSV(ctx, tmp.Name())
}

func mapSQLType(dbType string) Type {
	t := strings.ToUpper(dbType)
	switch {
	case strings.HasPrefix(t, "DATE"), strings.HasPrefix(t, "TIMESTAMP"), strings.HasPrefix(t, "TIME"):
		return TypeTemporal
	case strings.Contains(t, "INT"), strings.Contains(t, "DOUBLE"), strings.Contains(t, "FLOAT"),
		strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"), strings.Contains(t, "REAL"):
		return TypeNumeric
	default:
		return TypeText
	}
}

// normalizeValue narrows driver values to the dataset's value domain:
// nil, float64, string or time.Time.
func normalizeValue(v any, t Type) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case *big.Int:
		f, _ := new(big.Float).SetInt(val).Float64()
		return f
	case bool:
		return fmt.Sprintf("%t", val)
	case time.Time:
		return val
	case []byte:
		return string(val)
	case string:
		if t == TypeText && strings.TrimSpace(val) == "" {
			return nil
		}
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
