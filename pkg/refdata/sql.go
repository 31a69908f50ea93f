package refdata

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // MS SQL Server driver
	_ "github.com/go-sql-driver/mysql"   // MySQL driver
	"github.com/jackc/pgx/v5"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/schema"
	"github.com/ruslano69/tdtp-scrubber/pkg/core/table"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// driverName - имя database/sql драйвера по типу источника
func driverName(sourceType string) string {
	switch sourceType {
	case SourceSQLite:
		return "sqlite"
	case SourceMySQL:
		return "mysql"
	case SourceMSSQL:
		return "mssql"
	default:
		return sourceType
	}
}

// querySQL выполняет запрос через database/sql
func querySQL(ctx context.Context, driverName, dsn, query string) (*table.Table, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driverName, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(names))
		scanArgs := make([]any, len(names))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		data = append(data, normalizeRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return buildTable(names, data)
}

// queryPostgres выполняет запрос нативным протоколом pgx
func queryPostgres(ctx context.Context, dsn, query string) (*table.Table, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	var data [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		data = append(data, normalizeRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return buildTable(names, data)
}

// buildTable - тип колонки определяется по первому не-NULL значению
func buildTable(names []string, data [][]any) (*table.Table, error) {
	columns := make([]*table.Column, len(names))
	for i, name := range names {
		values := make([]any, len(data))
		typ := schema.DataType("")
		for r, row := range data {
			values[r] = row[i]
			if typ == "" && row[i] != nil {
				typ = schema.InferType(row[i])
			}
		}
		columns[i] = table.NewColumn(name, typ, values)
	}
	return table.New(columns...)
}

func normalizeRow(values []any) []any {
	for i, v := range values {
		values[i] = normalizeValue(v)
	}
	return values
}

// normalizeValue приводит значения драйверов к типам таблицы:
// string, int64, float64, bool, time.Time или nil.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return val
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case float32:
		return float64(val)
	case driver.Valuer:
		inner, err := val.Value()
		if err != nil {
			return schema.FormatValue(val)
		}
		if _, same := inner.(driver.Valuer); same {
			return schema.FormatValue(inner)
		}
		return normalizeValue(inner)
	default:
		return schema.FormatValue(val)
	}
}
