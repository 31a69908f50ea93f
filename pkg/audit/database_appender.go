package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DatabaseAppender - запись отчета в SQL базу данных
type DatabaseAppender struct {
	mu         sync.Mutex
	db         *sql.DB
	tableName  string
	level      Level
	batchSize  int
	batchQueue []*Entry
	insertStmt *sql.Stmt
	dollar     bool
}

// DatabaseAppenderConfig - конфигурация database appender
type DatabaseAppenderConfig struct {
	// DB - подключение к базе данных
	DB *sql.DB

	// TableName - имя таблицы для отчета
	TableName string

	// Level - уровень детализации
	Level Level

	// BatchSize - размер batch для группового insert (0 = без batching)
	BatchSize int

	// AutoCreateTable - автоматически создать таблицу если не существует
	AutoCreateTable bool

	// DollarPlaceholders - плейсхолдеры $1, $2 (PostgreSQL) вместо ?
	DollarPlaceholders bool
}

// timestampLayout - фиксированная ширина, лексикографический порядок совпадает с хронологическим
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const auditColumns = "id, run_id, created_at, rule_type, field, category, description, records_affected, row_ids, metadata, data"

// NewDatabaseAppender - создать database appender
func NewDatabaseAppender(config DatabaseAppenderConfig) (*DatabaseAppender, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if config.TableName == "" {
		config.TableName = "scrub_audit"
	}

	da := &DatabaseAppender{
		db:         config.DB,
		tableName:  config.TableName,
		level:      config.Level,
		batchSize:  config.BatchSize,
		batchQueue: make([]*Entry, 0, config.BatchSize),
		dollar:     config.DollarPlaceholders,
	}

	if config.AutoCreateTable {
		if err := da.createTable(); err != nil {
			return nil, fmt.Errorf("failed to create audit table: %w", err)
		}
	}

	if err := da.prepareInsert(); err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	return da, nil
}

// createTable - создать таблицу для отчета
func (da *DatabaseAppender) createTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(64) PRIMARY KEY,
			run_id VARCHAR(64),
			created_at VARCHAR(40) NOT NULL,
			rule_type VARCHAR(50) NOT NULL,
			field VARCHAR(255),
			category VARCHAR(20) NOT NULL,
			description TEXT,
			records_affected BIGINT DEFAULT 0,
			row_ids TEXT,
			metadata TEXT,
			data TEXT
		)
	`, da.tableName)

	if _, err := da.db.Exec(query); err != nil {
		return err
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_run ON %s(run_id)", da.tableName, da.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_category ON %s(category)", da.tableName, da.tableName),
	}
	for _, indexQuery := range indexes {
		// Ошибки создания индексов игнорируются (могут не поддерживаться)
		da.db.Exec(indexQuery)
	}

	return nil
}

// placeholders - список плейсхолдеров для n параметров
func (da *DatabaseAppender) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if da.dollar {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

// prepareInsert - подготовить insert statement
func (da *DatabaseAppender) prepareInsert() error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", da.tableName, auditColumns, da.placeholders(11))

	stmt, err := da.db.Prepare(query)
	if err != nil {
		return err
	}

	da.insertStmt = stmt
	return nil
}

// Append - записать entry в базу данных
func (da *DatabaseAppender) Append(ctx context.Context, entry *Entry) error {
	da.mu.Lock()
	defer da.mu.Unlock()

	filtered := entry.FilterByLevel(da.level)

	if da.batchSize > 0 {
		da.batchQueue = append(da.batchQueue, filtered)
		if len(da.batchQueue) >= da.batchSize {
			return da.flushBatch(ctx)
		}
		return nil
	}

	return da.insertEntry(ctx, da.insertStmt, filtered)
}

// insertEntry - вставить одну entry
func (da *DatabaseAppender) insertEntry(ctx context.Context, stmt *sql.Stmt, entry *Entry) error {
	rowIDs, _ := json.Marshal(entry.RowIDs)

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		metadataJSON = []byte("{}")
	}

	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		dataJSON = []byte("null")
	}

	_, err = stmt.ExecContext(
		ctx,
		entry.ID,
		entry.RunID,
		entry.Timestamp.UTC().Format(timestampLayout),
		entry.RuleType,
		entry.Field,
		string(entry.Category),
		entry.Description,
		entry.RecordsAffected,
		string(rowIDs),
		string(metadataJSON),
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// flushBatch - записать batch entries в одной транзакции
func (da *DatabaseAppender) flushBatch(ctx context.Context) error {
	if len(da.batchQueue) == 0 {
		return nil
	}

	tx, err := da.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.StmtContext(ctx, da.insertStmt)
	defer stmt.Close()

	for _, entry := range da.batchQueue {
		if err := da.insertEntry(ctx, stmt, entry); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	da.batchQueue = da.batchQueue[:0]
	return nil
}

// Flush - сбросить batch queue
func (da *DatabaseAppender) Flush() error {
	da.mu.Lock()
	defer da.mu.Unlock()

	if da.batchSize > 0 && len(da.batchQueue) > 0 {
		return da.flushBatch(context.Background())
	}
	return nil
}

// Close - сбросить остаток и закрыть statement (подключение закрывает владелец)
func (da *DatabaseAppender) Close() error {
	if err := da.Flush(); err != nil {
		return err
	}

	if da.insertStmt != nil {
		return da.insertStmt.Close()
	}
	return nil
}

// QueryFilter - фильтр для запроса записей
type QueryFilter struct {
	RunID    string
	RuleType string
	Category Category
	Limit    int
}

// where - условия и аргументы фильтра
func (da *DatabaseAppender) where(filter QueryFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		if da.dollar {
			conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
		} else {
			conds = append(conds, column+" = ?")
		}
	}

	if filter.RunID != "" {
		add("run_id", filter.RunID)
	}
	if filter.RuleType != "" {
		add("rule_type", filter.RuleType)
	}
	if filter.Category != "" {
		add("category", string(filter.Category))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query - запросить записи из базы в порядке записи
func (da *DatabaseAppender) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	where, args := da.where(filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at", auditColumns, da.tableName, where)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := da.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry := &Entry{}
		var category, rowIDs, metadataJSON, dataJSON string
		var runID, field, description sql.NullString
		var created string

		if err := rows.Scan(&entry.ID, &runID, &created, &entry.RuleType, &field, &category,
			&description, &entry.RecordsAffected, &rowIDs, &metadataJSON, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entry.RunID = runID.String
		entry.Field = field.String
		entry.Description = description.String
		entry.Timestamp, _ = time.Parse(timestampLayout, created)
		entry.Category = Category(category)
		if rowIDs != "" && rowIDs != "null" {
			json.Unmarshal([]byte(rowIDs), &entry.RowIDs)
		}
		if metadataJSON != "" && metadataJSON != "null" {
			json.Unmarshal([]byte(metadataJSON), &entry.Metadata)
		}
		if dataJSON != "" && dataJSON != "null" {
			json.Unmarshal([]byte(dataJSON), &entry.Data)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

// Count - подсчитать количество записей
func (da *DatabaseAppender) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := da.where(filter)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", da.tableName, where)

	var count int64
	if err := da.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}
