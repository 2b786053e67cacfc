package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
)

// QueryParams narrows down the rows returned by a query.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, e.g. "Time > ?".
	Where string
	Args  []any

	// OrderBy is a column list without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows. Zero returns all the rows; Offset is
	// only honored together with a Limit.
	Limit  int
	Offset int
}

// DataReader reads tables written by a DataRecorder back into structs.
type DataReader interface {
	// MapTable binds a table to the struct type its rows are decoded into.
	// Columns without a matching exported field are skipped.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables, sorted.
	ListTables() []string

	// StoredTables returns the tables present in the database, sorted.
	StoredTables(ctx context.Context) ([]string, error)

	// Query returns pointers to structs of the mapped type, plus the number
	// of rows matching params.Where regardless of Limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

// SQLiteReader is a DataReader over a SQLite database.
type SQLiteReader struct {
	db     *sql.DB
	tables map[string]reflect.Type
}

// NewReader opens an existing database file in read-only mode.
func NewReader(dbFilename string) (*SQLiteReader, error) {
	if _, err := os.Stat(dbFilename); err != nil {
		return nil, fmt.Errorf("datarecording: open %s: %w", dbFilename, err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbFilename+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("datarecording: open %s: %w", dbFilename, err)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a reader over an opened database.
func NewReaderWithDB(db *sql.DB) *SQLiteReader {
	return &SQLiteReader{
		db:     db,
		tables: make(map[string]reflect.Type),
	}
}

// MapTable binds a table to a struct type.
func (r *SQLiteReader) MapTable(tableName string, sampleEntry any) {
	t := reflect.TypeOf(sampleEntry)
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Errorf("%w: table %s", ErrInvalidEntry, tableName))
	}

	r.tables[tableName] = t
}

// ListTables returns the mapped tables, sorted.
func (r *SQLiteReader) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// StoredTables returns the tables present in the database, sorted.
func (r *SQLiteReader) StoredTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

// Query decodes the rows of a mapped table.
func (r *SQLiteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	rowType, ok := r.tables[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("datarecording: table %s is not mapped", tableName)
	}

	where := ""
	if params.Where != "" {
		where = " WHERE " + params.Where
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+quoteIdent(tableName)+where,
		params.Args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		selectStatement(tableName, where, params), params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := decodeRows(rows, rowType)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// Close closes the database.
func (r *SQLiteReader) Close() error {
	return r.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func selectStatement(tableName, where string, params QueryParams) string {
	var b strings.Builder

	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(tableName))
	b.WriteString(where)

	if params.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", params.Limit, params.Offset)
	}

	return b.String()
}

// decodeRows maps each column to a field once, then scans every row into a
// new struct of rowType.
func decodeRows(rows *sql.Rows, rowType reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fieldOf := make([]int, len(columns))
	for i, column := range columns {
		fieldOf[i] = -1

		field, ok := rowType.FieldByName(column)
		if ok && field.IsExported() && len(field.Index) == 1 {
			fieldOf[i] = field.Index[0]
		}
	}

	var results []any

	for rows.Next() {
		row := reflect.New(rowType)
		targets := make([]any, len(columns))

		for i, idx := range fieldOf {
			if idx < 0 {
				targets[i] = new(any)
				continue
			}

			targets[i] = row.Elem().Field(idx).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, row.Interface())
	}

	return results, rows.Err()
}

var _ DataReader = (*SQLiteReader)(nil)
