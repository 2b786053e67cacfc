// Package datarecording stores simulation output, such as monitor series and
// process traces, in SQLite tables whose columns mirror flat Go structs.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// HasTable tells if a table has been created by this recorder.
	HasTable(tableName string) bool

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// ErrInvalidEntry is returned for entries that are not flat structs of
// scalar fields.
var ErrInvalidEntry = errors.New("datarecording: entry must be a struct of scalar fields")

// NewDataRecorder creates a DataRecorder that writes to path + ".sqlite3".
// An empty path picks a unique name.
func NewDataRecorder(path string) DataRecorder {
	w := NewSQLiteWriter(path)
	w.Init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewDataRecorderWithDB creates a DataRecorder over an existing database.
func NewDataRecorderWithDB(db *sql.DB) DataRecorder {
	w := &SQLiteWriter{
		DB:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

const defaultBatchSize = 100000

type table struct {
	structType reflect.Type
	entries    []any
}

// SQLiteWriter is the writer that writes data into SQLite database
type SQLiteWriter struct {
	*sql.DB

	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

// NewSQLiteWriter creates a writer. Init must be called before use.
func NewSQLiteWriter(path string) *SQLiteWriter {
	return &SQLiteWriter{
		dbName:    path,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}
}

// WithBatchSize sets how many entries are buffered before an automatic flush.
func (t *SQLiteWriter) WithBatchSize(n int) *SQLiteWriter {
	t.batchSize = n
	return t
}

// Filename returns the database file name.
func (t *SQLiteWriter) Filename() string {
	return t.dbName + ".sqlite3"
}

// Init establishes a connection to the database.
func (t *SQLiteWriter) Init() {
	if t.dbName == "" {
		t.dbName = "procsim_recording_" + xid.New().String()
	}

	filename := t.Filename()

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	t.DB = db
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func fieldNames(entry any) ([]string, error) {
	typ := reflect.TypeOf(entry)
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, ErrInvalidEntry
	}

	names := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || !isAllowedKind(field.Type.Kind()) {
			return nil, fmt.Errorf("%w: field %s", ErrInvalidEntry, field.Name)
		}

		names = append(names, field.Name)
	}

	return names, nil
}

// CreateTable creates a table named tableName with one column per field of
// sampleEntry.
func (t *SQLiteWriter) CreateTable(tableName string, sampleEntry any) {
	names, err := fieldNames(sampleEntry)
	if err != nil {
		panic(err)
	}

	fields := strings.Join(names, ", \n\t")
	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	t.mustExecute(createTableSQL)

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		entries:    []any{},
	}
}

// HasTable tells if the table has been created.
func (t *SQLiteWriter) HasTable(tableName string) bool {
	_, ok := t.tables[tableName]
	return ok
}

// InsertData buffers an entry. Entries are written on Flush, or when the
// buffer reaches the batch size.
func (t *SQLiteWriter) InsertData(tableName string, entry any) {
	table, exists := t.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry of type %T does not match table %s",
			entry, tableName))
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		t.Flush()
	}
}

// ListTables returns the names of the created tables, sorted.
func (t *SQLiteWriter) ListTables() []string {
	tables := make([]string, 0, len(t.tables))
	for table := range t.tables {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

// Flush writes buffered entries in one transaction.
func (t *SQLiteWriter) Flush() {
	if t.entryCount == 0 {
		return
	}

	tx, err := t.Begin()
	if err != nil {
		panic(err)
	}

	for _, tableName := range t.ListTables() {
		table := t.tables[tableName]
		if len(table.entries) == 0 {
			continue
		}

		stmt := t.mustPrepare(tx, tableName, table.entries[0])

		for _, entry := range table.entries {
			v := reflect.ValueOf(entry)

			values := make([]any, 0, v.NumField())
			for i := 0; i < v.NumField(); i++ {
				values = append(values, v.Field(i).Interface())
			}

			if _, err := stmt.Exec(values...); err != nil {
				_ = tx.Rollback()
				panic(err)
			}
		}

		stmt.Close()
		table.entries = nil
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	t.entryCount = 0
}

// Close flushes the buffered entries and closes the database.
func (t *SQLiteWriter) Close() error {
	t.Flush()
	return t.DB.Close()
}

func (t *SQLiteWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		panic(fmt.Errorf("failed to execute %q: %w", query, err))
	}

	return res
}

func (t *SQLiteWriter) mustPrepare(
	tx *sql.Tx,
	tableName string,
	entry any,
) *sql.Stmt {
	n := reflect.TypeOf(entry).NumField()

	placeholders := make([]string, n)
	for i := range placeholders {
		placeholders[i] = "?"
	}

	sqlStr := "INSERT INTO " + tableName +
		" VALUES (" + strings.Join(placeholders, ", ") + ")"

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}

var _ DataRecorder = (*SQLiteWriter)(nil)
