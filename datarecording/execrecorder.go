package datarecording

import (
	"os"
	"strings"
	"time"

	"github.com/rs/xid"
)

// ExecInfo is one property of a program execution.
type ExecInfo struct {
	Property string
	Value    string
}

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// An ExecRecorder records how and when the program that produced a database
// was run. Properties are buffered until End.
type ExecRecorder struct {
	tableName string
	recorder  DataRecorder
	entries   []ExecInfo
}

// NewExecRecorder creates an ExecRecorder writing into the "exec_info" table.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	e := &ExecRecorder{
		tableName: "exec_info",
		recorder:  recorder,
	}

	if !recorder.HasTable(e.tableName) {
		recorder.CreateTable(e.tableName, ExecInfo{})
	}

	return e
}

// Start records the run ID, start time, command line and working directory.
func (e *ExecRecorder) Start() {
	e.Add("Run ID", xid.New().String())
	e.Add("Start Time", time.Now().Format(execTimeFormat))
	e.Add("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "unknown"
	}

	e.Add("Working Directory", cwd)
}

// Add buffers an extra property.
func (e *ExecRecorder) Add(property, value string) {
	e.entries = append(e.entries, ExecInfo{Property: property, Value: value})
}

// End writes the buffered properties along with the end time.
func (e *ExecRecorder) End() {
	e.Add("End Time", time.Now().Format(execTimeFormat))

	for _, entry := range e.entries {
		e.recorder.InsertData(e.tableName, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
