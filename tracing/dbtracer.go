package tracing

import (
	"sort"
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/timing"
)

type taskTableEntry struct {
	ID        string
	Process   string
	StartTime float64
	EndTime   float64
	Steps     int
	Completed bool
}

type stepTableEntry struct {
	TaskID  string
	Process string
	Time    float64
	What    string
}

// DBTracer is a tracer that stores process lifetimes and resumptions into a
// DataRecorder.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder

	startTime, endTime timing.VTimeInSec

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *DBTracer {
	dataRecorder.CreateTable("trace_tasks", taskTableEntry{})
	dataRecorder.CreateTable("trace_steps", stepTableEntry{})

	t := &DBTracer{
		backend:      dataRecorder,
		endTime:      -1,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange limits the recorded steps to [startTime, endTime]. A negative
// end time means no upper bound.
func (t *DBTracer) SetTimeRange(startTime, endTime timing.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

func (t *DBTracer) inRange(now timing.VTimeInSec) bool {
	if now < t.startTime {
		return false
	}

	return t.endTime < 0 || now <= t.endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracingTasks[task.ID] = task
}

// StepTask records the latest step of the task.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tracingTasks[task.ID]; !ok {
		return
	}

	t.tracingTasks[task.ID] = task

	step := task.Steps[len(task.Steps)-1]
	if !t.inRange(step.Time) {
		return
	}

	t.backend.InsertData("trace_steps", stepTableEntry{
		TaskID:  task.ID,
		Process: task.Process,
		Time:    float64(step.Time),
		What:    step.What,
	})
}

// EndTask writes the task.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tracingTasks[task.ID]; !ok {
		return
	}

	delete(t.tracingTasks, task.ID)
	t.writeTask(task, true)
}

func (t *DBTracer) writeTask(task Task, completed bool) {
	t.backend.InsertData("trace_tasks", taskTableEntry{
		ID:        task.ID,
		Process:   task.Process,
		StartTime: float64(task.StartTime),
		EndTime:   float64(task.EndTime),
		Steps:     len(task.Steps),
		Completed: completed,
	})
}

// Handle writes the tasks that have not ended, using now as their end time,
// and flushes the backend. It allows the tracer to be registered as a
// simulation end handler.
func (t *DBTracer) Handle(now timing.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.tracingTasks))
	for id := range t.tracingTasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		task := t.tracingTasks[id]
		task.EndTime = now
		t.writeTask(task, false)
	}

	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}

// Terminate flushes what has been recorded.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.Flush()
}
