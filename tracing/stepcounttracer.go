package tracing

import (
	"sync"
)

// StepCountTracer counts how many times each process is resumed after its
// start.
type StepCountTracer struct {
	filter       TaskFilter
	lock         sync.Mutex
	processNames []string
	stepCount    map[string]uint64
	endedCount   uint64
}

// NewStepCountTracer creates a new StepCountTracer
func NewStepCountTracer(filter TaskFilter) *StepCountTracer {
	return &StepCountTracer{
		filter:    filter,
		stepCount: make(map[string]uint64),
	}
}

// ProcessNames returns the names of the processes seen, in the order they
// started.
func (t *StepCountTracer) ProcessNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.processNames...)
}

// StepCount returns the number of steps recorded for a process.
func (t *StepCountTracer) StepCount(processName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.stepCount[processName]
}

// EndedCount returns the number of traced processes that terminated.
func (t *StepCountTracer) EndedCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.endedCount
}

// StartTask records the process name.
func (t *StepCountTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.stepCount[task.Process]; !ok {
		t.processNames = append(t.processNames, task.Process)
		t.stepCount[task.Process] = 0
	}
}

// StepTask counts one step.
func (t *StepCountTracer) StepTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.stepCount[task.Process]++
}

// EndTask counts the ended process.
func (t *StepCountTracer) EndTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.endedCount++
}
