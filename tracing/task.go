package tracing

import "github.com/sarchlab/procsim/timing"

// A TaskStep represents one resumption of a traced process.
type TaskStep struct {
	Time timing.VTimeInSec `json:"time"`
	What string            `json:"what"`
}

// A Task is the lifetime of one process, from its first resumption to the
// return of its Main function.
type Task struct {
	ID        string            `json:"id"`
	Process   string            `json:"process"`
	StartTime timing.VTimeInSec `json:"start_time"`
	EndTime   timing.VTimeInSec `json:"end_time"`
	Steps     []TaskStep        `json:"steps"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// AllTasks is a TaskFilter that accepts every task.
func AllTasks(Task) bool {
	return true
}
