package monitoring

import (
	"sync"

	"github.com/rs/xid"

	"github.com/sarchlab/procsim/timing"
)

// A ProgressBar tracks how many of a known number of steps a process has
// completed.
type ProgressBar struct {
	sync.Mutex
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	StartTime timing.VTimeInSec `json:"start_time"`
	Total     uint64            `json:"total"`
	Finished  uint64            `json:"finished"`
}

// IncrementFinished adds amount to the finished steps. The count never
// exceeds the total.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
	if b.Finished > b.Total {
		b.Finished = b.Total
	}
}

// Done reports whether all the steps have finished.
func (b *ProgressBar) Done() bool {
	b.Lock()
	defer b.Unlock()

	return b.Finished >= b.Total
}

type progressSnapshot struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	Total     uint64  `json:"total"`
	Finished  uint64  `json:"finished"`
}

func (b *ProgressBar) snapshot() progressSnapshot {
	b.Lock()
	defer b.Unlock()

	return progressSnapshot{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: float64(b.StartTime),
		Total:     b.Total,
		Finished:  b.Finished,
	}
}

// CreateProgressBar creates a progress bar that starts at the current
// simulation time.
func (s *Server) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: s.engine.Now(),
		Total:     total,
	}

	s.progressBarsLock.Lock()
	defer s.progressBarsLock.Unlock()

	s.progressBars = append(s.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the server.
func (s *Server) CompleteProgressBar(pb *ProgressBar) {
	s.progressBarsLock.Lock()
	defer s.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(s.progressBars))
	for _, b := range s.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	s.progressBars = newBars
}
