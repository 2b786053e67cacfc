// Package monitoring records values observed during a simulation and exposes
// a running simulation over HTTP.
package monitoring

import (
	"sync"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/timing"
)

// An Observation is a value and the simulation time it was observed at.
type Observation struct {
	Time  timing.VTimeInSec
	Value float64
}

// A Monitor stores values keyed by the simulation time at which they were
// observed. Observing twice at the same time keeps the later value in the
// position of the first one.
type Monitor struct {
	name   string
	teller timing.TimeTeller

	lock    sync.RWMutex
	index   map[timing.VTimeInSec]int
	entries []Observation
}

// NewMonitor creates a Monitor that reads the time from teller.
func NewMonitor(name string, teller timing.TimeTeller) *Monitor {
	return &Monitor{
		name:   name,
		teller: teller,
		index:  make(map[timing.VTimeInSec]int),
	}
}

// Name returns the name of the monitor.
func (m *Monitor) Name() string {
	return m.name
}

// Observe stores value at the current simulation time.
func (m *Monitor) Observe(value float64) {
	now := m.teller.Now()

	m.lock.Lock()
	defer m.lock.Unlock()

	if i, ok := m.index[now]; ok {
		m.entries[i].Value = value
		return
	}

	m.index[now] = len(m.entries)
	m.entries = append(m.entries, Observation{Time: now, Value: value})
}

// Len returns the number of distinct observation times.
func (m *Monitor) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.entries)
}

// Entries returns a copy of the observations in insertion order.
func (m *Monitor) Entries() []Observation {
	m.lock.RLock()
	defer m.lock.RUnlock()

	entries := make([]Observation, len(m.entries))
	copy(entries, m.entries)

	return entries
}

// Each calls fn for each observation in insertion order, stopping early if fn
// returns false.
func (m *Monitor) Each(fn func(t timing.VTimeInSec, value float64) bool) {
	for _, e := range m.Entries() {
		if !fn(e.Time, e.Value) {
			return
		}
	}
}

// RecordTo writes the observations into a table named after the monitor.
func (m *Monitor) RecordTo(rec datarecording.DataRecorder) {
	if !rec.HasTable(m.name) {
		rec.CreateTable(m.name, Observation{})
	}

	for _, e := range m.Entries() {
		rec.InsertData(m.name, e)
	}

	rec.Flush()
}
