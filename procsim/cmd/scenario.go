package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	yaml "go.yaml.in/yaml/v3"

	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
)

// A Scenario describes a set of processes to simulate.
type Scenario struct {
	Name     string          `yaml:"name"`
	Printers []PrinterConfig `yaml:"printers"`
	Waiters  []WaiterConfig  `yaml:"waiters"`
}

// A PrinterConfig describes a process that prints its name and the current
// time Count times, Period apart. After the last print it raises the flag
// named by Sets, if any.
type PrinterConfig struct {
	Name   string  `yaml:"name"`
	Period float64 `yaml:"period"`
	Count  int     `yaml:"count"`
	At     float64 `yaml:"at"`
	After  float64 `yaml:"after"`
	Sets   string  `yaml:"sets"`
}

// A WaiterConfig describes a process that waits for a flag and prints when
// the flag is raised. A positive Deadline bounds the wait.
type WaiterConfig struct {
	Name     string  `yaml:"name"`
	Flag     string  `yaml:"flag"`
	Deadline float64 `yaml:"deadline"`
}

var errInvalidScenario = errors.New("invalid scenario")

// defaultScenario is the round-robin of two printers and a waiter.
func defaultScenario() Scenario {
	return Scenario{
		Name: "round-robin",
		Printers: []PrinterConfig{
			{Name: "A", Period: 10, Count: 10},
			{Name: "B", Period: 2, Count: 10, Sets: "b_done"},
		},
		Waiters: []WaiterConfig{
			{Name: "C", Flag: "b_done"},
		},
	}
}

func loadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}

	return parseScenario(data)
}

func parseScenario(data []byte) (Scenario, error) {
	var sc Scenario

	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("yaml unmarshal: %w", err)
	}

	if err := sc.validate(); err != nil {
		return sc, err
	}

	return sc, nil
}

func (sc Scenario) validate() error {
	names := map[string]bool{}

	checkName := func(name string) error {
		if name == "" {
			return fmt.Errorf("%w: process without a name", errInvalidScenario)
		}

		if names[name] {
			return fmt.Errorf("%w: duplicated process %q", errInvalidScenario, name)
		}

		names[name] = true

		return nil
	}

	for _, p := range sc.Printers {
		if err := checkName(p.Name); err != nil {
			return err
		}

		if p.Count < 1 {
			return fmt.Errorf("%w: printer %q must print at least once",
				errInvalidScenario, p.Name)
		}

		if p.Period < 0 || p.At < 0 || p.After < 0 {
			return fmt.Errorf("%w: printer %q has a negative time",
				errInvalidScenario, p.Name)
		}
	}

	for _, w := range sc.Waiters {
		if err := checkName(w.Name); err != nil {
			return err
		}

		if w.Flag == "" {
			return fmt.Errorf("%w: waiter %q has no flag", errInvalidScenario, w.Name)
		}

		if w.Deadline < 0 {
			return fmt.Errorf("%w: waiter %q has a negative deadline",
				errInvalidScenario, w.Name)
		}
	}

	return nil
}

// scenarioRun binds a scenario to a scheduler.
type scenarioRun struct {
	s        *sim.Scheduler
	out      io.Writer
	flags    map[string]bool
	finished *monitoring.Monitor
	server   *monitoring.Server
	done     int
}

func newScenarioRun(s *sim.Scheduler, out io.Writer) *scenarioRun {
	return &scenarioRun{
		s:        s,
		out:      out,
		flags:    make(map[string]bool),
		finished: monitoring.NewMonitor("finished_processes", s),
	}
}

func (r *scenarioRun) print(name string) {
	fmt.Fprintf(r.out, "%s@%g\n", name, float64(r.s.Now()))
}

func (r *scenarioRun) processDone() {
	r.done++
	r.finished.Observe(float64(r.done))
}

func (r *scenarioRun) activate(sc Scenario) {
	for _, p := range sc.Printers {
		r.activatePrinter(p)
	}

	for _, w := range sc.Waiters {
		r.activateWaiter(w)
	}
}

func (r *scenarioRun) activatePrinter(cfg PrinterConfig) {
	var bar *monitoring.ProgressBar
	if r.server != nil {
		bar = r.server.CreateProgressBar(cfg.Name, uint64(cfg.Count))
	}

	body := sim.ProcessFunc(func() {
		for i := 0; i < cfg.Count; i++ {
			if i > 0 {
				r.s.Sleep(sim.VTimeInSec(cfg.Period))
			}

			r.print(cfg.Name)

			if bar != nil {
				bar.IncrementFinished(1)
			}
		}

		if cfg.Sets != "" {
			r.flags[cfg.Sets] = true
		}

		if bar != nil {
			r.server.CompleteProgressBar(bar)
		}

		r.processDone()
	})

	opts := []sim.ActivateOption{sim.WithName(cfg.Name)}
	if cfg.At > 0 {
		opts = append(opts, sim.At(sim.VTimeInSec(cfg.At)))
	}

	if cfg.After > 0 {
		opts = append(opts, sim.After(sim.VTimeInSec(cfg.After)))
	}

	r.s.Activate(body, opts...)
}

func (r *scenarioRun) activateWaiter(cfg WaiterConfig) {
	flag := cfg.Flag
	raised := func() bool { return r.flags[flag] }

	body := sim.ProcessFunc(func() {
		if cfg.Deadline <= 0 {
			r.s.WaitUntil(raised)
			r.print(cfg.Name)
			r.processDone()

			return
		}

		deadline := r.s.Now() + sim.VTimeInSec(cfg.Deadline)
		if r.s.WaitUntilOrDeadline(raised, deadline) {
			r.print(cfg.Name)
		} else {
			r.print(cfg.Name + " timed out")
		}

		r.processDone()
	})

	r.s.Activate(body, sim.WithName(cfg.Name))
}
