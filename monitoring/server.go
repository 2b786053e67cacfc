package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/timing"
)

// Engine is what the server needs to know about the simulation.
type Engine interface {
	timing.TimeTeller
	Processes() []*sim.Proc
	Resumptions() uint64
	IsRunning() bool
}

// A Server turns a simulation into a web service that external tools can
// poll while the simulation runs.
type Server struct {
	engine     Engine
	portNumber int
	logger     zerolog.Logger

	monitorsLock sync.RWMutex
	monitors     []*Monitor

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a Server for the engine.
func NewServer(engine Engine) *Server {
	return &Server{
		engine: engine,
		logger: zerolog.Nop(),
	}
}

// WithPortNumber sets the port number of the server. Ports below 1000 are
// not allowed and are replaced by a random port.
func (s *Server) WithPortNumber(portNumber int) *Server {
	if portNumber != 0 && portNumber < 1000 {
		s.logger.Warn().
			Int("port", portNumber).
			Msg("port number not allowed for the monitoring server, using a random port")

		portNumber = 0
	}

	s.portNumber = portNumber

	return s
}

// WithLogger sets the logger used to report the server address and errors.
func (s *Server) WithLogger(logger zerolog.Logger) *Server {
	s.logger = logger
	return s
}

// RegisterMonitor makes a monitor visible through the server.
func (s *Server) RegisterMonitor(m *Monitor) {
	s.monitorsLock.Lock()
	defer s.monitorsLock.Unlock()

	s.monitors = append(s.monitors, m)
}

// Handler returns the routes served by the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", s.now).Methods(http.MethodGet)
	r.HandleFunc("/api/processes", s.listProcesses).Methods(http.MethodGet)
	r.HandleFunc("/api/process/{name}", s.processDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/monitors", s.listMonitors).Methods(http.MethodGet)
	r.HandleFunc("/api/monitor/{name}", s.monitorEntries).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", s.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", s.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", s.collectProfile).Methods(http.MethodGet)

	return r
}

// StartServer starts serving in the background.
func (s *Server) StartServer() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.portNumber))
	if err != nil {
		return fmt.Errorf("monitoring: listen: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info().Str("url", s.URL()).Msg("monitoring simulation")

	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("monitoring server stopped")
		}
	}()

	return nil
}

// URL returns the address the server listens on.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		s.listener.Addr().(*net.TCPAddr).Port)
}

// OpenInBrowser opens the process list in the default browser.
func (s *Server) OpenInBrowser() error {
	if s.listener == nil {
		return errors.New("monitoring: server not started")
	}

	return browser.OpenURL(s.URL() + "/api/processes")
}

// StopServer shuts the server down.
func (s *Server) StopServer() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

type nowRsp struct {
	Now         float64 `json:"now"`
	Resumptions uint64  `json:"resumptions"`
	Running     bool    `json:"running"`
}

func (s *Server) now(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, nowRsp{
		Now:         float64(s.engine.Now()),
		Resumptions: s.engine.Resumptions(),
		Running:     s.engine.IsRunning(),
	})
}

// ProcessInfo is the serialized view of a process.
type ProcessInfo struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	State       string `json:"state"`
	Resumptions uint64 `json:"resumptions"`
}

func processInfo(p *sim.Proc) ProcessInfo {
	return ProcessInfo{
		ID:          uint64(p.ID()),
		Name:        p.Name(),
		State:       p.State().String(),
		Resumptions: p.Resumptions(),
	}
}

func (s *Server) listProcesses(w http.ResponseWriter, _ *http.Request) {
	procs := s.engine.Processes()

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		infos = append(infos, processInfo(p))
	}

	s.writeJSON(w, infos)
}

func (s *Server) processDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var found *sim.Proc
	for _, p := range s.engine.Processes() {
		if p.Name() == name {
			found = p
			break
		}
	}

	if found == nil {
		http.Error(w, "Process not found", http.StatusNotFound)
		return
	}

	info := processInfo(found)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&info)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		s.logger.Error().Err(err).Str("process", name).Msg("serialize process")
	}
}

func (s *Server) findMonitor(name string) *Monitor {
	s.monitorsLock.RLock()
	defer s.monitorsLock.RUnlock()

	for _, m := range s.monitors {
		if m.Name() == name {
			return m
		}
	}

	return nil
}

func (s *Server) listMonitors(w http.ResponseWriter, _ *http.Request) {
	s.monitorsLock.RLock()
	names := make([]string, 0, len(s.monitors))
	for _, m := range s.monitors {
		names = append(names, m.Name())
	}
	s.monitorsLock.RUnlock()

	s.writeJSON(w, names)
}

type entryRsp struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

func (s *Server) monitorEntries(w http.ResponseWriter, r *http.Request) {
	m := s.findMonitor(mux.Vars(r)["name"])
	if m == nil {
		http.Error(w, "Monitor not found", http.StatusNotFound)
		return
	}

	entries := m.Entries()

	rsp := make([]entryRsp, 0, len(entries))
	for _, e := range entries {
		rsp = append(rsp, entryRsp{Time: float64(e.Time), Value: e.Value})
	}

	s.writeJSON(w, rsp)
}

func (s *Server) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	s.progressBarsLock.Lock()
	bars := make([]progressSnapshot, 0, len(s.progressBars))
	for _, b := range s.progressBars {
		bars = append(bars, b.snapshot())
	}
	s.progressBarsLock.Unlock()

	s.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (s *Server) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.fail(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		s.fail(w, err)
		return
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memory.RSS,
	})
}

func (s *Server) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if secs := r.URL.Query().Get("seconds"); secs != "" {
		n, err := strconv.Atoi(secs)
		if err != nil || n <= 0 {
			http.Error(w, "invalid seconds", http.StatusBadRequest)
			return
		}

		duration = time.Duration(n) * time.Second
	}

	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		s.fail(w, err)
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		s.fail(w, err)
		return
	}

	s.writeJSON(w, prof)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("write response")
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("monitoring request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
