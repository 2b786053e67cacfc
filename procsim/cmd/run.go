package cmd

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/tracing"
)

type runOptions struct {
	envFile     string
	dbPath      string
	monitorPort int
	openBrowser bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Run a scenario",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(runOpts.envFile)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("db") {
			cfg.DBPath = runOpts.dbPath
		}

		if cmd.Flags().Changed("monitor-port") {
			cfg.MonitorPort = runOpts.monitorPort
		}

		sc := defaultScenario()
		if len(args) == 1 {
			sc, err = loadScenario(args[0])
			if err != nil {
				return err
			}
		}

		return runScenario(sc, cfg, runOpts.openBrowser,
			cmd.OutOrStdout(), newLogger(cfg))
	},
}

func init() {
	runCmd.Flags().StringVar(&runOpts.envFile, "env-file", ".env",
		"The file to load environment variables from.")
	runCmd.Flags().StringVar(&runOpts.dbPath, "db", "",
		"Record traces and monitors into this SQLite database.")
	runCmd.Flags().IntVar(&runOpts.monitorPort, "monitor-port", -1,
		"Serve the monitoring API on this port. 0 picks a random port.")
	runCmd.Flags().BoolVar(&runOpts.openBrowser, "open", false,
		"Open the monitoring API in a browser.")

	rootCmd.AddCommand(runCmd)
}

func runScenario(
	sc Scenario,
	cfg Config,
	openBrowser bool,
	out io.Writer,
	logger zerolog.Logger,
) error {
	builder := sim.MakeBuilder().WithHook(tracing.NewLogTracer(logger))

	var (
		recorder datarecording.DataRecorder
		dbTracer *tracing.DBTracer
		exec     *datarecording.ExecRecorder
	)

	if cfg.DBPath != "" {
		recorder = datarecording.NewDataRecorder(cfg.DBPath)
		defer recorder.Close()

		exec = datarecording.NewExecRecorder(recorder)
		exec.Start()
		exec.Add("Scenario", sc.Name)

		dbTracer = tracing.NewDBTracer(recorder)
		builder = builder.WithSimulationEndHandler(dbTracer)
	}

	steps := tracing.NewStepCountTracer(tracing.AllTasks)

	s := builder.Build()
	defer s.Close()

	tracing.CollectTrace(s, steps)

	if dbTracer != nil {
		tracing.CollectTrace(s, dbTracer)
	}

	run := newScenarioRun(s, out)

	if cfg.MonitorPort >= 0 {
		run.server = monitoring.NewServer(s).
			WithLogger(logger).
			WithPortNumber(cfg.MonitorPort)
		run.server.RegisterMonitor(run.finished)

		if err := run.server.StartServer(); err != nil {
			return err
		}
		defer run.server.StopServer()

		if openBrowser {
			if err := run.server.OpenInBrowser(); err != nil {
				logger.Warn().Err(err).Msg("cannot open browser")
			}
		}
	}

	logger.Info().Str("scenario", sc.Name).Msg("simulation started")

	run.activate(sc)

	if err := s.Run(); err != nil {
		return err
	}

	s.Finished()

	if recorder != nil {
		run.finished.RecordTo(recorder)

		exec.Add("Final Time", s.Now().String())
		exec.End()
	}

	for _, name := range steps.ProcessNames() {
		logger.Info().
			Str("process", name).
			Uint64("resumptions", steps.StepCount(name)+1).
			Msg("process summary")
	}

	fmt.Fprintf(out, "final time: %g\n", float64(s.Now()))

	if pending := s.Pending(); pending > 0 {
		fmt.Fprintf(out, "unsatisfied waits: %d\n", pending)
	}

	return nil
}
