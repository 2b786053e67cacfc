package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/procsim/datarecording"
)

var showDBPath string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize a database recorded by run --db",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true

		return showRecording(cmd.Context(), showDBPath, cmd.OutOrStdout())
	},
}

func init() {
	showCmd.Flags().StringVar(&showDBPath, "db", "",
		"The database to read, as given to run --db.")
	_ = showCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(showCmd)
}

type taskRow struct {
	ID        string
	Process   string
	StartTime float64
	EndTime   float64
	Steps     int
	Completed bool
}

type observationRow struct {
	Time  float64
	Value float64
}

var traceTables = map[string]bool{
	"exec_info":   true,
	"trace_tasks": true,
	"trace_steps": true,
}

func showRecording(ctx context.Context, path string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	stored, err := reader.StoredTables(ctx)
	if err != nil {
		return err
	}

	has := map[string]bool{}
	for _, name := range stored {
		has[name] = true
	}

	if has["exec_info"] {
		if err := showExecInfo(ctx, reader, out); err != nil {
			return err
		}
	}

	if has["trace_tasks"] {
		if err := showTasks(ctx, reader, out); err != nil {
			return err
		}
	}

	for _, name := range stored {
		if traceTables[name] {
			continue
		}

		if err := showMonitor(ctx, reader, name, out); err != nil {
			return err
		}
	}

	return nil
}

func showExecInfo(
	ctx context.Context,
	reader datarecording.DataReader,
	out io.Writer,
) error {
	reader.MapTable("exec_info", datarecording.ExecInfo{})

	rows, _, err := reader.Query(ctx, "exec_info",
		datarecording.QueryParams{OrderBy: "rowid"})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "run:")

	for _, r := range rows {
		info := r.(*datarecording.ExecInfo)
		fmt.Fprintf(out, "  %s: %s\n", info.Property, info.Value)
	}

	return nil
}

func showTasks(
	ctx context.Context,
	reader datarecording.DataReader,
	out io.Writer,
) error {
	reader.MapTable("trace_tasks", taskRow{})

	rows, total, err := reader.Query(ctx, "trace_tasks",
		datarecording.QueryParams{OrderBy: "StartTime, length(ID), ID"})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "processes: %d\n", total)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tSTART\tEND\tRESUMPTIONS\tCOMPLETED")

	for _, r := range rows {
		task := r.(*taskRow)
		fmt.Fprintf(w, "  %s\t%g\t%g\t%d\t%t\n",
			task.Process, task.StartTime, task.EndTime, task.Steps+1,
			task.Completed)
	}

	return w.Flush()
}

func showMonitor(
	ctx context.Context,
	reader datarecording.DataReader,
	name string,
	out io.Writer,
) error {
	reader.MapTable(name, observationRow{})

	rows, total, err := reader.Query(ctx, name,
		datarecording.QueryParams{OrderBy: "rowid DESC", Limit: 1})
	if err != nil {
		return err
	}

	if total == 0 {
		fmt.Fprintf(out, "monitor %s: empty\n", name)
		return nil
	}

	last := rows[0].(*observationRow)
	fmt.Fprintf(out, "monitor %s: %d observations, last %g at %g\n",
		name, total, last.Value, last.Time)

	return nil
}
