package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/rigsim/rigsim/internal/analysis"
	"github.com/rigsim/rigsim/internal/config"
	"github.com/rigsim/rigsim/internal/export"
	"github.com/rigsim/rigsim/internal/metrics"
	"github.com/rigsim/rigsim/internal/storage"
	"github.com/rigsim/rigsim/internal/transport"
	"github.com/rigsim/rigsim/internal/viz"
	"github.com/rigsim/rigsim/internal/world"
)

var (
	dataDir  string
	verbose  bool
	duration float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rigsim",
		Short: "articulated rigid-body simulation",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
				&slog.HandlerOptions{Level: level})))
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rigsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [world.yaml]",
		Short: "run a world and store the trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorld,
	}
	runCmd.Flags().Float64Var(&duration, "time", 10.0, "simulated seconds")

	liveCmd := &cobra.Command{
		Use:   "live [world.yaml]",
		Short: "run a world with the live terminal viewer",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().Float64Var(&duration, "time", 0, "simulated seconds, 0 = until quit")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "print run trajectory as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "print the first coordinate's trajectory as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd,
		exportCSVCmd, analyzeCmd, exportSVGCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildWorld(path string) (*world.World, *transport.Hub, *config.World, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	hub := transport.NewHub(slog.Default())
	w, err := world.New(cfg, hub, slog.Default())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := w.Load(); err != nil {
		return nil, nil, nil, err
	}
	if err := w.Init(); err != nil {
		return nil, nil, nil, err
	}
	return w, hub, cfg, nil
}

func runWorld(cmd *cobra.Command, args []string) error {
	w, _, cfg, err := buildWorld(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	rec := metrics.NewRecorder(int(duration/cfg.Dt) + 1)
	kinetic := metrics.NewKineticEnergy(nil)
	peak := metrics.NewPeakVelocity()
	rate := metrics.NewStepRate()
	w.AddObserver(rec)
	w.AddObserver(kinetic)
	w.AddObserver(peak)
	w.AddObserver(rate)

	fmt.Printf("running %s...\n", cfg.Name)
	start := time.Now()
	if err := w.Run(context.Background(), duration); err != nil {
		return err
	}
	elapsed := time.Since(start)

	jointNames := make([]string, 0, len(w.Joints()))
	for _, j := range w.Joints() {
		jointNames = append(jointNames, j.Name)
	}
	results := map[string]float64{
		kinetic.Name(): kinetic.Value(),
		peak.Name():    peak.Value(),
		rate.Name():    rate.Value(),
	}
	runID, err := st.Save(cfg.Name, cfg.Integrator, cfg.Dt, jointNames, rec, results)
	if err != nil {
		return err
	}

	if err := w.Fini(context.Background()); err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("samples: %d\n", rec.Len())
	fmt.Println("\nmetrics:")
	for name, val := range results {
		fmt.Printf("  %s: %.6f\n", name, val)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	w, hub, cfg, err := buildWorld(args[0])
	if err != nil {
		return err
	}

	viewer := viz.NewViewer(cfg.Name, hub, world.StateTopic, world.StatsTopic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step in the background, pacing sim time against the wall clock.
	errc := make(chan error, 1)
	go func() {
		batch := int(0.01/cfg.Dt) + 1
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				errc <- nil
				return
			case <-ticker.C:
				for i := 0; i < batch; i++ {
					if duration > 0 && w.Time() >= duration {
						errc <- nil
						return
					}
					if err := w.Step(); err != nil {
						errc <- err
						return
					}
				}
			}
		}
	}()

	p := tea.NewProgram(viewer)
	if _, err := p.Run(); err != nil {
		return err
	}
	cancel()
	if err := <-errc; err != nil {
		return err
	}
	return w.Fini(context.Background())
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWORLD\tTIME\tDURATION\tDT\tINTEG\tJOINTS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\n",
			run.ID,
			run.World,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			len(run.Joints),
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, _, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("world: %s\n", meta.World)
	fmt.Printf("samples: %d\n\n", len(states))

	numVars := len(states[0])
	maxPlots := 6
	if numVars > maxPlots {
		numVars = maxPlots
	}

	half := len(states[0]) / 2
	for varIdx := 0; varIdx < numVars; varIdx++ {
		data := make([]float64, len(states))
		for i := range states {
			if varIdx < len(states[i]) {
				data[i] = states[i][varIdx]
			}
		}
		caption := fmt.Sprintf("q%d vs time", varIdx)
		if varIdx >= half {
			caption = fmt.Sprintf("u%d vs time", varIdx-half)
		}
		if varIdx < len(meta.Joints) {
			caption = fmt.Sprintf("%s angle", meta.Joints[varIdx])
		} else if varIdx-half < len(meta.Joints) && varIdx >= half {
			caption = fmt.Sprintf("%s velocity", meta.Joints[varIdx-half])
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	states, _, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 || len(states[0]) == 0 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("world: %s\n\n", meta.World)

	data := make([]float64, len(states))
	for i := range states {
		data[i] = states[i][0]
	}

	ps := analysis.PowerSpectrum(data)
	plotData := ps[:len(ps)/4]
	graph := asciigraph.Plot(plotData,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum (q0)"),
	)
	fmt.Println(graph)
	fmt.Println()

	freq, _ := analysis.DominantFrequency(data, meta.Dt)
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	states, times, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 || len(states[0]) == 0 {
		return fmt.Errorf("no data to export")
	}

	points := make([]export.Point, len(states))
	for i := range states {
		points[i] = export.Point{X: times[i], Y: states[i][0]}
	}
	fmt.Println(export.TrajectorySVG(points, 800, 400, "#00ff00"))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	states, times, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"time"}
	for i := range states[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
