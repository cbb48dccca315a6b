package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusman/headsup/internal/calibrate"
	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/store"
)

type calibrateOptions struct {
	plot        string
	saveProfile string
}

func newCalibrateCmd(cfg *Config) *cobra.Command {
	var opts calibrateOptions

	cmd := &cobra.Command{
		Use:   "calibrate <labeled.jsonl>",
		Short: "Suggest thresholds from a trace whose readings are labeled up, down or neutral.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := calibrate.LoadFile(args[0])
			if err != nil {
				return err
			}
			return runCalibrate(cmd.OutOrStdout(), cfg, opts, samples)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.plot, "plot", "", "write a scatter plot of the trace to this png file")
	fs.StringVar(&opts.saveProfile, "save-profile", "", "store the suggested thresholds as a profile with this name")

	return cmd
}

func runCalibrate(w io.Writer, cfg *Config, opts calibrateOptions, samples []calibrate.Labeled) error {
	report, err := calibrate.Analyze(samples)
	if err != nil {
		return err
	}
	printReport(w, report)

	if opts.plot != "" {
		if err := calibrate.Plot(samples, opts.plot); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nplot written to %s\n", opts.plot)
	}

	suggested, err := calibrate.Suggest(report, cfg.gesture)
	if err != nil {
		return err
	}
	if opts.saveProfile != "" {
		suggested.Name = opts.saveProfile
	}

	data, err := json.MarshalIndent(suggested, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nsuggested thresholds:\n%s\n", data)

	fmt.Fprintln(w, "\nhit rates:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "label\tcount\t%s\t%s\n", cfg.gesture.Name, suggested.Name)
	current := calibrate.Evaluate(cfg.gesture, samples)
	proposed := calibrate.Evaluate(suggested, samples)
	for i := range current {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%.1f%%\n", current[i].Label, current[i].Count, 100*current[i].Rate, 100*proposed[i].Rate)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if opts.saveProfile == "" {
		return nil
	}
	return saveProfile(w, cfg, opts.saveProfile, suggested)
}

func printReport(w io.Writer, report calibrate.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "label\taxis\tcount\tmean\tstddev\tmin\tp05\tmedian\tp95\tmax")
	for _, l := range report.Labels {
		for _, axis := range []gesture.Axis{gesture.AxisBeta, gesture.AxisGamma} {
			s := l.Axis(axis)
			fmt.Fprintf(tw, "%s\t|%s|\t%d\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\n",
				l.Label, axis, l.Count, s.Mean, s.StdDev, s.Min, s.P05, s.Median, s.P95, s.Max)
		}
	}
	tw.Flush()
}

func saveProfile(w io.Writer, cfg *Config, name string, g gesture.Config) error {
	dbPath, err := cfg.dbPath()
	if err != nil {
		return err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	p := &store.Profile{
		ID:     uuid.New().String(),
		Name:   name,
		Preset: cfg.preset,
		Config: g,
	}
	if err := st.Profiles().Create(p); err != nil {
		return fmt.Errorf("save profile %q: %w", name, err)
	}

	_, err = fmt.Fprintf(w, "\nsaved profile %q (%s), activate it with POST /api/profiles/%s/activate\n", name, p.ID, p.ID)
	return err
}
