package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayusman/headsup/internal/gesture"
	"github.com/ayusman/headsup/internal/orientation"
	"github.com/ayusman/headsup/internal/recognizer"
)

type replayEvent struct {
	Gesture     string  `json:"gesture"`
	TimestampMs int64   `json:"timestamp_ms"`
	Beta        float64 `json:"beta"`
	Gamma       float64 `json:"gamma"`
	Ambiguous   bool    `json:"ambiguous"`
}

type replayResult struct {
	Readings int
	Events   []replayEvent
}

func newReplayCmd(cfg *Config) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "replay <trace.jsonl>",
		Short: "Run a recorded orientation trace through the recognizer and print the gestures.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := orientation.LoadReplayFile(args[0])
			if err != nil {
				return err
			}

			res, err := replay(cfg, src)
			if err != nil {
				return err
			}
			return printReplay(cmd.OutOrStdout(), cfg.gesture, res, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print one json object per gesture")

	return cmd
}

// replay plays src to completion through a fresh recognizer.
func replay(cfg *Config, src *orientation.ReplaySource) (replayResult, error) {
	res := replayResult{Readings: src.Len()}

	rec, err := recognizer.New(recognizer.Config{
		Gesture: cfg.gesture,
		Sampler: orientation.NewSampler(src),
		Logger:  newLogger(cfg),
		OnDecision: func(s orientation.Sample, dec gesture.Decision) {
			if !dec.Fired() {
				return
			}
			res.Events = append(res.Events, replayEvent{
				Gesture:     dec.Gesture.String(),
				TimestampMs: s.TimestampMs,
				Beta:        s.Beta,
				Gamma:       s.Gamma,
				Ambiguous:   dec.Ambiguous,
			})
		},
	})
	if err != nil {
		return res, err
	}

	if err := rec.Start(func(gesture.Gesture) {}); err != nil {
		return res, err
	}
	<-src.Done()
	rec.Stop()

	return res, nil
}

func printReplay(w io.Writer, cfg gesture.Config, res replayResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, ev := range res.Events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}

	counts := map[string]int{}
	for _, ev := range res.Events {
		flag := ""
		if ev.Ambiguous {
			flag = " (ambiguous)"
		}
		fmt.Fprintf(w, "%8dms  %-4s  beta=%6.1f gamma=%6.1f%s\n", ev.TimestampMs, ev.Gesture, ev.Beta, ev.Gamma, flag)
		counts[ev.Gesture]++
	}

	_, err := fmt.Fprintf(w, "%s: %d readings, %d up, %d down\n", cfg.Name, res.Readings, counts["up"], counts["down"])
	return err
}
