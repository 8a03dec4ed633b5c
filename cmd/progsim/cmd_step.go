package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AaronLay10/ProgressionSim/internal/logging"
	"github.com/AaronLay10/ProgressionSim/internal/progression"
	"github.com/AaronLay10/ProgressionSim/internal/simulation"
	"github.com/spf13/cobra"
)

func newStepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step [graph]",
		Short: "Run one traversal and print every step",
		Long: `Step runs a single debug traversal, one step per frame, and prints
what each step changed. At the end it prints token totals and the nodes
that were never reached, with what they were missing.

Use --pick to choose the first nodes by hand.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, args)
			if err != nil {
				return err
			}
			defer s.close()

			tracePath, _ := cmd.Flags().GetString("trace-file")
			trace, err := logging.OpenStepTrace(tracePath)
			if err != nil {
				return err
			}
			defer trace.Close()

			picks, _ := cmd.Flags().GetStringArray("pick")
			out := cmd.OutOrStdout()
			var sink simulation.Sink
			if !s.jsonOut {
				sink = simulation.WriterSink(out)
			}

			engine := s.engine()
			task := simulation.NewTrialTask(engine, simulation.TrialOptions{
				Modifiers: s.mods,
				Picks:     picks,
				Sink:      sink,
				Trace:     trace,
				Logger:    s.logger,
			})

			sched := s.scheduler()
			sched.Schedule("trial", task, nil)

			signals, stop := signalChannel()
			defer stop()

			if _, aborted := frameLoop(sched, s.frameBudget(cmd), signals, s.logger); aborted {
				return errors.New("trial aborted")
			}

			if s.jsonOut {
				return json.NewEncoder(out).Encode(trialResult(engine, task.State()))
			}
			fmt.Fprintf(out, "steps: %d\n", task.Steps())
			return nil
		},
	}

	cmd.Flags().StringArray("pick", nil, "Visit this node next if available (repeatable, in order)")
	cmd.Flags().String("trace-file", "", "Append one JSON line per step to this file")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: time based)")
	cmd.Flags().Duration("frame-budget", 0, "Time budget per scheduler tick (default from config, else 16ms)")
	cmd.Flags().StringArray("add", nil, "Production multiplier override, token=factor (repeatable)")
	cmd.Flags().StringArray("consume", nil, "Consumption multiplier override, token=factor (repeatable)")

	return cmd
}

type missingNode struct {
	ID          string   `json:"id"`
	NeedsUnlock bool     `json:"needs_unlock"`
	Missing     []string `json:"missing,omitempty"`
}

func trialResult(engine *progression.Engine, state *progression.State) map[string]any {
	var remaining []missingNode
	for _, id := range engine.Remaining(state) {
		needsUnlock, missing := engine.MissingRequirements(state, id)
		remaining = append(remaining, missingNode{ID: id, NeedsUnlock: needsUnlock, Missing: missing})
	}
	return map[string]any{
		"steps":     state.Path,
		"status":    state.Status,
		"added":     state.AddedTokens,
		"consumed":  state.ConsumedTokens,
		"remaining": remaining,
	}
}
