package main

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/ProgressionSim/internal/progression"
	"github.com/AaronLay10/ProgressionSim/internal/stats"
	"github.com/spf13/cobra"
)

type checkResult struct {
	Nodes       int           `json:"nodes"`
	Tokens      int           `json:"tokens"`
	Types       []string      `json:"types"`
	Warnings    []string      `json:"warnings"`
	Trials      int           `json:"trials"`
	Unreachable []missingNode `json:"unreachable"`
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [graph]",
		Short: "Validate a graph and list nodes no traversal reaches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, args)
			if err != nil {
				return err
			}
			defer s.close()

			trials, _ := cmd.Flags().GetInt("trials")
			if trials < 1 {
				trials = 1
			}
			result := checkGraph(s.engine(), s.mods, trials)

			out := cmd.OutOrStdout()
			if s.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "graph: %d nodes, %d tokens, %d types\n", result.Nodes, result.Tokens, len(result.Types))
				for _, w := range result.Warnings {
					fmt.Fprintf(out, "warning: %s\n", w)
				}
				if len(result.Unreachable) > 0 {
					fmt.Fprintf(out, "unreachable in %d trials:\n", result.Trials)
					for _, m := range result.Unreachable {
						fmt.Fprintf(out, "  %s\n", progression.FormatMissing(m.ID, m.NeedsUnlock, m.Missing))
					}
				}
			}

			strict, _ := cmd.Flags().GetBool("strict")
			if strict && len(result.Warnings) > 0 {
				return fmt.Errorf("graph has %d warnings", len(result.Warnings))
			}
			return nil
		},
	}

	cmd.Flags().Int("trials", 20, "Sample traversals used to find unreachable nodes")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: time based)")
	cmd.Flags().Bool("strict", false, "Fail when the graph has warnings")

	return cmd
}

// checkGraph samples trials traversals and reports every node left hidden
// in all of them, with the reasons from the last traversal.
func checkGraph(engine *progression.Engine, mods *progression.Modifiers, trials int) checkResult {
	g := engine.Graph()
	agg := stats.NewAggregator(g)
	state := progression.NewState()
	for i := 0; i < trials; i++ {
		engine.Reset(state, mods)
		engine.Run(state)
		agg.Add(state)
	}

	result := checkResult{
		Nodes:       len(g.NodeIDs),
		Tokens:      len(g.TokenIDs),
		Types:       g.Types(),
		Warnings:    append([]string{}, g.Warnings...),
		Trials:      trials,
		Unreachable: []missingNode{},
	}
	for _, id := range agg.Unfinished.Keys() {
		if int(agg.Unfinished[id].Sum) != trials {
			continue
		}
		needsUnlock, missing := engine.MissingRequirements(state, id)
		result.Unreachable = append(result.Unreachable, missingNode{ID: id, NeedsUnlock: needsUnlock, Missing: missing})
	}
	return result
}
