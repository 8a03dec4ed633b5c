package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AaronLay10/ProgressionSim/internal/mqtt"
	"github.com/AaronLay10/ProgressionSim/internal/simulation"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [graph]",
		Short: "Run a batch of random traversals and report statistics",
		Long: `Run walks the graph --trials times, one trial per scheduler resume,
then prints the aggregated report. Ctrl-C stops early and still reports
the trials completed so far; a second Ctrl-C quits immediately.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, args)
			if err != nil {
				return err
			}
			defer s.close()

			trials := s.cfg.Trials()
			if cmd.Flags().Changed("trials") {
				trials, _ = cmd.Flags().GetInt("trials")
			}
			if trials < 0 {
				return fmt.Errorf("--trials must not be negative: %d", trials)
			}
			extended, _ := cmd.Flags().GetBool("extended")
			extended = extended || s.cfg.Simulation.Extended

			runID, _ := cmd.Flags().GetString("run-id")
			if runID == "" {
				runID = fmt.Sprintf("run-%d", time.Now().Unix())
			}

			out := cmd.OutOrStdout()
			var sink simulation.Sink
			if !s.jsonOut {
				sink = simulation.WriterSink(out)
			}

			var reporter *mqtt.Reporter
			useMQTT, _ := cmd.Flags().GetBool("mqtt")
			if useMQTT || s.cfg.Report.MQTT.Enabled {
				opts, topic, err := s.mqttOptions(cmd)
				if err != nil {
					return err
				}
				client := mqtt.NewClient(opts)
				if client.Start(s.logger) {
					defer client.Disconnect()
					reporter = mqtt.NewReporter(client, topic, runID, s.recorder, s.logger)
					sink = simulation.Tee(sink, reporter)
				}
			}

			task := simulation.NewBatchTask(s.engine(), simulation.BatchOptions{
				Trials:    trials,
				Modifiers: s.mods,
				Extended:  extended,
				Run:       runID,
				Sink:      sink,
				Recorder:  s.recorder,
				Logger:    s.logger,
			})

			sched := s.scheduler()
			sched.Schedule("batch", task, nil)

			signals, stop := signalChannel()
			defer stop()

			start := time.Now()
			frames, aborted := frameLoop(sched, s.frameBudget(cmd), signals, s.logger)
			s.logger.Info("run finished",
				"run", runID,
				"trials", task.Completed(),
				"frames", frames,
				"elapsed", time.Since(start).Round(time.Millisecond).String(),
			)
			if aborted || task.Report() == nil {
				return errors.New("run aborted before the report was written")
			}

			report := task.Report()
			if reporter != nil {
				if err := reporter.PublishReport(report); err != nil {
					s.logger.Warn("failed to publish report summary", "error", err)
				}
				if n := reporter.Dropped(); n > 0 {
					s.logger.Warn("report lines not delivered", "dropped", n)
				}
			}

			if s.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return nil
		},
	}

	cmd.Flags().Int("trials", 0, "Number of trials (default from config, else 100)")
	cmd.Flags().Uint64("seed", 0, "Random seed (default: time based)")
	cmd.Flags().Duration("frame-budget", 0, "Time budget per scheduler tick (default from config, else 16ms)")
	cmd.Flags().StringArray("add", nil, "Production multiplier override, token=factor (repeatable)")
	cmd.Flags().StringArray("consume", nil, "Consumption multiplier override, token=factor (repeatable)")
	cmd.Flags().Bool("extended", false, "Include min and max in the report")
	cmd.Flags().String("run-id", "", "Run id used in events and MQTT messages")
	cmd.Flags().Bool("mqtt", false, "Publish report lines to MQTT")
	cmd.Flags().String("broker", "", "MQTT broker URL (default from config, MQTT_URL, else tcp://localhost:1883)")
	cmd.Flags().String("topic", "", "MQTT report topic (default progsim/report)")

	return cmd
}
