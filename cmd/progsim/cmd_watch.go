package main

import (
	"fmt"
	"sync"

	"github.com/AaronLay10/ProgressionSim/internal/mqtt"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print report lines other runs publish to MQTT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBase(cmd)
			if err != nil {
				return err
			}
			defer b.close()

			opts, topic, err := b.mqttOptions(cmd)
			if err != nil {
				return err
			}
			opts.ClientID += "-watch"
			client := mqtt.NewClient(opts)
			if err := client.Connect(); err != nil {
				return fmt.Errorf("failed to connect to %s: %w", client.Broker(), err)
			}
			defer client.Disconnect()

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			listener := mqtt.NewReportListener(client, func(topic string, line mqtt.ReportLine) {
				mu.Lock()
				defer mu.Unlock()
				if line.Seq == 0 {
					fmt.Fprintf(out, "%s: %s\n", topic, line.Line)
					return
				}
				fmt.Fprintf(out, "[%s #%d] %s\n", line.Run, line.Seq, line.Line)
			})
			for _, t := range []string{topic, topic + "/summary"} {
				if err := listener.Listen(t); err != nil {
					return fmt.Errorf("failed to subscribe to %s: %w", t, err)
				}
			}
			b.logger.Info("watching", "broker", client.Broker(), "topics", listener.SubscribedTopics())

			signals, stop := signalChannel()
			defer stop()
			<-signals
			listener.ClearSubscriptions()
			return nil
		},
	}

	cmd.Flags().String("broker", "", "MQTT broker URL (default from config, MQTT_URL, else tcp://localhost:1883)")
	cmd.Flags().String("topic", "", "MQTT report topic (default progsim/report)")

	return cmd
}
