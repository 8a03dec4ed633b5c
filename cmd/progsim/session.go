package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/AaronLay10/ProgressionSim/internal/config"
	"github.com/AaronLay10/ProgressionSim/internal/events"
	"github.com/AaronLay10/ProgressionSim/internal/logging"
	"github.com/AaronLay10/ProgressionSim/internal/mqtt"
	"github.com/AaronLay10/ProgressionSim/internal/progression"
	"github.com/AaronLay10/ProgressionSim/internal/scheduler"
	"github.com/spf13/cobra"
)

// base is the part of a command's environment that does not need a graph.
type base struct {
	cfg      *config.SimConfig
	logger   *slog.Logger
	recorder *events.Recorder
	jsonOut  bool

	stopEvents func()
}

// session adds the loaded graph and the traversal inputs.
type session struct {
	*base
	graph *progression.Graph
	mods  *progression.Modifiers
	seed  uint64
}

func loadBase(cmd *cobra.Command) (*base, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadSimConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	level := cfg.LogLevel()
	if flagLevel, _ := cmd.Flags().GetString("log-level"); flagLevel != "" {
		level = flagLevel
	}
	jsonOut, _ := cmd.Flags().GetBool("json")
	jsonOut = jsonOut || cfg.Report.JSON

	var logger *slog.Logger
	if jsonOut {
		logger = logging.NewJSONLogger(level, cmd.ErrOrStderr())
	} else {
		logger = logging.NewLogger(level, cmd.ErrOrStderr())
	}

	b := &base{
		cfg:        cfg,
		logger:     logger,
		recorder:   events.NewRecorder(512),
		jsonOut:    jsonOut,
		stopEvents: func() {},
	}

	if printEvents, _ := cmd.Flags().GetBool("events"); printEvents {
		sub := b.recorder.Subscribe()
		done := make(chan struct{})
		w := cmd.ErrOrStderr()
		go func() {
			defer close(done)
			for e := range sub {
				line, err := json.Marshal(e)
				if err != nil {
					continue
				}
				fmt.Fprintln(w, string(line))
			}
		}()
		b.stopEvents = func() {
			b.recorder.Unsubscribe(sub)
			<-done
		}
	}

	b.recorder.Emit("info", "system.startup", "", map[string]any{"command": cmd.Name()})
	return b, nil
}

func (b *base) close() {
	b.recorder.Emit("info", "system.shutdown", "", map[string]any{"events": b.recorder.TotalCount()})
	b.stopEvents()
}

// newSession loads the config, the graph named by args or the config, and
// the modifier and seed overrides.
func newSession(cmd *cobra.Command, args []string) (*session, error) {
	b, err := loadBase(cmd)
	if err != nil {
		return nil, err
	}

	path := b.cfg.Graph
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		b.close()
		return nil, errors.New("no graph file given")
	}

	g, err := progression.LoadGraph(path)
	if err != nil {
		b.recorder.Emit("error", "system.error", err.Error(), map[string]any{"graph": path})
		b.close()
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	for _, w := range g.Warnings {
		b.logger.Warn("graph warning", "graph", path, "warning", w)
		b.recorder.Emit("warn", "graph.warning", w, map[string]any{"graph": path})
	}
	b.recorder.Emit("info", "graph.loaded", "", map[string]any{
		"graph":    path,
		"nodes":    len(g.NodeIDs),
		"tokens":   len(g.TokenIDs),
		"warnings": len(g.Warnings),
	})

	mods, err := buildModifiers(cmd, b.cfg, g.TokenIDs)
	if err != nil {
		b.close()
		return nil, err
	}

	seed, ok := b.cfg.Seed()
	if cmd.Flags().Changed("seed") {
		seed, _ = cmd.Flags().GetUint64("seed")
		ok = true
	}
	if !ok {
		seed = uint64(time.Now().UnixNano())
	}
	b.logger.Debug("session ready", "graph", path, "seed", seed)

	return &session{base: b, graph: g, mods: mods, seed: seed}, nil
}

// buildModifiers layers config multipliers, then --add/--consume flags, on
// top of the 1.0 defaults.
func buildModifiers(cmd *cobra.Command, cfg *config.SimConfig, tokenIDs []string) (*progression.Modifiers, error) {
	mods := progression.NewModifiers(tokenIDs)
	for id, v := range cfg.Modifiers.Add {
		mods.SetAdd(id, v)
	}
	for id, v := range cfg.Modifiers.Consume {
		mods.SetConsume(id, v)
	}

	adds, _ := cmd.Flags().GetStringArray("add")
	for _, raw := range adds {
		id, v, err := progression.ParseOverride(raw)
		if err != nil {
			return nil, err
		}
		mods.SetAdd(id, v)
	}
	consumes, _ := cmd.Flags().GetStringArray("consume")
	for _, raw := range consumes {
		id, v, err := progression.ParseOverride(raw)
		if err != nil {
			return nil, err
		}
		mods.SetConsume(id, v)
	}
	return mods, nil
}

func (s *session) engine() *progression.Engine {
	return progression.NewEngine(s.graph, rand.New(rand.NewPCG(s.seed, s.seed>>1)), s.logger)
}

func (b *base) scheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.WithRecorder(b.recorder), scheduler.WithLogger(b.logger))
}

func (b *base) frameBudget(cmd *cobra.Command) time.Duration {
	if cmd.Flags().Changed("frame-budget") {
		budget, _ := cmd.Flags().GetDuration("frame-budget")
		return budget
	}
	return b.cfg.FrameBudget()
}

// mqttOptions merges the report.mqtt config with --broker/--topic flags.
func (b *base) mqttOptions(cmd *cobra.Command) (mqtt.Options, string, error) {
	mc := b.cfg.Report.MQTT
	password, err := mc.PasswordFromEnv()
	if err != nil {
		return mqtt.Options{}, "", err
	}
	opts := mqtt.Options{
		Broker:   mc.Broker,
		ClientID: mc.ClientIDOrDefault(),
		Username: mc.Username,
		Password: password,
		QoS:      mc.QoS,
	}
	if broker, _ := cmd.Flags().GetString("broker"); broker != "" {
		opts.Broker = broker
	}
	topic := mc.TopicOrDefault()
	if flagTopic, _ := cmd.Flags().GetString("topic"); flagTopic != "" {
		topic = flagTopic
	}
	return opts, topic, nil
}
