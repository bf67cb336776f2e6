package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"spatialdb/pkg/config"
	"spatialdb/pkg/core"
	"spatialdb/pkg/monitor"
	"spatialdb/pkg/scenario"
)

var (
	configPath   string
	logLevel     string
	indexKind    string
	scenarioPath string
	randomBodies int

	conf   *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "spatialctl",
		Short: "Generate, benchmark, verify and query spatial worlds",
		Long: `spatialctl drives a world of moving boxes indexed by a sparse bucket grid.
It can generate scenarios, step them to measure the index against a linear
scan, cross-check queries against SQLite and run ad-hoc queries.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			conf, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				conf.Log.Level = logLevel
			}
			if indexKind != "" {
				conf.Index.Kind = indexKind
			}
			logger, err = monitor.NewLogger(os.Stderr, conf.Log.Level, conf.Log.Format)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return conf.Validate()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: configs/spatial.yaml or spatial.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&indexKind, "index", "", "override index.kind (grid, linear)")
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario file (default: a random world seeded by sim.seed)")
	rootCmd.PersistentFlags().IntVar(&randomBodies, "random-bodies", 2000, "bodies in the random world used without --scenario")

	rootCmd.AddCommand(genCmd, benchCmd, verifyCmd, queryCmd, replCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadScenario reads --scenario, or generates a world inside the configured
// bounds when it is not set.
func loadScenario() (*scenario.Scenario, error) {
	if scenarioPath != "" {
		return scenario.Load(scenarioPath)
	}
	return scenario.Generate(scenario.GenOptions{
		Bodies:   randomBodies,
		Dims:     conf.Index.Dims,
		Seed:     conf.Sim.Seed,
		Size:     conf.World.Max[0] - conf.World.Min[0],
		MaxSpeed: 50,
	})
}

// openWorld builds a world from conf and fills it from the scenario. The
// scenario's dims win over the config.
func openWorld(reg prometheus.Registerer) (*core.World, *scenario.Scenario, error) {
	s, err := loadScenario()
	if err != nil {
		return nil, nil, err
	}
	cfg := *conf
	cfg.Index.Dims = s.Dims
	if len(s.Bodies) > cfg.World.MaxBodies {
		cfg.World.MaxBodies = len(s.Bodies)
	}

	w, err := core.NewWorld(&cfg, core.WithLogger(logger), core.WithRegistry(reg))
	if err != nil {
		return nil, nil, err
	}
	if err := w.SpawnAll(s.Bodies); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", s.Name, err)
	}
	logger.Info("scenario loaded", "name", s.Name, "bodies", len(s.Bodies), "dims", s.Dims)
	return w, s, nil
}

func printBodies(bodies []*core.Body, limit int) {
	for i, b := range bodies {
		if i >= limit {
			fmt.Printf("... and %d more\n", len(bodies)-limit)
			break
		}
		fmt.Printf("  %s\n", b)
	}
}

func parseVec(s string, dims int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != dims {
		return nil, fmt.Errorf("%q: want %d comma separated values", s, dims)
	}
	out := make([]float64, dims)
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &out[i]); err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
	}
	return out, nil
}
