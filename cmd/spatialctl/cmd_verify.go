package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"spatialdb/pkg/oracle"
)

var (
	verifyQueries int
	verifyFrames  int
	verifyDB      string

	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Cross-check random box queries against SQLite after every frame",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}
)

func init() {
	verifyCmd.Flags().IntVarP(&verifyQueries, "queries", "q", 50, "random queries per frame")
	verifyCmd.Flags().IntVarP(&verifyFrames, "frames", "f", 20, "frames to step")
	verifyCmd.Flags().StringVar(&verifyDB, "db", ":memory:", "sqlite database path")
}

func runVerify(cmd *cobra.Command, args []string) error {
	w, s, err := openWorld(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	o, err := oracle.Open(verifyDB, logger)
	if err != nil {
		return err
	}
	defer o.Close()

	rng := rand.New(rand.NewPCG(s.Seed, uint64(verifyQueries)))
	checks := 0
	for frame := 0; frame <= verifyFrames; frame++ {
		if frame > 0 {
			if _, err := w.Step(conf.Sim.Dt); err != nil {
				return err
			}
		}
		if err := o.Sync(w); err != nil {
			return err
		}
		for q := 0; q < verifyQueries; q++ {
			lo := make([]float64, s.Dims)
			hi := make([]float64, s.Dims)
			for a := range lo {
				size := conf.World.Max[a] - conf.World.Min[a]
				lo[a] = conf.World.Min[a] + rng.Float64()*size
				hi[a] = lo[a] + rng.Float64()*size/8
			}
			if err := o.Check(w, lo, hi); err != nil {
				return fmt.Errorf("frame %d: %w", frame, err)
			}
			checks++
		}
	}
	fmt.Printf("OK: %d queries over %d frames agree with SQLite\n", checks, verifyFrames)
	return w.Verify()
}
