package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"spatialdb/pkg/predicate"
)

// movingBodies matches every body with a non-zero velocity.
var movingBodies = predicate.OR(
	predicate.NOT(predicate.EQ("vx", 0.0)),
	predicate.NOT(predicate.EQ("vy", 0.0)),
	predicate.NOT(predicate.EQ("vz", 0.0)),
)

var (
	benchFrames int

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Step a scenario and report frame times and index statistics",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
)

func init() {
	benchCmd.Flags().IntVarP(&benchFrames, "frames", "f", 0, "frames to simulate (default: sim.frames)")
}

func runBench(cmd *cobra.Command, args []string) error {
	frames := benchFrames
	if frames <= 0 {
		frames = conf.Sim.Frames
	}

	w, _, err := openWorld(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	fmt.Printf("Benchmark: %d bodies, %d frames, index=%s\n", w.Len(), frames, conf.Index.Kind)
	fmt.Println("---------------------------------------------------")

	var total, worst time.Duration
	collisions := 0
	for i := 0; i < frames; i++ {
		start := time.Now()
		pairs, err := w.Step(conf.Sim.Dt)
		if err != nil {
			return err
		}
		d := time.Since(start)
		total += d
		worst = max(worst, d)
		collisions += len(pairs)
	}

	fmt.Printf("Total: %v | avg frame: %v | worst: %v\n", total, total/time.Duration(max(frames, 1)), worst)
	fmt.Printf("Collisions: %d (%.1f per frame)\n", collisions, float64(collisions)/float64(max(frames, 1)))
	moving, err := w.Count(movingBodies)
	if err != nil {
		return err
	}
	fmt.Printf("Moving bodies after the run: %d of %d\n", moving, w.Len())
	fmt.Println("---------------------------------------------------")
	for k, v := range w.Stats() {
		fmt.Printf("  %-18s %v\n", k, v)
	}
	return w.Verify()
}
