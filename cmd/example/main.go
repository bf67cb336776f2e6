package main

import (
	"fmt"
	"log"
	"time"

	"spatialdb/pkg/config"
	"spatialdb/pkg/core"
	"spatialdb/pkg/core/spatial"
	"spatialdb/pkg/predicate"
	"spatialdb/pkg/query"
)

func main() {
	cfg := config.Default()
	cfg.Index.BucketWidth = []float64{16}

	w, err := core.NewWorld(cfg)
	if err != nil {
		log.Fatalf("Failed to create world: %v", err)
	}

	for i := 0; i < 8; i++ {
		b := core.Body{
			ID:   fmt.Sprintf("ship-%d", i),
			Kind: "ship",
			Pos:  [3]float64{float64(20 + i*12), 40},
			Half: [3]float64{4, 4},
			Vel:  [3]float64{float64(10 - i*3), 0},
		}
		if _, err := w.Spawn(b); err != nil {
			log.Fatalf("Spawn failed: %v", err)
		}
	}

	region := spatial.Overlaps(w.Space(), []float64{30, 30}, []float64{60, 50})
	fmt.Printf("Plan: %s\n", w.Explain(region))
	bodies, err := w.Query(region, 0, 0)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("%d bodies in [30,60]x[30,50]\n", len(bodies))

	start := time.Now()
	for frame := 0; frame < 5; frame++ {
		pairs, err := w.Step(0.5)
		if err != nil {
			log.Fatalf("Step failed: %v", err)
		}
		fmt.Printf("frame %d: %d collisions %v\n", frame, len(pairs), pairs)
	}
	fmt.Printf("Stepped in %v\n", time.Since(start))

	where, err := query.ParseWhere("kind = 'ship' AND vx < 0")
	if err != nil {
		log.Fatalf("Parse failed: %v", err)
	}
	bodies, err = w.Query(predicate.AND(where, predicate.GTE("x", 0)), 0, 3)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	for _, b := range bodies {
		fmt.Println(b)
	}
}
