package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spatialdb/pkg/scenario"
)

var (
	genBodies   int
	genDims     int
	genSeed     uint64
	genSize     float64
	genMaxHalf  float64
	genMaxSpeed float64
	genKinds    []string
	genOut      string

	genCmd = &cobra.Command{
		Use:   "gen",
		Short: "Generate a random scenario (.yaml, .yml, .msgpack or .mp)",
		Args:  cobra.NoArgs,
		RunE:  runGen,
	}
)

func init() {
	genCmd.Flags().StringVarP(&genOut, "out", "o", "scenario.yaml", "output file; the extension picks the format")
	genCmd.Flags().IntVarP(&genBodies, "bodies", "n", 10000, "number of bodies")
	genCmd.Flags().IntVar(&genDims, "dims", 2, "dimensions (2 or 3)")
	genCmd.Flags().Uint64Var(&genSeed, "seed", 1, "random seed")
	genCmd.Flags().Float64Var(&genSize, "size", 1024, "edge of the cube bodies are placed in")
	genCmd.Flags().Float64Var(&genMaxHalf, "max-half", 4, "largest half extent")
	genCmd.Flags().Float64Var(&genMaxSpeed, "max-speed", 50, "largest speed per axis")
	genCmd.Flags().StringSliceVar(&genKinds, "kinds", []string{"rock", "ship", "probe"}, "body kinds")
}

func runGen(cmd *cobra.Command, args []string) error {
	s, err := scenario.Generate(scenario.GenOptions{
		Bodies:   genBodies,
		Dims:     genDims,
		Seed:     genSeed,
		Size:     genSize,
		MaxHalf:  genMaxHalf,
		MaxSpeed: genMaxSpeed,
		Kinds:    genKinds,
	})
	if err != nil {
		return err
	}
	if err := s.Save(genOut); err != nil {
		return err
	}
	fmt.Printf("Wrote %d bodies (%dD, seed %d) to %s\n", len(s.Bodies), s.Dims, s.Seed, genOut)
	return nil
}
