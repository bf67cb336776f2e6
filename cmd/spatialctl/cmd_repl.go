package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"spatialdb/pkg/core"
)

const Prompt = "spatial> "

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive shell over a loaded scenario",
	Args:  cobra.NoArgs,
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	w, s, err := openWorld(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %q: %d bodies in %dD. Type 'help' for commands.\n", s.Name, w.Len(), s.Dims)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch strings.ToLower(parts[0]) {
		case "spawn":
			handleSpawn(w, parts)
		case "get":
			handleGet(w, parts)
		case "del", "rm":
			handleDel(w, parts)
		case "move":
			handleMove(w, parts)
		case "step":
			handleStep(w, parts)
		case "kind":
			handleKind(w, parts)
		case "select", "where":
			text := line
			if strings.EqualFold(parts[0], "where") {
				text = strings.TrimSpace(line[len(parts[0]):])
			}
			if err := execQuery(w, text, false); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		case "explain":
			if err := execQuery(w, strings.TrimSpace(line[len(parts[0]):]), true); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		case "stats":
			for k, v := range w.Stats() {
				fmt.Printf("  %-18s %v\n", k, v)
			}
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return nil
		default:
			fmt.Printf("Unknown command: '%s'. Type 'help'.\n", parts[0])
		}
	}
	return scanner.Err()
}

func handleSpawn(w *core.World, parts []string) {
	if len(parts) < 5 {
		fmt.Println("Usage: spawn <id> <kind> <x,y[,z]> <hx,hy[,hz]> [vx,vy[,vz]]")
		return
	}
	b := core.Body{ID: parts[1], Kind: parts[2]}
	vecs := []*[3]float64{&b.Pos, &b.Half, &b.Vel}
	for i, arg := range parts[3:min(len(parts), 6)] {
		v, err := parseVec(arg, w.Dims())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		copy(vecs[i][:], v)
	}
	start := time.Now()
	if _, err := w.Spawn(b); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("OK (%v)\n", time.Since(start))
}

func handleGet(w *core.World, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: get <id>")
		return
	}
	b, err := w.Get(parts[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(&b)
}

func handleDel(w *core.World, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: del <id>")
		return
	}
	if err := w.Despawn(parts[1]); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Deleted")
}

func handleMove(w *core.World, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: move <id> <x,y[,z]>")
		return
	}
	v, err := parseVec(parts[2], w.Dims())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	var pos [3]float64
	copy(pos[:], v)
	if err := w.Move(parts[1], pos); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("OK")
}

func handleStep(w *core.World, parts []string) {
	n := 1
	if len(parts) > 1 {
		var err error
		if n, err = strconv.Atoi(parts[1]); err != nil || n < 1 {
			fmt.Println("Usage: step [frames]")
			return
		}
	}
	start := time.Now()
	var pairs []core.Collision
	for i := 0; i < n; i++ {
		var err error
		if pairs, err = w.Step(conf.Sim.Dt); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
	}
	fmt.Printf("Stepped %d frames (%v), %d collisions in the last one\n", n, time.Since(start), len(pairs))
	for i, c := range pairs {
		if i >= 10 {
			fmt.Printf("... and %d more\n", len(pairs)-10)
			break
		}
		fmt.Printf("  %s <-> %s\n", c.A, c.B)
	}
}

func handleKind(w *core.World, parts []string) {
	if len(parts) < 2 {
		fmt.Printf("Kinds: %s\n", strings.Join(w.Kinds(), ", "))
		return
	}
	bodies := w.ByKind(parts[1])
	fmt.Printf("%d bodies of kind %s:\n", len(bodies), parts[1])
	printBodies(bodies, 20)
}

func printHelp() {
	fmt.Println(`
Commands:
  spawn <id> <kind> <pos> <half> [vel]
                         Add a body; vectors are x,y[,z]
  get <id>               Show one body
  del <id>               Despawn a body
  move <id> <x,y[,z]>    Move a body
  step [n]               Advance n frames and list collisions
  kind [name]            List kinds, or the bodies of one kind
  select * from ...      Run a SELECT
  where <expr>           Run a bare WHERE expression
  explain <query>        Show the plan, then run the query
  stats                  Index statistics
  exit                   Exit`)
}
