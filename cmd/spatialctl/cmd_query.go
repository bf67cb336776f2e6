package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"spatialdb/pkg/core"
	"spatialdb/pkg/query"
)

var (
	queryExplain bool

	queryCmd = &cobra.Command{
		Use:   "query [sql or expression]",
		Short: "Run one query against a scenario",
		Example: `  spatialctl query -s world.yaml "SELECT * FROM world WHERE xmin <= 100 AND xmax >= 50 LIMIT 10"
  spatialctl query -s world.yaml "kind = 'ship' AND x BETWEEN 0 AND 64"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runQuery,
	}
)

func init() {
	queryCmd.Flags().BoolVar(&queryExplain, "explain", true, "print the plan before the results")
}

func runQuery(cmd *cobra.Command, args []string) error {
	w, _, err := openWorld(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	return execQuery(w, strings.Join(args, " "), queryExplain)
}

// execQuery accepts a full SELECT or a bare WHERE expression.
func execQuery(w *core.World, text string, explain bool) error {
	stmt, err := query.Parse(text)
	if err != nil {
		where, werr := query.ParseWhere(text)
		if werr != nil {
			return err
		}
		stmt = &query.SelectStmt{Table: "world", Where: where, Limit: -1}
	}

	if explain {
		fmt.Printf("plan: %s\n", w.Explain(stmt.Where))
	}
	if stmt.Limit == 0 {
		fmt.Println("Found 0 bodies (LIMIT 0)")
		return nil
	}
	start := time.Now()
	bodies, err := w.Query(stmt.Where, stmt.Offset, max(stmt.Limit, 0))
	if err != nil {
		return err
	}
	fmt.Printf("Found %d bodies (%v):\n", len(bodies), time.Since(start))
	printBodies(bodies, 20)
	return nil
}
