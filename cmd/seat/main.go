package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"seating/csvdata"
	"seating/solver"
)

type traceObserver struct{}

func (traceObserver) GroupPlaced(group []string, table string, score float64) {
	log.Printf("placed [%s] -> %s (score %.1f)", strings.Join(group, ", "), table, score)
}

func (traceObserver) FallbackTriggered(reason string) {
	log.Printf("fallback: %s", reason)
}

func (traceObserver) SwapAccepted(g1, g2, t1, t2 string) {
	log.Printf("swap %s (%s) <-> %s (%s)", g1, t1, g2, t2)
}

func main() {
	guestsPath := flag.String("guests", "", "path to guests CSV file")
	tablesPath := flag.String("tables", "", "path to tables CSV file")
	relsPath := flag.String("relationships", "", "path to relationships CSV file")
	output := flag.String("output", "", "write the arrangement report to this file instead of stdout")
	verbose := flag.Bool("v", false, "trace solver progress")

	maximizeKnown := flag.Bool("maximize-known", false, "bias relaxed fallback toward known relationships")
	groupSingles := flag.Bool("group-singles", false, "cluster single guests without plus-ones")
	minKnown := flag.Int("min-known", 0, "soft minimum known neighbors per guest")
	minUnknown := flag.Int("min-unknown", 0, "soft minimum unfamiliar neighbors per guest")
	groupByMeal := flag.Bool("group-by-meal", false, "group guests by meal preference")
	balance := flag.Bool("balance", false, "balance table sizes toward near-equal targets")
	balanceWeight := flag.Float64("balance-weight", solver.DefaultOptions.BalanceWeight, "size balance penalty weight")
	slack := flag.Int("slack", 0, "size deviation tolerated before the balance penalty applies")
	beamWidth := flag.Int("beam", solver.DefaultOptions.BeamWidth, "beam width")
	flag.Parse()

	if *guestsPath == "" || *tablesPath == "" || *relsPath == "" {
		fmt.Fprintln(os.Stderr, "-guests, -tables and -relationships are required")
		flag.Usage()
		os.Exit(2)
	}

	guests, rels, tables, err := csvdata.LoadAll(*guestsPath, *relsPath, *tablesPath)
	if err != nil {
		log.Fatalf("loading data: %v", err)
	}
	if *verbose {
		totalCap := 0
		for _, t := range tables {
			totalCap += t.Capacity
		}
		log.Printf("loaded %d guests, %d tables (%d seats), %d relationships",
			len(guests), len(tables), totalCap, len(rels))
	}

	opts := solver.Options{
		MaximizeKnown:         *maximizeKnown,
		GroupSingles:          *groupSingles,
		MinKnown:              *minKnown,
		MinUnknown:            *minUnknown,
		GroupByMealPreference: *groupByMeal,
		BalanceTables:         *balance,
		BalanceWeight:         *balanceWeight,
		MinTargetSlack:        *slack,
		BeamWidth:             *beamWidth,
	}
	if *verbose {
		opts.Observer = traceObserver{}
	}

	m, err := solver.Build(guests, tables, rels, opts)
	if err != nil {
		log.Fatalf("building model: %v", err)
	}
	assign, err := m.Solve()
	if err != nil {
		log.Fatalf("solving: %v", err)
	}

	out := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("creating %s: %v", *output, err)
		}
		defer f.Close()
		out = f
	}
	writeReport(out, m, tables, assign)
	if *verbose && *output != "" {
		log.Printf("arrangement written to %s", *output)
	}
}

func writeReport(w io.Writer, m *solver.Model, tables []solver.Table, assign map[string]solver.Placed) {
	byTable := solver.GroupByTable(assign)

	fmt.Fprintln(w, "Seating Arrangement")
	fmt.Fprintln(w, strings.Repeat("=", 19))
	fmt.Fprintln(w)

	for _, t := range tables {
		members := byTable[t.Name]
		stats := solver.GradeTables([]solver.TableStats{m.TableStats(members)})[0]

		fmt.Fprintf(w, "%s (seated %d/%d, grade %s, mean %.2f, total %d)\n",
			t.Name, len(members), t.Capacity, stats.Grade, stats.MeanScore, stats.TotalScore)
		for _, g := range members {
			if assign[g].Relaxed {
				fmt.Fprintf(w, "  - %s (relaxed constraints)\n", g)
			} else {
				fmt.Fprintf(w, "  - %s\n", g)
			}
		}
		if len(members) == 0 {
			fmt.Fprintln(w, "  (empty)")
		}
		fmt.Fprintln(w)
	}

	var relaxedGuests []string
	for g, p := range assign {
		if p.Relaxed {
			relaxedGuests = append(relaxedGuests, g)
		}
	}
	if len(relaxedGuests) > 0 {
		sort.Strings(relaxedGuests)
		fmt.Fprintf(w, "Seated with relaxed constraints: %s\n", strings.Join(relaxedGuests, ", "))
	}
	fmt.Fprintf(w, "Overall score: %.1f\n", m.Objective(assign))
}
