package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"seating/csvdata"
	"seating/solver"
)

type runResult struct {
	objective float64
	grades    map[string]int
	relaxed   int
	elapsed   time.Duration
}

func runConfig(guests []solver.Guest, tables []solver.Table, rels []solver.Relationship, opts solver.Options) (runResult, error) {
	start := time.Now()
	m, err := solver.Build(guests, tables, rels, opts)
	if err != nil {
		return runResult{}, err
	}
	assign, err := m.Solve()
	if err != nil {
		return runResult{}, err
	}
	elapsed := time.Since(start)

	byTable := solver.GroupByTable(assign)
	var stats []solver.TableStats
	for _, t := range tables {
		stats = append(stats, m.TableStats(byTable[t.Name]))
	}
	stats = solver.GradeTables(stats)

	grades := map[string]int{}
	for _, s := range stats {
		grades[s.Grade]++
	}
	relaxed := 0
	for _, p := range assign {
		if p.Relaxed {
			relaxed++
		}
	}
	return runResult{
		objective: m.Objective(assign),
		grades:    grades,
		relaxed:   relaxed,
		elapsed:   elapsed,
	}, nil
}

func printResult(label string, r runResult) {
	fmt.Printf("--- %s ---\n", label)
	fmt.Printf("  objective: %.1f\n", r.objective)
	fmt.Printf("  time: %v\n", r.elapsed)
	var parts []string
	for _, g := range []string{"A", "B", "C", "D", "F"} {
		if n := r.grades[g]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", g, n))
		}
	}
	fmt.Printf("  grades: %s\n", strings.Join(parts, " "))
	if r.relaxed > 0 {
		fmt.Printf("  relaxed guests: %d\n", r.relaxed)
	}
	fmt.Println()
}

func main() {
	guestsPath := flag.String("guests", "", "path to guests CSV file")
	tablesPath := flag.String("tables", "", "path to tables CSV file")
	relsPath := flag.String("relationships", "", "path to relationships CSV file")
	beamWidths := flag.String("beam", "4,10,20", "comma-separated beam widths")
	balanceWeights := flag.String("bweight", "6,12,24", "comma-separated balance penalty weights")
	swapPasses := flag.String("passes", "14", "comma-separated swap pass limits")
	balance := flag.Bool("balance", true, "balance table sizes")
	maximizeKnown := flag.Bool("maximize-known", false, "bias relaxed fallback toward known relationships")
	flag.Parse()

	if *guestsPath == "" || *tablesPath == "" || *relsPath == "" {
		fmt.Fprintln(os.Stderr, "-guests, -tables and -relationships are required")
		flag.Usage()
		os.Exit(2)
	}

	guests, rels, tables, err := csvdata.LoadAll(*guestsPath, *relsPath, *tablesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading data: %v\n", err)
		os.Exit(1)
	}

	totalCap := 0
	for _, t := range tables {
		totalCap += t.Capacity
	}
	fmt.Printf("Guests: %d, Tables: %d (%d seats), Relationships: %d\n\n",
		len(guests), len(tables), totalCap, len(rels))

	for _, bw := range parseIntList(*beamWidths) {
		for _, weight := range parseFloatList(*balanceWeights) {
			for _, passes := range parseIntList(*swapPasses) {
				opts := solver.DefaultOptions
				opts.BeamWidth = bw
				opts.BalanceTables = *balance
				opts.BalanceWeight = weight
				opts.MaxSwapPasses = passes
				opts.MaximizeKnown = *maximizeKnown

				label := fmt.Sprintf("beam=%d bweight=%.0f passes=%d", bw, weight, passes)
				r, err := runConfig(guests, tables, rels, opts)
				if err != nil {
					fmt.Printf("--- %s ---\n  error: %v\n\n", label, err)
					continue
				}
				printResult(label, r)
			}
		}
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	var result []int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}

func parseFloatList(s string) []float64 {
	parts := strings.Split(s, ",")
	var result []float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}
