// Command cellgen is a tiny helper utility that generates deterministic
// synthetic notebook cells, written in cmd/nbjit/langparse's S-expression
// surface syntax, for standalone benchmarking of the selective JIT engine
// outside `go test`. It generalizes the teacher's tools/dataset_gen from
// uint64 cache keys to cell source lines, since bench/bench_test.go now
// drives internal/session instead of a key/value cache.
//
// Usage:
//
//	go run ./tools/cellgen -n 1000 -holes 2 -out cells.txt
//
// Flags:
//
//	-n      number of distinct cells to generate (default 1000)
//	-holes  number of hole annotations per cell (default 1)
//	-seed   RNG seed (default 42)
//	-out    output file (default stdout)
//
// Every Nth line (N = -repeat, default 5) repeats the previous cell's
// content verbatim under a fresh id, producing the alias-hit traffic shape a
// realistic notebook re-run workload has.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
)

func main() {
	var (
		n      = flag.Int("n", 1000, "number of distinct cells to generate")
		holes  = flag.Int("holes", 1, "number of hole annotations per cell")
		seed   = flag.Int64("seed", 42, "RNG seed")
		repeat = flag.Int("repeat", 5, "repeat every Nth cell verbatim to model re-runs")
		out    = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cellgen:", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	rng := rand.New(rand.NewSource(*seed))
	var last string
	for i := 0; i < *n; i++ {
		var line string
		if *repeat > 0 && i%*repeat == 0 && last != "" {
			line = last
		} else {
			line = generateCell(rng, *holes, i)
			last = line
		}
		fmt.Fprintln(bw, line)
	}
}

func generateCell(rng *rand.Rand, holeCount, idx int) string {
	ops := []string{"+", "-", "*"}
	n := rng.Intn(1000)

	body := fmt.Sprintf("(assign n %d)", n)
	for h := 0; h < holeCount; h++ {
		op := ops[rng.Intn(len(ops))]
		k := rng.Intn(10) + 1
		body += fmt.Sprintf(" (hole (assign total_%d (%s n %d)))", h, op, k)
	}
	body += " (call println n)"

	return fmt.Sprintf("(block %s)", body)
}
