// Command nbjit is a line-oriented driver for the selective JIT engine: each
// line of standard input (or, when any are given, each positional argument
// instead) is one cell, written in cmd/nbjit/langparse's S-expression surface
// syntax, given an id of its own line number (or argument position) and
// compiled/executed through pkg/nbjit.
// It generalizes the teacher's examples/basic into a CLI instead of an HTTP
// service; no HTTP host is included in this repository.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/nbjit/engine/cmd/nbjit/langparse"
	"github.com/nbjit/engine/pkg/nbjit"
)

func main() {
	cc := flag.String("cc", "", "C compiler used to build native units (default: $NBJIT_CC, clang, cc)")
	verbose := flag.Bool("v", false, "log classification decisions to stderr")
	flag.Parse()

	var opts []nbjit.Option
	if *cc != "" {
		opts = append(opts, nbjit.WithCC(*cc))
	}
	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fatal(err)
		}
		opts = append(opts, nbjit.WithLogger(logger))
	}

	engine, err := nbjit.New(opts...)
	if err != nil {
		fatal(err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "nbjit: cleanup:", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	args := flag.Args()
	if len(args) > 0 {
		for i, src := range args {
			runLine(ctx, engine, strconv.Itoa(i+1), src)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	line := 0
	for scanner.Scan() {
		line++
		src := scanner.Text()
		if src == "" {
			continue
		}
		runLine(ctx, engine, strconv.Itoa(line), src)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func runLine(ctx context.Context, engine *nbjit.Engine, cellID, src string) {
	root, err := langparse.Parse(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cell %s: parse error: %v\n", cellID, err)
		return
	}

	res, err := engine.RunCell(ctx, root, cellID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cell %s: %v\n", cellID, err)
		return
	}
	fmt.Printf("cell %s => %d  (%s)\n", cellID, res.Value, res.Classification)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "nbjit:", err)
	os.Exit(1)
}
