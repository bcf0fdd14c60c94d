// Command rasterserve wires a rasterq.Dataset to a cobra CLI: serve runs
// an HTTP query/metrics endpoint, query runs one bounded GetData call,
// stats streams a footprint grid through IterData and reports the
// resulting Stats snapshot.
package main

import (
	"fmt"
	"os"

	"github.com/rasterq/rasterq/internal/poolroom"
)

func main() {
	// A ProcessPool job re-execs this binary with ProcessWorkerArg as
	// argv[1]; short-circuit into the worker before cobra ever sees argv.
	if len(os.Args) > 1 && os.Args[1] == poolroom.ProcessWorkerArg {
		opName := ""
		if len(os.Args) > 2 {
			opName = os.Args[2]
		}
		if err := poolroom.RunProcessWorker(opName); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	Execute()
}
