// Command osgenome crawls SNPedia for the SNPs in a personal genome export
// and serves the enriched results over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "osgenome: %v\n", err)
		os.Exit(1)
	}
}
