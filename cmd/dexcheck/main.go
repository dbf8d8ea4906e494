// Command dexcheck verifies an aggregate document written by dexgen and
// exits non-zero when any invariant is violated.
//
// Usage:
//
//	go run ./cmd/dexcheck/ [data/pokemon.json]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	flag.Parse()
	path := "data/pokemon.json"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("reading %s: %v", path, err)
	}

	problems := check(data)
	for _, p := range problems {
		fmt.Fprintln(os.Stderr, p)
	}
	if len(problems) > 0 {
		log.Fatalf("%s: %d problem(s)", path, len(problems))
	}
	fmt.Printf("%s: OK\n", path)
}
