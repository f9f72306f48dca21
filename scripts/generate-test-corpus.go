//go:build ignore

// Package main generates a synthetic product corpus as NDJSON, matching the
// example schema written by `searchkit config init`.
// Usage: go run scripts/generate-test-corpus.go -docs 10000 -output testdata/products.ndjson
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var (
	numDocs = flag.Int("docs", 10000, "Number of documents to generate")
	output  = flag.String("output", "testdata/products.ndjson", "Output file, - for stdout")
	seed    = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	colorsEN = []string{"Red", "Blue", "Green", "Black", "White", "Yellow", "Grey"}
	colorsDE = []string{"Roter", "Blauer", "Grüner", "Schwarzer", "Weißer", "Gelber", "Grauer"}
	itemsEN  = []string{"shoe", "hat", "coat", "scarf", "glove", "boot", "jacket"}
	itemsDE  = []string{"Schuh", "Hut", "Mantel", "Schal", "Handschuh", "Stiefel", "Jacke"}
	epoch    = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
)

func main() {
	flag.Parse()
	r := rand.New(rand.NewSource(*seed))

	out := os.Stdout
	if *output != "-" {
		if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
			fatal(err)
		}
		f, err := os.Create(*output)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for i := 0; i < *numDocs; i++ {
		c, it := r.Intn(len(colorsEN)), r.Intn(len(itemsEN))
		doc := map[string]any{
			"id": fmt.Sprintf("p-%06d", i),
			"title": map[string]any{
				"en": colorsEN[c] + " " + itemsEN[it],
				"de": colorsDE[c] + " " + itemsDE[it],
			},
			"tag":   itemsEN[it],
			"price": float64(r.Intn(20000)) / 100,
		}
		// Leave some documents undated so null filters have something to find.
		if r.Intn(10) > 0 {
			doc["created"] = epoch.Add(time.Duration(r.Int63n(int64(2 * 365 * 24 * time.Hour)))).Format(time.RFC3339)
		}
		if err := enc.Encode(doc); err != nil {
			fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		fatal(err)
	}
	if *output != "-" {
		fmt.Fprintf(os.Stderr, "Generated %d documents in %s\n", *numDocs, *output)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
