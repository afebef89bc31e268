//go:build ignore

// Package main generates synthetic JSON-lines documents for load testing.
// Usage: go run scripts/generate-documents.go -n 100000 -output testdata/docs.jsonl
//
// Each line is a graph element document:
//
//	{"metadata":{"gid":N,"txid":N,"deleted":false,"is_node":true},"data":{...}}
//
// Load them with: textsearch add ./idx --file testdata/docs.jsonl --batch 10000
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	count     = flag.Int("n", 10000, "Number of documents to generate")
	output    = flag.String("output", "testdata/docs.jsonl", "Output file (- for stdout)")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	txSpan    = flag.Int("txids", 100, "Number of distinct txid values")
	wordCount = flag.Int("words", 12, "Words per text field")
)

var vocabulary = strings.Fields(`
	awesome boring quick brown fox jumps lazy dog graph node edge vertex
	label property index search query commit rollback memory storage
	cluster replica snapshot stream batch schema mapping document field
	token analyzer segment merge cache latency throughput planner cursor`)

var labels = []string{"Person", "Company", "City", "Product", "Review"}

type metadata struct {
	GID     uint64 `json:"gid"`
	TxID    uint64 `json:"txid"`
	Deleted bool   `json:"deleted"`
	IsNode  bool   `json:"is_node"`
}

type document struct {
	Metadata metadata       `json:"metadata"`
	Data     map[string]any `json:"data"`
}

func sentence(r *rand.Rand, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = vocabulary[r.Intn(len(vocabulary))]
	}
	return strings.Join(words, " ")
}

func main() {
	flag.Parse()

	if *count <= 0 || *txSpan <= 0 || *wordCount <= 0 {
		fmt.Fprintln(os.Stderr, "error: -n, -txids and -words must be positive")
		os.Exit(1)
	}

	r := rand.New(rand.NewSource(*seed))

	out := os.Stdout
	if *output != "-" {
		if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
			os.Exit(1)
		}
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)

	for i := 0; i < *count; i++ {
		doc := document{
			Metadata: metadata{
				GID:     uint64(i),
				TxID:    uint64(r.Intn(*txSpan)),
				Deleted: r.Intn(50) == 0,
				IsNode:  r.Intn(4) != 0,
			},
			Data: map[string]any{
				"label":  labels[r.Intn(len(labels))],
				"title":  sentence(r, 3),
				"body":   sentence(r, *wordCount),
				"weight": r.Intn(1000),
			},
		}
		if err := enc.Encode(doc); err != nil {
			fmt.Fprintf(os.Stderr, "error writing document %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error flushing output: %v\n", err)
		os.Exit(1)
	}

	if *output != "-" {
		fmt.Fprintf(os.Stderr, "Generated %d documents in %s\n", *count, *output)
	}
}
