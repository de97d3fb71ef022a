// Standalone script to emit a vignette library JSON from the candidate
// generator, as a starting point for curation.
//
// The static manifests come out empty: opening and closing vignettes are an
// editorial choice, not a generated one.
//
// Usage:
//
//	go run scripts/gen_library.go -out vignettes/library.json -variants 3
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

type libraryOut struct {
	StaticBeginning []string      `json:"static_beginning"`
	StaticEnd       []string      `json:"static_end"`
	Vignettes       []vignetteOut `json:"vignettes"`
}

type vignetteOut struct {
	VignetteID   string      `json:"vignette_id"`
	ScenarioText string      `json:"scenario_text"`
	Options      []optionOut `json:"options"`
}

type optionOut struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
}

func main() {
	outPath := flag.String("out", "vignettes/library.json", "output path")
	variants := flag.Int("variants", 3, "contrast variants per dimension pair")
	dryRun := flag.Bool("dry-run", false, "print the pool without writing")
	flag.Parse()

	gen := vignette.NewGenerator(*variants, nil)
	candidates, err := gen.GenerateCandidates()
	if err != nil {
		log.Fatalf("generate candidates: %v", err)
	}
	log.Printf("generated %d candidates", len(candidates))

	if *dryRun {
		for i, v := range candidates {
			fmt.Printf("[%d] %s  delta=%v\n", i+1, v.ID, v.Delta())
		}
		return
	}

	lib := libraryOut{StaticBeginning: []string{}, StaticEnd: []string{}}
	for _, v := range candidates {
		var opts []optionOut
		for _, o := range v.Options {
			opts = append(opts, optionOut{ID: o.ID, Text: o.Text, Attributes: o.Attributes})
		}
		lib.Vignettes = append(lib.Vignettes, vignetteOut{
			VignetteID:   v.ID,
			ScenarioText: v.ScenarioText,
			Options:      opts,
		})
	}

	data, err := json.MarshalIndent(lib, "", "  ")
	if err != nil {
		log.Fatalf("marshal library: %v", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", *outPath, err)
	}
	log.Printf("wrote %s: %d vignettes, static manifests left for curation", *outPath, len(lib.Vignettes))
}
