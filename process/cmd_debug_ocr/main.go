package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ecoscout/pkg/config"
	"ecoscout/pkg/engine"
)

// Runs the configured pipeline on one image and prints the outcome without
// the preview payload.
func main() {
	f := flag.String("file", "", "image file to recognize")
	flag.Parse()
	if *f == "" {
		log.Fatalf("-file required")
	}
	data, err := os.ReadFile(*f)
	if err != nil {
		log.Fatalf("read: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	eng, err := engine.Build(ctx, cfg, engine.DefaultBuilders())
	if err != nil {
		log.Fatalf("model init failed: %v", err)
	}

	out, err := eng.Pipeline.DetectBytes(ctx, data)
	if err != nil {
		log.Fatalf("detect: %v", err)
	}
	if out.Found() {
		out.Result.PreviewImage = fmt.Sprintf("<%d bytes>", len(out.Result.PreviewImage))
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
