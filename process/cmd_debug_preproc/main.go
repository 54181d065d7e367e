package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"ecoscout/pkg/ocr"
	"ecoscout/pkg/plate"
)

// Writes the conditioned crop of one box so threshold and CLAHE output can
// be inspected by eye.
func main() {
	in := flag.String("image", "", "input image")
	boxFlag := flag.String("box", "", "x1,y1,x2,y2 (default: whole image)")
	out := flag.String("out", "/tmp/plate.cond.png", "output png")
	clip := flag.Float64("clip", ocr.DefaultConditionOptions().ClipLimit, "CLAHE clip limit")
	tiles := flag.Int("tiles", ocr.DefaultConditionOptions().TileGrid, "CLAHE tile grid")
	flag.Parse()
	if *in == "" {
		log.Fatalf("-image is required")
	}

	img, err := imaging.Open(*in, imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	b := img.Bounds()
	box := plate.BoundingBox{X2: b.Dx(), Y2: b.Dy()}
	if *boxFlag != "" {
		if box, err = parseBox(*boxFlag); err != nil {
			log.Fatalf("box: %v", err)
		}
	}

	crop, clamped, err := plate.ExtractRegion(img, box)
	if err != nil {
		log.Fatalf("extract %s: %v", box, err)
	}
	opts := ocr.DefaultConditionOptions()
	opts.ClipLimit = *clip
	opts.TileGrid = *tiles
	cond, err := ocr.ConditionWith(crop, opts)
	if err != nil {
		log.Fatalf("condition: %v", err)
	}
	if err := imaging.Save(cond, *out); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Printf("box=%s crop=%dx%d conditioned=%dx%d opts=%+v -> %s\n",
		clamped, crop.Bounds().Dx(), crop.Bounds().Dy(), cond.Bounds().Dx(), cond.Bounds().Dy(), opts, *out)
}

func parseBox(s string) (plate.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return plate.BoundingBox{}, fmt.Errorf("want x1,y1,x2,y2, got %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return plate.BoundingBox{}, err
		}
		v[i] = n
	}
	return plate.BoundingBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}
