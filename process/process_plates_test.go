package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoscout/pkg/ocr"
	"ecoscout/pkg/plate"
)

type boxDetector struct{}

func (boxDetector) Detect(ctx context.Context, img image.Image) ([]plate.BoundingBox, error) {
	b := img.Bounds()
	return []plate.BoundingBox{{X2: b.Dx(), Y2: b.Dy()}}, nil
}

type constRecognizer struct{ text string }

func (r constRecognizer) Recognize(ctx context.Context, img image.Image, opts ocr.Options) ([]ocr.Fragment, error) {
	return []ocr.Fragment{{Text: r.text, Confidence: 0.7}}, nil
}

func TestIsSupportedExt(t *testing.T) {
	for name, want := range map[string]bool{
		"car.JPG":       true,
		"car.webp":      true,
		"car.tiff":      true,
		"notes.txt":     false,
		"car.plate.jpg": false,
	} {
		if got := isSupportedExt(name); got != want {
			t.Fatalf("%s: expected %v got %v", name, want, got)
		}
	}
}

func TestBatchProcessesDirectory(t *testing.T) {
	dir := t.TempDir()
	previews := t.TempDir()
	processed := t.TempDir()
	for _, n := range []string{"b.png", "a.jpg"} {
		require.NoError(t, imaging.Save(imaging.New(40, 20, color.White), filepath.Join(dir, n)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("skip me"), 0o644))

	files := listImageFiles(dir)
	assert.Equal(t, []string{"a.jpg", "b.png", "broken.png"}, files)

	var out bytes.Buffer
	b := newBatch(plate.New(boxDetector{}, constRecognizer{text: "XY12"}), dir, &out)
	b.previewDir = previews
	b.processedDir = processed
	b.runWorkerPool(context.Background(), files, 2)

	got := map[string]map[string]any{}
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		got[line["file"].(string)] = line
	}
	require.Len(t, got, 3)

	outcome := got["a.jpg"]["outcome"].(map[string]any)
	assert.Equal(t, "XY12", outcome["plate_number"])
	assert.Equal(t, "Success", outcome["status"])
	assert.Contains(t, got["broken.png"]["error"], "invalid image")

	_, err := os.Stat(filepath.Join(previews, "a"+previewSuffix))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(processed, "b.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "b.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestBatchNoPlate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(imaging.New(10, 10, color.Black), filepath.Join(dir, "c.png")))

	var out bytes.Buffer
	b := newBatch(plate.New(boxDetector{}, constRecognizer{text: "Z"}), dir, &out)
	b.processSingleFile(context.Background(), "c.png")

	var line struct {
		File    string          `json:"file"`
		Outcome json.RawMessage `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, "c.png", line.File)
	assert.JSONEq(t, `{"status":"Failed","message":"No plate detected"}`, string(line.Outcome))
}

// lockedBuffer lets the test read records while workers are still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *lockedBuffer) files() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := map[string]int{}
	for _, line := range strings.Split(strings.TrimSpace(l.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var r record
		if err := json.Unmarshal([]byte(line), &r); err == nil {
			counts[r.File]++
		}
	}
	return counts
}

func TestWatchCatchesFilesAroundInitialScan(t *testing.T) {
	dir := t.TempDir()
	save := func(name string) {
		require.NoError(t, imaging.Save(imaging.New(30, 12, color.White), filepath.Join(dir, name)))
	}
	save("before.png")

	w, err := watchDir(dir)
	require.NoError(t, err)
	defer w.Close()
	// lands after registration but before the listing
	save("gap.png")

	out := &lockedBuffer{}
	b := newBatch(plate.New(boxDetector{}, constRecognizer{text: "GA12"}), dir, out)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.scanWatched(ctx, w, 2)
	}()

	time.Sleep(200 * time.Millisecond)
	save("after.png")

	want := []string{"before.png", "gap.png", "after.png"}
	require.Eventually(t, func() bool {
		got := out.files()
		for _, n := range want {
			if got[n] == 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 50*time.Millisecond)

	// give the debouncer time to flush duplicates before checking counts
	time.Sleep(700 * time.Millisecond)
	cancel()
	<-done

	got := out.files()
	for _, n := range want {
		assert.Equal(t, 1, got[n], "%s processed %d times", n, got[n])
	}
}

func TestClaimSkipsHandledFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(imaging.New(8, 8, color.White), filepath.Join(dir, "x.png")))
	b := newBatch(nil, dir, &bytes.Buffer{})
	p := filepath.Join(dir, "x.png")

	assert.True(t, b.claim(p, "x.png"))
	assert.False(t, b.claim(p, "x.png"), "same mod time is a duplicate")

	require.NoError(t, os.Remove(p))
	assert.False(t, b.claim(p, "x.png"), "moved away after handling")
	assert.True(t, b.claim(filepath.Join(dir, "y.png"), "y.png"), "unknown missing file still reported")
}
