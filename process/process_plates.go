package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"

	"ecoscout/pkg/config"
	"ecoscout/pkg/engine"
	"ecoscout/pkg/plate"
)

// global flags (parsed in main)
var verbose bool

// previewSuffix marks files written by -preview-dir so a watch on the same
// directory does not pick them up again.
const previewSuffix = ".plate.jpg"

// record is one JSON line on stdout.
type record struct {
	File    string         `json:"file"`
	Outcome *plate.Outcome `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type batch struct {
	pipe         *plate.Pipeline
	dir          string
	previewDir   string
	processedDir string

	mu  sync.Mutex
	enc *json.Encoder

	seenMu sync.Mutex
	seen   map[string]time.Time // name -> mod time already handled
}

// Main: scans a directory of vehicle images, runs plate recognition on each
// and prints one JSON line per file. Optional watch mode.
func main() {
	dirFlag := flag.String("dir", "images", "directory to scan for vehicle images")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	previewDir := flag.String("preview-dir", "", "Write annotated previews of recognized plates here")
	processedDir := flag.String("processed-dir", "", "Move files here after processing")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	eng, err := engine.Build(startCtx, cfg, engine.DefaultBuilders())
	cancel()
	if err != nil {
		log.Fatalf("model init failed: %v", err)
	}

	for _, d := range []string{*previewDir, *processedDir} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			log.Fatalf("mkdir %s: %v", d, err)
		}
	}

	b := newBatch(eng.Pipeline, *dirFlag, os.Stdout)
	b.previewDir = *previewDir
	b.processedDir = *processedDir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n := effectiveWorkers(*workers)
	if !*watch {
		files := listImageFiles(*dirFlag)
		log.Printf("Scanning %d files (workers=%d)", len(files), n)
		b.runWorkerPool(ctx, files, n)
		return
	}
	if err := b.scanAndWatch(ctx, n); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}

func newBatch(p *plate.Pipeline, dir string, out io.Writer) *batch {
	return &batch{pipe: p, dir: dir, enc: json.NewEncoder(out), seen: map[string]time.Time{}}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isSupportedExt(name string) bool {
	if strings.HasSuffix(strings.ToLower(name), previewSuffix) {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// scanAndWatch registers the watcher first and only then lists the
// directory, so a file landing between the two is seen by at least one of
// them. It runs until ctx is cancelled.
func (b *batch) scanAndWatch(ctx context.Context, workers int) error {
	w, err := watchDir(b.dir)
	if err != nil {
		return err
	}
	defer w.Close()
	b.scanWatched(ctx, w, workers)
	return nil
}

// scanWatched lists the directory of an already registered watcher and
// processes the listing plus every debounced event until ctx is done.
func (b *batch) scanWatched(ctx context.Context, w *fsnotify.Watcher, workers int) {
	files := listImageFiles(b.dir)
	log.Printf("Scanning %d files (workers=%d), watching %s (debounced) ...", len(files), workers, b.dir)
	b.runWorkerPool(ctx, files, workers, debounce(ctx, w))
}

func watchDir(dir string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// debounce emits a file name once it has been quiet for 300ms. The channel
// closes when ctx is cancelled or the watcher shuts down.
func debounce(ctx context.Context, w *fsnotify.Watcher) <-chan string {
	fileCh := make(chan string, 256)
	go func() {
		defer close(fileCh)
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond {
						select {
						case fileCh <- name:
						case <-ctx.Done():
							return
						}
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()
	return fileCh
}

// runWorkerPool processes initial and then everything arriving on extraCh.
// It returns once all inputs are drained.
func (b *batch) runWorkerPool(ctx context.Context, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				b.processSingleFile(ctx, name)
			}
		}()
	}

	var feed sync.WaitGroup
	feed.Add(1)
	go func() {
		defer feed.Done()
		for _, f := range initial {
			fileCh <- f
		}
	}()
	for _, ch := range extraCh {
		feed.Add(1)
		go func(c <-chan string) {
			defer feed.Done()
			for n := range c {
				fileCh <- n
			}
		}(ch)
	}
	feed.Wait()
	close(fileCh)
	wg.Wait()
}

// processSingleFile runs the pipeline on one file and emits its record.
func (b *batch) processSingleFile(ctx context.Context, name string) {
	filePath := filepath.Join(b.dir, name)
	rec := record{File: name}

	if !b.claim(filePath, name) {
		logV("SKIP %s already handled", name)
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		rec.Error = err.Error()
		b.emit(rec)
		return
	}
	start := time.Now()
	out, err := b.pipe.DetectBytes(ctx, data)
	if err != nil {
		log.Printf("DETECT %s failed: %v", name, err)
		rec.Error = err.Error()
		b.emit(rec)
		return
	}
	rec.Outcome = out
	if out.Found() {
		logV("DETECT %s plate=%s conf=%.2f took=%s", name, out.Result.PlateNumber, out.Result.Confidence, time.Since(start))
		if b.previewDir != "" {
			if err := writePreview(b.previewDir, name, out.Result.PreviewImage); err != nil {
				log.Printf("preview %s: %v", name, err)
			}
		}
	} else {
		logV("DETECT %s %s took=%s", name, out.Message, time.Since(start))
	}
	b.emit(rec)

	if b.processedDir != "" {
		if err := moveToProcessed(filePath, b.processedDir, name); err != nil {
			log.Printf("move %s: %v", name, err)
		}
	}
}

// claim reports whether name should be processed now. The initial scan and
// the watcher can both report the same file; only the first caller for a
// given modification time wins. A file already moved away after being
// handled is also skipped.
func (b *batch) claim(filePath, name string) bool {
	b.seenMu.Lock()
	defer b.seenMu.Unlock()
	prev, handled := b.seen[name]
	fi, err := os.Stat(filePath)
	if err != nil {
		// let a never-seen missing file surface as an error record
		return !(handled && os.IsNotExist(err))
	}
	if handled && fi.ModTime().Equal(prev) {
		return false
	}
	b.seen[name] = fi.ModTime()
	return true
}

func (b *batch) emit(r record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enc.Encode(r); err != nil {
		log.Printf("write record %s: %v", r.File, err)
	}
}

func writePreview(dir, name, preview string) error {
	img, err := plate.DecodePreview(preview)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return imaging.Save(img, filepath.Join(dir, base+previewSuffix), imaging.JPEGQuality(90))
}

// moveToProcessed moves a file into dir. It attempts an atomic rename and
// falls back to copy+remove across devices.
func moveToProcessed(srcFullPath, dir, name string) error {
	dst := filepath.Join(dir, name)
	if err := os.Rename(srcFullPath, dst); err == nil {
		return nil
	}
	return copyRemove(srcFullPath, dst)
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
