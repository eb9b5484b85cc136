package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// segmentWriter appends one run's entries to zstd-compressed JSON lines, one
// file per UTC hour of the entry time:
// journal-YYYY-MM-DD-HH-<run>.jsonl.zst. It is owned by a single goroutine.
type segmentWriter struct {
	dir string
	tag string

	hour string
	f    *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
	enc  *json.Encoder
}

func newSegmentWriter(dir, run string) *segmentWriter {
	return &segmentWriter{dir: dir, tag: runTag(run)}
}

// runTag keeps file names short and path-safe.
func runTag(run string) string {
	var b strings.Builder
	for _, r := range run {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "norun"
	}
	return b.String()
}

func (w *segmentWriter) segmentName(hour string) string {
	return fmt.Sprintf("%s-%s-%s.jsonl.zst", filePrefix, hour, w.tag)
}

func (w *segmentWriter) write(at time.Time, e Entry) error {
	if hour := at.UTC().Format(hourLayout); hour != w.hour {
		if err := w.open(hour); err != nil {
			return err
		}
	}
	return w.enc.Encode(e)
}

// flush pushes buffered lines into the compressor and ends the current block,
// so a reader of the open segment sees everything written so far.
func (w *segmentWriter) flush() error {
	if w.buf == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.zw.Flush()
}

// open closes the current segment and opens the one for hour. Reopening a
// segment of the same run and hour appends a new zstd frame.
func (w *segmentWriter) open(hour string) error {
	if err := w.close(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(w.dir, w.segmentName(hour)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.zw, w.hour = f, zw, hour
	w.buf = bufio.NewWriterSize(zw, 32*1024)
	w.enc = json.NewEncoder(w.buf)
	return nil
}

func (w *segmentWriter) close() error {
	if w.f == nil {
		return nil
	}
	err := w.buf.Flush()
	if cerr := w.zw.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f, w.zw, w.buf, w.enc, w.hour = nil, nil, nil, nil, ""
	return err
}
