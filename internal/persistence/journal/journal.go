// Package journal records the scheduler's decisions as compressed JSON lines.
package journal

import (
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"voxelfarm.ai/internal/bot"
)

const (
	KindTick   = "tick"
	KindAction = "action"

	filePrefix = "journal"
)

// Entry is one journal line. Tick entries fill From/To/Next; action entries
// fill Action/Pos/OK.
type Entry struct {
	Kind  string `json:"kind"`
	Time  string `json:"time"`
	Run   string `json:"run"`
	Epoch uint64 `json:"epoch"`
	Mode  string `json:"mode"`

	Tick uint64 `json:"tick,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Next string `json:"next,omitempty"`

	Action    string  `json:"action,omitempty"`
	Pos       *[3]int `json:"pos,omitempty"`
	OK        *bool   `json:"ok,omitempty"`
	Stale     bool    `json:"stale,omitempty"`
	LatencyMs int64   `json:"latency_ms,omitempty"`

	Err string `json:"err,omitempty"`
}

const queueSize = 1024

type queued struct {
	at time.Time
	e  Entry
}

// Journal is a bot.Recorder writing to <dir>/journal-*.jsonl.zst. Entries are
// queued and written by one goroutine; a full queue drops entries.
type Journal struct {
	w   *segmentWriter
	run string
	log *log.Logger

	ch     chan queued
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
	err    error

	dropped atomic.Uint64
	failed  atomic.Uint64
}

var _ bot.Recorder = (*Journal)(nil)

func Open(dataDir, run string, logger *log.Logger) *Journal {
	j := &Journal{
		w:   newSegmentWriter(filepath.Join(dataDir, "journal"), run),
		run: run,
		log: logger,
		ch:  make(chan queued, queueSize),
	}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j
}

func (j *Journal) RecordTick(r bot.TickRecord) {
	j.enqueue(r.Time, Entry{
		Kind:  KindTick,
		Time:  r.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Run:   j.run,
		Epoch: r.Epoch,
		Mode:  r.Mode,
		Tick:  r.Tick,
		From:  r.From,
		To:    r.To,
		Next:  r.Next,
		Err:   r.Err,
	})
}

func (j *Journal) RecordAction(r bot.ActionRecord) {
	pos := r.Pos
	ok := r.OK
	j.enqueue(r.Time, Entry{
		Kind:      KindAction,
		Time:      r.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Run:       j.run,
		Epoch:     r.Epoch,
		Mode:      r.Mode,
		Action:    r.Action,
		Pos:       &pos,
		OK:        &ok,
		Stale:     r.Stale,
		LatencyMs: r.Latency.Milliseconds(),
		Err:       r.Err,
	})
}

func (j *Journal) enqueue(at time.Time, e Entry) {
	if j == nil || j.closed.Load() {
		return
	}
	select {
	case j.ch <- queued{at: at, e: e}:
	default:
		if n := j.dropped.Add(1); j.log != nil && (n == 1 || n%1000 == 0) {
			j.log.Printf("journal queue full dropped=%d", n)
		}
	}
}

func (j *Journal) loop() {
	for q := range j.ch {
		if err := j.w.write(q.at, q.e); err != nil {
			// Log the first failure and every 1000th after it.
			if n := j.failed.Add(1); j.log != nil && (n == 1 || n%1000 == 0) {
				j.log.Printf("journal write failed count=%d: %v", n, err)
			}
			continue
		}
		if len(j.ch) == 0 {
			if err := j.w.flush(); err != nil {
				j.failed.Add(1)
			}
		}
	}
	j.err = j.w.close()
}

// Dropped is the number of entries discarded because the queue was full.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Failed is the number of entries that could not be written.
func (j *Journal) Failed() uint64 { return j.failed.Load() }

// Close drains the queue and closes the open segment.
func (j *Journal) Close() error {
	j.once.Do(func() {
		j.closed.Store(true)
		close(j.ch)
		j.wg.Wait()
	})
	return j.err
}
