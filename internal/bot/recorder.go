package bot

import "time"

// TickRecord describes one executed step.
type TickRecord struct {
	Time  time.Time
	Epoch uint64
	Tick  uint64
	Mode  string
	From  string
	To    string
	Next  string
	Err   string
}

// ActionRecord describes one completed future.
type ActionRecord struct {
	Time    time.Time
	Epoch   uint64
	Mode    string
	Action  string
	Pos     [3]int
	OK      bool
	Err     string
	Stale   bool
	Latency time.Duration
}

// Recorder receives scheduler telemetry. Calls happen on the run loop and
// must not block.
type Recorder interface {
	RecordTick(TickRecord)
	RecordAction(ActionRecord)
}

// Recorders fans records out to several recorders.
type Recorders []Recorder

func (rs Recorders) RecordTick(r TickRecord) {
	for _, x := range rs {
		x.RecordTick(r)
	}
}

func (rs Recorders) RecordAction(r ActionRecord) {
	for _, x := range rs {
		x.RecordAction(r)
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordTick(TickRecord)     {}
func (nopRecorder) RecordAction(ActionRecord) {}
