package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"voxelfarm.ai/internal/persistence/journal"
	"voxelfarm.ai/internal/persistence/statsdb"
)

func main() {
	var (
		dir       = flag.String("dir", "./data/journal", "journal dir containing journal-*.jsonl.zst")
		run       = flag.String("run", "", "only count entries of this run id (optional)")
		statsPath = flag.String("stats", "", "sqlite stats db to summarize instead of the journal (optional)")
	)
	flag.Parse()

	if *statsPath != "" {
		rows, err := statsdb.Summarize(context.Background(), *statsPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "summarize stats:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			if *run != "" && r.Run != *run {
				continue
			}
			fmt.Printf("run=%s mode=%s action=%s total=%d failed=%d stale=%d avg_latency_ms=%.1f\n",
				r.Run, r.Mode, r.Action, r.Total, r.Failed, r.Stale, r.AvgLatencyMs)
		}
		return
	}

	files, err := journal.ListFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal files:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files in", *dir)
		os.Exit(2)
	}

	rep := newReport(*run)
	for _, f := range files {
		if err := journal.ReadFile(f, rep.add); err != nil {
			fmt.Fprintln(os.Stderr, "read journal:", err)
			os.Exit(1)
		}
	}
	rep.print(os.Stdout)
}

type modeStats struct {
	Ticks   int
	Fatal   int
	Actions map[string]*actionStats
}

type actionStats struct {
	Total  int
	Failed int
	Stale  int
}

type report struct {
	run   string
	runs  map[string]bool
	modes map[string]*modeStats
}

func newReport(run string) *report {
	return &report{run: run, runs: map[string]bool{}, modes: map[string]*modeStats{}}
}

func (r *report) mode(name string) *modeStats {
	m := r.modes[name]
	if m == nil {
		m = &modeStats{Actions: map[string]*actionStats{}}
		r.modes[name] = m
	}
	return m
}

func (r *report) add(e journal.Entry) error {
	if r.run != "" && e.Run != r.run {
		return nil
	}
	r.runs[e.Run] = true
	m := r.mode(e.Mode)
	switch e.Kind {
	case journal.KindTick:
		m.Ticks++
		if e.Err != "" {
			m.Fatal++
		}
	case journal.KindAction:
		a := m.Actions[e.Action]
		if a == nil {
			a = &actionStats{}
			m.Actions[e.Action] = a
		}
		a.Total++
		if e.OK != nil && !*e.OK {
			a.Failed++
		}
		if e.Stale {
			a.Stale++
		}
	}
	return nil
}

func (r *report) print(w io.Writer) {
	fmt.Fprintf(w, "runs=%d modes=%d\n", len(r.runs), len(r.modes))
	modes := make([]string, 0, len(r.modes))
	for k := range r.modes {
		modes = append(modes, k)
	}
	sort.Strings(modes)
	for _, name := range modes {
		m := r.modes[name]
		fmt.Fprintf(w, "mode=%s ticks=%d fatal=%d\n", name, m.Ticks, m.Fatal)
		actions := make([]string, 0, len(m.Actions))
		for k := range m.Actions {
			actions = append(actions, k)
		}
		sort.Strings(actions)
		for _, an := range actions {
			a := m.Actions[an]
			fmt.Fprintf(w, "  action=%s total=%d failed=%d stale=%d fail_ratio=%.2f\n",
				an, a.Total, a.Failed, a.Stale, float64(a.Failed)/float64(a.Total))
		}
	}
}
