package bot

import (
	"context"
	"io"
	"log"
	"math/rand"
	"time"

	"voxelfarm.ai/internal/config"
	"voxelfarm.ai/internal/geom"
)

const inboxSize = 64

type command struct {
	from string
	text string
}

type completion struct {
	epoch  uint64
	mode   Mode
	action ActionKind
	pos    geom.Vec3
	issued time.Time
	err    error
}

// Scheduler owns the four mode machines and runs exactly one of them at a
// time. Everything except Command is confined to the goroutine running Run.
type Scheduler struct {
	env Env
	log *log.Logger
	rec Recorder

	mode     Mode
	machines [modeCount]machine
	idle     *idleMachine
	router   *Router

	epoch uint64
	ticks uint64

	inbox chan any
	timer *time.Timer
	again bool
}

type Option func(*Scheduler)

func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.rec = r
		}
	}
}

func New(cfg config.Config, env Env, opts ...Option) *Scheduler {
	if env.Log == nil {
		env.Log = log.New(io.Discard, "", 0)
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	if env.Rand == nil {
		env.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Scheduler{
		env:   env,
		log:   env.Log,
		rec:   nopRecorder{},
		inbox: make(chan any, inboxSize),
	}
	s.idle = newIdle(cfg.Timing.IdleInterval())
	s.machines[ModeIdle] = s.idle
	s.machines[ModeHarvest] = newHarvest(cfg.Harvest, cfg.Timing)
	s.machines[ModeConstruct] = &constructMachine{}
	s.machines[ModeCover] = newCover(cfg.Cover)
	for _, m := range s.machines {
		m.reset()
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) Mode() Mode { return s.mode }

// Step is the name of the active machine's current step.
func (s *Scheduler) Step() string { return s.machines[s.mode].stepName() }

func (s *Scheduler) Epoch() uint64 { return s.epoch }

// Switch makes m the active mode. Every machine goes back to its initial
// step, the timer is cancelled and in-flight completions become stale.
func (s *Scheduler) Switch(m Mode) {
	for _, mc := range s.machines {
		mc.reset()
	}
	s.stopTimer()
	if c, ok := s.env.Actions.(Canceler); ok {
		c.CancelPending()
	}
	s.epoch++
	s.mode = m
	s.again = true
	s.log.Printf("switch mode=%s epoch=%d", m, s.epoch)
}

// Tick executes exactly one step of the active machine.
func (s *Scheduler) Tick() (Next, error) {
	if s.mode < 0 || s.mode >= modeCount {
		return Next{}, &FatalError{Mode: s.mode, Step: "?", Reason: "unknown mode"}
	}
	mc := s.machines[s.mode]
	from := mc.stepName()
	next, err := mc.step(&s.env)
	s.ticks++

	rec := TickRecord{
		Time:  s.env.Now(),
		Epoch: s.epoch,
		Tick:  s.ticks,
		Mode:  s.mode.String(),
		From:  from,
		To:    mc.stepName(),
		Next:  next.String(),
	}
	if err != nil {
		rec.Err = err.Error()
	}
	s.rec.RecordTick(rec)
	return next, err
}

// Command hands an inbound chat message to the run loop. Safe for concurrent
// use; messages are dropped when the inbox is full.
func (s *Scheduler) Command(from, text string) {
	select {
	case s.inbox <- command{from: from, text: text}:
	default:
		s.log.Printf("inbox full, dropping command from=%s", from)
	}
}

// Run starts in Idle and drives the active machine until ctx is done or a
// step fails fatally.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.stopTimer()

	s.Switch(ModeIdle)
	for {
		if s.again {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-s.inbox:
				s.dispatch(ev)
				continue
			default:
			}
			s.again = false
			if err := s.runTick(ctx); err != nil {
				return err
			}
			continue
		}

		var wake <-chan time.Time
		if s.timer != nil {
			wake = s.timer.C
		}
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.inbox:
			s.dispatch(ev)
		case <-wake:
			s.timer = nil
			if err := s.runTick(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) error {
	next, err := s.Tick()
	if err != nil {
		s.log.Printf("tick failed mode=%s: %v", s.mode, err)
		return err
	}
	switch {
	case next.IsAgain():
		s.again = true
	case next.IsAfter():
		s.arm(next.Delay)
	case next.IsAwait():
		s.watch(ctx, next)
	}
	return nil
}

func (s *Scheduler) dispatch(ev any) {
	switch ev := ev.(type) {
	case command:
		if s.router != nil {
			s.router.Handle(ev.from, ev.text)
		}
	case completion:
		s.complete(ev)
	}
}

// complete records the outcome on the machine that issued the future and
// requests an immediate tick. Completions from an earlier epoch are dropped.
func (s *Scheduler) complete(c completion) {
	stale := c.epoch != s.epoch
	rec := ActionRecord{
		Time:   s.env.Now(),
		Epoch:  c.epoch,
		Mode:   c.mode.String(),
		Action: string(c.action),
		Pos:    c.pos.ToArray(),
		OK:     c.err == nil,
		Stale:  stale,
	}
	if !c.issued.IsZero() {
		rec.Latency = rec.Time.Sub(c.issued)
	}
	if c.err != nil {
		rec.Err = c.err.Error()
	}
	s.rec.RecordAction(rec)

	if stale {
		s.log.Printf("stale completion dropped action=%s epoch=%d current=%d", c.action, c.epoch, s.epoch)
		return
	}
	s.machines[c.mode].resolve(c.err)
	s.again = true
}

// watch posts the future's outcome to the inbox once it resolves. A watcher
// outliving a switch delivers a stale completion; Run's return stops it.
func (s *Scheduler) watch(ctx context.Context, next Next) {
	c := completion{epoch: s.epoch, mode: s.mode, action: next.Action, pos: next.Pos, issued: s.env.Now()}
	f := next.Future
	go func() {
		select {
		case <-f.Done():
		case <-ctx.Done():
			return
		}
		c.err = f.Err()
		select {
		case s.inbox <- c:
		case <-ctx.Done():
		}
	}()
}

func (s *Scheduler) arm(d time.Duration) {
	s.stopTimer()
	s.timer = time.NewTimer(d)
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
