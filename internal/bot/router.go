package bot

import (
	"fmt"
	"strings"
	"time"
)

// Router turns chat commands into mode switches and replies.
type Router struct {
	s     *Scheduler
	self  string
	reply Replier
}

// Route attaches a router to the scheduler. Commands sent by self are ignored.
func (s *Scheduler) Route(self string, reply Replier) *Router {
	r := &Router{s: s, self: self, reply: reply}
	s.router = r
	return r
}

type modeReplies struct {
	mode    Mode
	already string
	enter   string
}

var commands = map[string]modeReplies{
	"farm":   {ModeHarvest, "I am already farming", "Let us farm!"},
	"carpet": {ModeCover, "I am already carpeting", "Let us carpet!"},
	"build":  {ModeConstruct, "I am already building", "Let us build!"},
}

// Handle must run on the scheduler's loop goroutine.
func (r *Router) Handle(from, text string) {
	if from == r.self {
		return
	}
	tok := strings.ToLower(strings.TrimSpace(text))
	r.s.log.Printf("command from=%s text=%q mode=%s", from, tok, r.s.mode)

	switch tok {
	case "idle", "stop":
		if r.s.mode == ModeIdle {
			d := r.s.idle.idleFor(r.s.env.Now())
			r.reply.Reply(from, fmt.Sprintf("I am already idle for %d seconds", int(d/time.Second)))
			return
		}
		r.reply.Reply(from, "Will wait...")
		r.s.Switch(ModeIdle)
	case "status":
		r.reply.Reply(from, fmt.Sprintf("I am in %s mode at step %s", r.s.mode, r.s.Step()))
	default:
		c, ok := commands[tok]
		if !ok {
			r.reply.Reply(from, "I do not understand")
			return
		}
		if r.s.mode == c.mode {
			r.reply.Reply(from, c.already)
			return
		}
		r.reply.Reply(from, c.enter)
		r.s.Switch(c.mode)
	}
}
