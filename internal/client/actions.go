package client

import (
	"fmt"

	"voxelfarm.ai/internal/bot"
	"voxelfarm.ai/internal/future"
	"voxelfarm.ai/internal/geom"
	"voxelfarm.ai/internal/protocol"
	"voxelfarm.ai/internal/registry"
)

type pendingAction struct {
	id     string
	kind   string
	task   bool
	taskID string
	item   string
	p      *future.Promise
}

var _ bot.Actions = (*Session)(nil)
var _ bot.World = (*View)(nil)

func (s *Session) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d_%d", prefix, s.idBase, s.seq)
}

// track registers a request and returns its future. Must hold s.mu.
func (s *Session) track(kind string, task bool) *pendingAction {
	prefix := "I"
	if task {
		prefix = "K"
	}
	pa := &pendingAction{id: s.nextID(prefix), kind: kind, task: task, p: future.New()}
	s.pending[pa.id] = pa
	return pa
}

func (s *Session) untrack(pa *pendingAction) {
	s.mu.Lock()
	delete(s.pending, pa.id)
	if pa.taskID != "" {
		delete(s.byTask, pa.taskID)
	}
	s.mu.Unlock()
}

func (s *Session) submitTask(req protocol.TaskReq) future.Future {
	s.mu.Lock()
	pa := s.track(req.Type, true)
	s.mu.Unlock()
	req.ID = pa.id
	if err := s.send(nil, []protocol.TaskReq{req}, nil); err != nil {
		s.untrack(pa)
		pa.p.Resolve(fmt.Errorf("%s: %w", req.Type, err))
	}
	return pa.p
}

func (s *Session) submitInstant(req protocol.InstantReq, item string) future.Future {
	s.mu.Lock()
	pa := s.track(req.Type, false)
	pa.item = item
	s.mu.Unlock()
	req.ID = pa.id
	if err := s.send([]protocol.InstantReq{req}, nil, nil); err != nil {
		s.untrack(pa)
		pa.p.Resolve(fmt.Errorf("%s: %w", req.Type, err))
	}
	return pa.p
}

func (s *Session) NavigateTo(goal geom.Vec3, tolerance float64) future.Future {
	return s.submitTask(protocol.TaskReq{Type: protocol.TaskMoveTo, Target: goal.ToArray(), Tolerance: tolerance})
}

func (s *Session) Dig(b bot.Block) future.Future {
	return s.submitTask(protocol.TaskReq{Type: protocol.TaskMine, BlockPos: b.Pos.ToArray()})
}

// Place puts the item in hand against face of b.
func (s *Session) Place(b bot.Block, face geom.Vec3) future.Future {
	s.mu.RLock()
	item := s.held
	s.mu.RUnlock()
	return s.submitTask(protocol.TaskReq{Type: protocol.TaskPlace, BlockPos: b.Pos.ToArray(), ItemID: item, Face: face.ToArray()})
}

func (s *Session) Equip(item registry.ItemID, _ bot.Slot) future.Future {
	s.mu.RLock()
	name := s.items.Name(uint16(item))
	s.mu.RUnlock()
	if name == "" {
		return future.Resolved(&ActionError{Code: protocol.ErrBadRequest, Message: fmt.Sprintf("unknown item id %d", item)})
	}
	return s.submitInstant(protocol.InstantReq{Type: protocol.InstantEquip, ItemID: name, Hand: protocol.HandMain}, name)
}

// Emote swings an arm; the world's answer is not awaited.
func (s *Session) Emote(side bot.Side) {
	hand := protocol.HandLeft
	if side == bot.SideRight {
		hand = protocol.HandRight
	}
	s.mu.Lock()
	id := s.nextID("I")
	s.mu.Unlock()
	if err := s.send([]protocol.InstantReq{{ID: id, Type: protocol.InstantSwing, Hand: hand}}, nil, nil); err != nil {
		s.log.Printf("swing failed: %v", err)
	}
}

// Reply whispers text to another agent.
func (s *Session) Reply(to, text string) {
	s.mu.Lock()
	id := s.nextID("I")
	s.mu.Unlock()
	req := protocol.InstantReq{ID: id, Type: protocol.InstantWhisper, Channel: protocol.ChannelWhisper, To: to, Text: text}
	if err := s.send([]protocol.InstantReq{req}, nil, nil); err != nil {
		s.log.Printf("reply to=%s failed: %v", to, err)
	}
}

// CancelPending fails every outstanding action with ErrCanceled and asks the
// world to stop the tasks it already accepted.
func (s *Session) CancelPending() {
	s.mu.Lock()
	var taskIDs []string
	var fail []*pendingAction
	for id, pa := range s.pending {
		if pa.task && pa.taskID == "" {
			s.canceled[id] = true
		}
		fail = append(fail, pa)
	}
	for tid := range s.byTask {
		taskIDs = append(taskIDs, tid)
	}
	s.pending = map[string]*pendingAction{}
	s.byTask = map[string]*pendingAction{}
	s.mu.Unlock()

	for _, pa := range fail {
		pa.p.Resolve(ErrCanceled)
	}
	if len(taskIDs) > 0 {
		if err := s.send(nil, nil, taskIDs); err != nil {
			s.log.Printf("cancel tasks=%v failed: %v", taskIDs, err)
		}
	}
}

// acknowledge handles ACTION_RESULT for a request. Accepted tasks keep waiting
// for TASK_DONE or TASK_FAIL under the world's task id.
func (s *Session) acknowledge(ref string, ok bool, taskID, code, msg string) {
	s.mu.Lock()
	if s.canceled[ref] {
		delete(s.canceled, ref)
		s.mu.Unlock()
		if ok && taskID != "" {
			if err := s.send(nil, nil, []string{taskID}); err != nil {
				s.log.Printf("cancel task=%s failed: %v", taskID, err)
			}
		}
		return
	}
	pa := s.pending[ref]
	if pa == nil {
		s.mu.Unlock()
		return
	}
	if ok && pa.task && taskID != "" {
		pa.taskID = taskID
		s.byTask[taskID] = pa
		s.mu.Unlock()
		return
	}
	delete(s.pending, ref)
	if ok && pa.kind == protocol.InstantEquip {
		s.held = pa.item
	}
	s.mu.Unlock()

	if ok {
		pa.p.Resolve(nil)
		return
	}
	pa.p.Resolve(newActionError(code, msg))
}

func (s *Session) finishTask(taskID string, err error) {
	s.mu.Lock()
	pa := s.byTask[taskID]
	if pa != nil {
		delete(s.byTask, taskID)
		delete(s.pending, pa.id)
	}
	s.mu.Unlock()
	if pa != nil {
		pa.p.Resolve(err)
	}
}

func (s *Session) failAll(err error) {
	s.mu.Lock()
	fail := make([]*pendingAction, 0, len(s.pending))
	for _, pa := range s.pending {
		fail = append(fail, pa)
	}
	s.pending = map[string]*pendingAction{}
	s.byTask = map[string]*pendingAction{}
	s.canceled = map[string]bool{}
	s.mu.Unlock()
	for _, pa := range fail {
		pa.p.Resolve(err)
	}
}
