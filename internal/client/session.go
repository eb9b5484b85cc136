package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxelfarm.ai/internal/protocol"
	"voxelfarm.ai/internal/registry"
)

type Config struct {
	URL         string
	AgentName   string
	ResumeToken string
	MaxQueue    int
	Log         *log.Logger
}

// Session keeps one agent connected to the world, reconnecting with backoff,
// and turns observations into a View and action futures.
type Session struct {
	cfg Config
	log *log.Logger

	mu sync.RWMutex

	conn    *websocket.Conn
	writeMu sync.Mutex

	connected   bool
	agentID     string
	resumeToken string
	welcome     protocol.WelcomeMsg
	lastErr     string

	blocks    registry.Palette
	items     registry.Palette
	hasBlocks bool
	hasItems  bool

	view      *View
	ready     chan struct{}
	readyOnce sync.Once

	onCommand func(from, text string)

	pending  map[string]*pendingAction // by request id
	byTask   map[string]*pendingAction // by world task id
	canceled map[string]bool           // request ids abandoned before acknowledgement
	held     string
	idBase   int64
	seq      uint64
}

func NewSession(cfg Config) *Session {
	if cfg.AgentName == "" {
		cfg.AgentName = "farmbot"
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 16
	}
	if cfg.Log == nil {
		cfg.Log = log.New(io.Discard, "", 0)
	}
	return &Session{
		cfg:         cfg,
		log:         cfg.Log,
		resumeToken: cfg.ResumeToken,
		view:        &View{},
		ready:       make(chan struct{}),
		pending:     map[string]*pendingAction{},
		byTask:      map[string]*pendingAction{},
		canceled:    map[string]bool{},
		idBase:      time.Now().UnixMilli(),
	}
}

// Ready is closed once the agent is welcomed, both palettes are known and a
// first observation has been applied.
func (s *Session) Ready() <-chan struct{} { return s.ready }

func (s *Session) View() *View { return s.view }

func (s *Session) Palettes() (blocks, items registry.Palette) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks, s.items
}

func (s *Session) AgentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentID
}

// ResumeToken is the token to present on the next connection.
func (s *Session) ResumeToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resumeToken
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetCommandHandler installs the receiver of whispered commands. Messages that
// arrive before a handler is installed are dropped.
func (s *Session) SetCommandHandler(fn func(from, text string)) {
	s.mu.Lock()
	s.onCommand = fn
	s.mu.Unlock()
}

// Run connects and reconnects until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.disconnect)
	defer stop()

	backoff := 200 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return nil
		}
		welcomed, err := s.connectAndReadLoop(ctx)
		s.dropped(err)
		if ctx.Err() != nil {
			return nil
		}
		if welcomed {
			backoff = 200 * time.Millisecond
		}
		s.log.Printf("connection lost url=%s err=%v retry_in=%s", s.cfg.URL, err, backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
		}
	}
}

func (s *Session) disconnect() {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

func (s *Session) dropped(err error) {
	s.disconnect()
	s.mu.Lock()
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
	s.view.reset()
	s.failAll(ErrDisconnected)
}

func (s *Session) connectAndReadLoop(ctx context.Context) (welcomed bool, err error) {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := d.DialContext(ctx, s.cfg.URL, http.Header{})
	if err != nil {
		return false, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       s.cfg.AgentName,
		Capabilities: protocol.HelloCapabilities{
			DeltaVoxels: true,
			MaxQueue:    s.cfg.MaxQueue,
		},
	}
	if rt := strings.TrimSpace(s.ResumeToken()); rt != "" {
		hello.Auth = &protocol.HelloAuth{Token: rt}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return false, err
	}

	s.mu.Lock()
	s.conn = conn
	s.lastErr = ""
	s.mu.Unlock()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return welcomed, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		if base.ProtocolVersion != "" && !protocol.IsSupportedVersion(base.ProtocolVersion) {
			s.log.Printf("skipping %s with protocol_version=%s", base.Type, base.ProtocolVersion)
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				s.log.Printf("bad WELCOME: %v", err)
				continue
			}
			welcomed = true
			s.mu.Lock()
			s.welcome = w
			s.agentID = w.AgentID
			s.resumeToken = w.ResumeToken
			s.connected = true
			s.mu.Unlock()
			s.log.Printf("WELCOME agent_id=%s obs_radius=%d", w.AgentID, w.WorldParams.ObsRadius)

		case protocol.TypeCatalog:
			var c protocol.CatalogMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				s.log.Printf("bad CATALOG: %v", err)
				continue
			}
			s.handleCatalog(c)

		case protocol.TypeObs:
			var o protocol.ObsMsg
			if err := json.Unmarshal(msg, &o); err != nil {
				s.log.Printf("bad OBS: %v", err)
				continue
			}
			s.handleObs(o)
		}
	}
}

func (s *Session) handleCatalog(c protocol.CatalogMsg) {
	name := strings.ToLower(strings.TrimSpace(c.Name))
	if name != protocol.CatalogBlockPalette && name != protocol.CatalogItemPalette {
		return
	}
	names, err := c.Palette()
	if err != nil {
		s.log.Printf("bad %s catalog: %v", name, err)
		return
	}
	p := registry.NewPalette(names)
	s.mu.Lock()
	if name == protocol.CatalogBlockPalette {
		s.blocks, s.hasBlocks = p, true
	} else {
		s.items, s.hasItems = p, true
	}
	s.mu.Unlock()
	if name == protocol.CatalogItemPalette {
		s.view.setItems(p)
	}
	s.log.Printf("CATALOG name=%s digest=%s count=%d", name, c.Digest, len(names))
}

func (s *Session) handleObs(o protocol.ObsMsg) {
	if err := s.view.apply(o); err != nil {
		s.log.Printf("dropping observation: %v", err)
		return
	}
	s.mu.Lock()
	if o.AgentID != "" {
		s.agentID = o.AgentID
	}
	if o.Equipment.MainHand != "" && o.Equipment.MainHand != "NONE" {
		s.held = o.Equipment.MainHand
	}
	ready := s.connected && s.hasBlocks && s.hasItems
	s.mu.Unlock()

	for _, ev := range o.Events {
		s.handleEvent(ev)
	}
	if ready {
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

func (s *Session) handleEvent(ev protocol.Event) {
	switch ev.Type() {
	case protocol.EventActionResult:
		s.acknowledge(ev.Ref(), ev.OK(), ev.TaskID(), ev.Code(), ev.Message())
	case protocol.EventTaskDone:
		s.finishTask(ev.TaskID(), nil)
	case protocol.EventTaskFail:
		s.finishTask(ev.TaskID(), newActionError(ev.Code(), ev.Message()))
	case protocol.EventChat:
		if ev.Channel() != protocol.ChannelWhisper {
			return
		}
		s.mu.RLock()
		fn := s.onCommand
		self := s.agentID
		s.mu.RUnlock()
		if ev.From() == self {
			return
		}
		if fn == nil {
			s.log.Printf("no command handler, dropping whisper from=%s", ev.From())
			return
		}
		fn(ev.From(), ev.Text())
	}
}

// send writes one ACT stamped with the latest observed tick.
func (s *Session) send(instants []protocol.InstantReq, tasks []protocol.TaskReq, cancel []string) error {
	s.mu.RLock()
	conn := s.conn
	agentID := s.agentID
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            s.view.Tick(),
		AgentID:         agentID,
		Instants:        instants,
		Tasks:           tasks,
		Cancel:          cancel,
	}
	b, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("marshal act: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
