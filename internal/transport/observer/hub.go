package observer

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"colonynav.ai/internal/observerproto"
)

type joinRequest struct {
	SessionID string
	Out       chan []byte
	Every     int
	Agents    bool
}

type subscribeRequest struct {
	SessionID string
	Every     int
	Agents    bool
}

type session struct {
	out     chan []byte
	every   int
	agents  bool
	dropped uint64
}

// Hub fans CYCLE messages out to observer sessions. All session state is
// owned by the Run loop; handlers talk to it over channels.
type Hub struct {
	log *zap.Logger

	join  chan joinRequest
	leave chan string
	sub   chan subscribeRequest
	pub   chan observerproto.CycleMsg
	done  chan struct{}

	sessions map[string]*session
	last     *observerproto.CycleMsg
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		log:      logger.Named("observer"),
		join:     make(chan joinRequest, 16),
		leave:    make(chan string, 16),
		sub:      make(chan subscribeRequest, 16),
		pub:      make(chan observerproto.CycleMsg, 4),
		done:     make(chan struct{}),
		sessions: map[string]*session{},
	}
}

// Run serves the hub until ctx is done, then closes every session.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, s := range h.sessions {
				close(s.out)
				delete(h.sessions, id)
			}
			return nil
		case j := <-h.join:
			s := &session{out: j.Out, every: normalizeEvery(j.Every), agents: j.Agents}
			h.sessions[j.SessionID] = s
			h.log.Debug("session joined", zap.String("session", j.SessionID))
			if h.last != nil {
				h.send(j.SessionID, s, *h.last)
			}
		case id := <-h.leave:
			if s, ok := h.sessions[id]; ok {
				close(s.out)
				delete(h.sessions, id)
				h.log.Debug("session left", zap.String("session", id), zap.Uint64("dropped", s.dropped))
			}
		case r := <-h.sub:
			if s, ok := h.sessions[r.SessionID]; ok {
				s.every = normalizeEvery(r.Every)
				s.agents = r.Agents
			}
		case m := <-h.pub:
			h.last = &m
			h.broadcast(m)
		}
	}
}

// Publish hands a finished cycle to the hub. It never blocks the simulation:
// when the hub is behind or stopped the message is dropped.
func (h *Hub) Publish(m observerproto.CycleMsg) bool {
	m.Type = observerproto.TypeCycle
	m.ProtocolVersion = observerproto.Version
	select {
	case h.pub <- m:
		return true
	default:
		return false
	}
}

// Sessions is only safe to call from tests after Run returned.
func (h *Hub) Sessions() int { return len(h.sessions) }

func (h *Hub) broadcast(m observerproto.CycleMsg) {
	var full, slim []byte
	for id, s := range h.sessions {
		if m.Cycle%uint64(s.every) != 0 {
			continue
		}
		var b []byte
		if s.agents {
			if full == nil {
				full = h.marshal(m)
			}
			b = full
		} else {
			if slim == nil {
				c := m
				c.Agents = nil
				slim = h.marshal(c)
			}
			b = slim
		}
		h.deliver(id, s, b)
	}
}

func (h *Hub) send(id string, s *session, m observerproto.CycleMsg) {
	if !s.agents {
		m.Agents = nil
	}
	h.deliver(id, s, h.marshal(m))
}

func (h *Hub) deliver(id string, s *session, b []byte) {
	if b == nil {
		return
	}
	select {
	case s.out <- b:
	default:
		s.dropped++
		if s.dropped == 1 || s.dropped%100 == 0 {
			h.log.Warn("observer falling behind", zap.String("session", id), zap.Uint64("dropped", s.dropped))
		}
	}
}

func (h *Hub) marshal(m observerproto.CycleMsg) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		h.log.Error("marshal cycle message", zap.Error(err))
		return nil
	}
	return b
}

func normalizeEvery(n int) int {
	if n <= 0 {
		return 1
	}
	if n > 10000 {
		return 10000
	}
	return n
}
