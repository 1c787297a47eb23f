package segments

import (
	"encoding/json"
	"errors"
	"testing"

	"colonynav.ai/internal/sim/cycle"
)

type doc struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func newTestPager(t *testing.T) (*Pager, *MemoryHost) {
	t.Helper()
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	t.Cleanup(codec.Close)
	host := NewMemoryHost(DefaultLimits())
	return NewPager(host, codec, DefaultConfig(), nil), host
}

func TestPager_OneCycleLatency(t *testing.T) {
	p, _ := newTestPager(t)
	clk := cycle.NewClock(0)

	if err := p.Save(4, doc{Name: "a", N: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := p.Tick(clk.Advance()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	var got *doc
	p.RequestLoad(4, func(raw json.RawMessage) {
		var d doc
		if err := json.Unmarshal(raw, &d); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = &d
	})
	if err := p.Tick(clk.Advance()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got != nil {
		t.Fatalf("delivered in the activation cycle")
	}
	if err := p.Tick(clk.Advance()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got == nil || got.Name != "a" || got.N != 1 {
		t.Fatalf("got=%+v want {a 1}", got)
	}
}

func TestPager_ActivationCeiling(t *testing.T) {
	p, host := newTestPager(t)
	clk := cycle.NewClock(0)

	served := map[int]int{}
	for slot := 0; slot < 25; slot++ {
		slot := slot
		p.RequestLoad(slot, func(json.RawMessage) { served[slot]++ })
	}
	for i := 0; i < 6; i++ {
		if err := p.Tick(clk.Advance()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	for i, ids := range host.Activations() {
		if len(ids) > 10 {
			t.Fatalf("activation %d has %d slots", i, len(ids))
		}
	}
	if len(served) != 25 {
		t.Fatalf("served %d slots, want 25", len(served))
	}
	for slot, n := range served {
		if n != 1 {
			t.Fatalf("slot %d served %d times", slot, n)
		}
	}
	if s := p.Stats(); s.QueuedLoads != 0 || s.Delivered != 25 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestPager_DuplicateRequestsShareOneActivation(t *testing.T) {
	p, host := newTestPager(t)
	clk := cycle.NewClock(0)

	calls := 0
	for i := 0; i < 3; i++ {
		p.RequestLoad(7, func(json.RawMessage) { calls++ })
	}
	_ = p.Tick(clk.Advance())
	_ = p.Tick(clk.Advance())
	if calls != 3 {
		t.Fatalf("calls=%d want 3", calls)
	}
	if first := host.Activations()[0]; len(first) != 1 || first[0] != 7 {
		t.Fatalf("first activation=%v want [7]", first)
	}
}

func TestPager_CorruptPayloadRecovery(t *testing.T) {
	p, host := newTestPager(t)
	clk := cycle.NewClock(0)

	if err := host.WriteSlot(3, []byte("definitely not zstd")); err != nil {
		t.Fatalf("seed corrupt: %v", err)
	}

	delivered := false
	var gotRaw json.RawMessage = json.RawMessage(`"sentinel"`)
	p.RequestLoad(3, func(raw json.RawMessage) {
		delivered = true
		gotRaw = raw
	})
	_ = p.Tick(clk.Advance())
	_ = p.Tick(clk.Advance())
	if !delivered || gotRaw != nil {
		t.Fatalf("delivered=%v raw=%q want nil delivery", delivered, gotRaw)
	}
	if len(host.Raw(3)) != 0 {
		t.Fatalf("corrupt slot not reset")
	}
	if p.Stats().CorruptResets != 1 {
		t.Fatalf("corrupt resets=%d want 1", p.Stats().CorruptResets)
	}

	if err := p.Save(3, doc{Name: "fresh"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = p.Tick(clk.Advance())
	if p.Stats().WriteFailures != 0 || len(host.Raw(3)) == 0 {
		t.Fatalf("write after reset failed: %+v", p.Stats())
	}

	var again doc
	p.RequestLoad(3, func(raw json.RawMessage) { _ = json.Unmarshal(raw, &again) })
	_ = p.Tick(clk.Advance())
	_ = p.Tick(clk.Advance())
	if again.Name != "fresh" {
		t.Fatalf("reload=%+v want fresh", again)
	}
}

func TestPager_DoubleTickRejected(t *testing.T) {
	p, _ := newTestPager(t)
	clk := cycle.NewClock(0)

	p.RequestLoad(1, func(json.RawMessage) {})
	c := clk.Advance()
	if err := p.Tick(c); err != nil {
		t.Fatalf("tick: %v", err)
	}
	p.RequestLoad(2, func(json.RawMessage) {})
	if err := p.Tick(c); !errors.Is(err, ErrAlreadyTicked) {
		t.Fatalf("err=%v want ErrAlreadyTicked", err)
	}
	if got := p.Stats().QueuedLoads; got != 2 {
		t.Fatalf("queued loads=%d want 2 (nothing drained)", got)
	}
	if err := p.Tick(cycle.At(c.Number())); !errors.Is(err, ErrAlreadyTicked) {
		t.Fatalf("detached token for same cycle err=%v want ErrAlreadyTicked", err)
	}
}

func TestPager_FlushCapAndFIFO(t *testing.T) {
	p, host := newTestPager(t)
	clk := cycle.NewClock(0)

	for slot := 0; slot < 12; slot++ {
		if err := p.Save(slot, doc{N: slot}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	_ = p.Tick(clk.Advance())
	for slot := 0; slot < 9; slot++ {
		if len(host.Raw(slot)) == 0 {
			t.Fatalf("slot %d not flushed in first cycle", slot)
		}
	}
	for slot := 9; slot < 12; slot++ {
		if len(host.Raw(slot)) != 0 {
			t.Fatalf("slot %d flushed beyond the per-cycle cap", slot)
		}
	}
	_ = p.Tick(clk.Advance())
	if got := p.Stats(); got.QueuedSaves != 0 || got.Written != 12 {
		t.Fatalf("stats=%+v", got)
	}
}

func TestPager_SaveCoalescesAndShadowsReads(t *testing.T) {
	p, _ := newTestPager(t)
	clk := cycle.NewClock(0)

	for i := 0; i < 15; i++ {
		_ = p.Save(i, doc{N: i})
	}
	_ = p.Save(14, doc{Name: "latest", N: 99})
	if got := p.Stats().QueuedSaves; got != 15 {
		t.Fatalf("queued saves=%d want 15", got)
	}

	var seen doc
	p.RequestLoad(14, func(raw json.RawMessage) { _ = json.Unmarshal(raw, &seen) })
	_ = p.Tick(clk.Advance())
	_ = p.Tick(clk.Advance())
	if seen.Name != "latest" || seen.N != 99 {
		t.Fatalf("seen=%+v want latest queued write", seen)
	}
}

func TestMemoryHost_Limits(t *testing.T) {
	h := NewMemoryHost(Limits{SlotCount: 4, SlotCapacity: 8, MaxActive: 2})
	if err := h.ActivateSlots(1, []int{0, 1, 2}); !errors.Is(err, ErrSlotLimit) {
		t.Fatalf("err=%v want ErrSlotLimit", err)
	}
	if err := h.WriteSlot(9, nil); !errors.Is(err, ErrNoSlot) {
		t.Fatalf("err=%v want ErrNoSlot", err)
	}
	if err := h.WriteSlot(1, make([]byte, 9)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err=%v want ErrTooLarge", err)
	}
	_ = h.WriteSlot(1, []byte("x"))
	_ = h.ActivateSlots(1, []int{1})
	if _, ok := h.ReadSlot(1, 1); ok {
		t.Fatalf("slot readable in its activation cycle")
	}
	if b, ok := h.ReadSlot(2, 1); !ok || string(b) != "x" {
		t.Fatalf("read=%q ok=%v", b, ok)
	}
	_ = h.ActivateSlots(2, nil)
	if _, ok := h.ReadSlot(3, 1); ok {
		t.Fatalf("slot still readable two cycles after activation")
	}
}
