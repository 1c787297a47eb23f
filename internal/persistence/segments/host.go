package segments

import (
	"errors"
	"fmt"
)

var (
	ErrSlotLimit = errors.New("too many active slots")
	ErrTooLarge  = errors.New("payload exceeds slot capacity")
	ErrNoSlot    = errors.New("slot id out of range")
)

// Host is the external slot store. Slots activated during cycle N are
// readable during cycle N+1 only; writes are immediate.
type Host interface {
	ActivateSlots(cycle uint64, ids []int) error
	ReadSlot(cycle uint64, id int) ([]byte, bool)
	WriteSlot(id int, data []byte) error
}

type Limits struct {
	SlotCount    int
	SlotCapacity int
	MaxActive    int
}

func DefaultLimits() Limits {
	return Limits{SlotCount: 100, SlotCapacity: 100 * 1024, MaxActive: 10}
}

// CheckActivation enforces the host-side ceiling on concurrently active slots.
func (l Limits) CheckActivation(ids []int) error {
	if len(ids) > l.MaxActive {
		return fmt.Errorf("%d slots requested, max %d: %w", len(ids), l.MaxActive, ErrSlotLimit)
	}
	for _, id := range ids {
		if err := l.CheckSlot(id); err != nil {
			return err
		}
	}
	return nil
}

func (l Limits) CheckSlot(id int) error {
	if id < 0 || id >= l.SlotCount {
		return fmt.Errorf("slot %d: %w", id, ErrNoSlot)
	}
	return nil
}

func (l Limits) CheckWrite(id int, data []byte) error {
	if err := l.CheckSlot(id); err != nil {
		return err
	}
	if len(data) > l.SlotCapacity {
		return fmt.Errorf("slot %d: %d bytes > %d: %w", id, len(data), l.SlotCapacity, ErrTooLarge)
	}
	return nil
}

// MemoryHost keeps slots in process memory. It is the host used by tests and
// by simulations without a database.
type MemoryHost struct {
	limits Limits
	data   map[int][]byte
	window ActivationWindow

	activations [][]int
}

func NewMemoryHost(limits Limits) *MemoryHost {
	return &MemoryHost{
		limits: limits,
		data:   map[int][]byte{},
	}
}

func (h *MemoryHost) ActivateSlots(cycle uint64, ids []int) error {
	if err := h.limits.CheckActivation(ids); err != nil {
		return err
	}
	h.window.Activate(cycle, ids)
	h.activations = append(h.activations, append([]int(nil), ids...))
	return nil
}

func (h *MemoryHost) ReadSlot(cycle uint64, id int) ([]byte, bool) {
	if !h.window.Visible(cycle, id) {
		return nil, false
	}
	return h.data[id], true
}

func (h *MemoryHost) WriteSlot(id int, data []byte) error {
	if err := h.limits.CheckWrite(id, data); err != nil {
		return err
	}
	h.data[id] = append([]byte(nil), data...)
	return nil
}

// Raw returns the stored bytes of a slot regardless of activation.
func (h *MemoryHost) Raw(id int) []byte { return h.data[id] }

// Activations lists every ActivateSlots call in order.
func (h *MemoryHost) Activations() [][]int { return h.activations }

// ActivationWindow remembers the last two activation sets so hosts can answer
// "was this slot activated on the previous cycle".
type ActivationWindow struct {
	prev, last activation
}

type activation struct {
	cycle uint64
	ids   map[int]bool
}

func (w *ActivationWindow) Activate(cycle uint64, ids []int) {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	if w.last.ids != nil && w.last.cycle < cycle {
		w.prev = w.last
	}
	w.last = activation{cycle: cycle, ids: set}
}

func (w *ActivationWindow) Visible(cycle uint64, id int) bool {
	if cycle == 0 {
		return false
	}
	for _, a := range [2]activation{w.prev, w.last} {
		if a.ids != nil && a.cycle == cycle-1 && a.ids[id] {
			return true
		}
	}
	return false
}
