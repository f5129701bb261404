package ops

import (
	"fmt"

	"github.com/born-ml/polargrad/internal/checkpoint"
)

// group is a set of operation instances a wrapper created in one forward call.
type group struct {
	members []Operation
}

// groupCheckpoint records the handles of every member that was stored.
type groupCheckpoint struct {
	handles []checkpoint.Handle
	stored  []bool
}

// Store stores every checkpointable member and returns one handle for the group.
func (g *group) Store(arena *checkpoint.Arena) (checkpoint.Handle, error) {
	if g.members == nil {
		return 0, fmt.Errorf("store: %w", ErrNoForward)
	}
	cp := &groupCheckpoint{
		handles: make([]checkpoint.Handle, len(g.members)),
		stored:  make([]bool, len(g.members)),
	}
	for k, op := range g.members {
		c, ok := op.(Checkpointer)
		if !ok {
			continue
		}
		h, err := c.Store(arena)
		if err != nil {
			return 0, fmt.Errorf("store member %d: %w", k, err)
		}
		cp.handles[k], cp.stored[k] = h, true
	}
	return arena.Put(cp), nil
}

// Restore restores every member stored under h.
func (g *group) Restore(arena *checkpoint.Arena, h checkpoint.Handle) error {
	v, err := arena.Get(h)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	cp, ok := v.(*groupCheckpoint)
	if !ok || len(cp.handles) != len(g.members) {
		return fmt.Errorf("restore: %T: %w", v, ErrCheckpointType)
	}
	for k, op := range g.members {
		if !cp.stored[k] {
			continue
		}
		if err := op.(Checkpointer).Restore(arena, cp.handles[k]); err != nil {
			return fmt.Errorf("restore member %d: %w", k, err)
		}
	}
	return nil
}
