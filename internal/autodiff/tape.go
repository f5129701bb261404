// Package autodiff records operation calls on a tape and runs reverse-mode
// differentiation over them.
//
// Usage:
//
//	tape := autodiff.NewTape()
//	tape.StartRecording()
//	h, _ := tape.Forward(ops.NewVectorAddOp(cfg), x, y, w)
//	out, _ := tape.Forward(ops.NewRowSummationOp(cfg), h, y, w)
//	grads, _ := tape.Backward(out, outputGrad)
//	gx := grads[x]
package autodiff

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/checkpoint"
	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/metrics"
)

// entry is one recorded forward call.
type entry struct {
	op     ops.Operation
	inputs []*matrix.Matrix
	output *matrix.Matrix

	handle checkpoint.Handle
	stored bool
}

// Tape records forward calls and computes gradients during the backward pass.
// A Tape is not safe for concurrent use; operations parallelize internally.
type Tape struct {
	entries   []entry
	recording bool
	recorder  *metrics.Recorder
}

// NewTape creates an empty tape that is not recording.
func NewTape() *Tape {
	return &Tape{entries: make([]entry, 0, 64)}
}

// SetRecorder makes the tape report every forward and backward call to r.
func (t *Tape) SetRecorder(r *metrics.Recorder) {
	t.recorder = r
}

// StartRecording enables operation recording.
func (t *Tape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *Tape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *Tape) IsRecording() bool {
	return t.recording
}

// NoGrad runs fn with recording disabled and then restores the previous state.
func (t *Tape) NoGrad(fn func()) {
	was := t.recording
	t.recording = false
	defer func() {
		t.recording = was
	}()
	fn()
}

// Forward runs op and records the call when the tape is recording.
func (t *Tape) Forward(op ops.Operation, inputs ...*matrix.Matrix) (*matrix.Matrix, error) {
	name := ops.NameOf(op)
	start := time.Now()
	out, err := op.Forward(inputs...)
	if err != nil {
		return nil, err
	}
	t.recorder.Since(name, metrics.Forward, start)

	if t.recording {
		args := make([]*matrix.Matrix, len(inputs))
		copy(args, inputs)
		t.entries = append(t.entries, entry{op: op, inputs: args, output: out})
		log.Debug().Str("op", name).Int("entry", len(t.entries)-1).Msg("tape forward")
	}
	return out, nil
}

// Backward computes gradients for every matrix that contributed to output by
// walking the tape in reverse. Gradients of a matrix used several times are
// summed. The result maps each input matrix to dL/d(input); output maps to
// outputGrad.
func (t *Tape) Backward(output, outputGrad *matrix.Matrix) (map[*matrix.Matrix]*matrix.Matrix, error) {
	if output == nil || outputGrad == nil {
		return nil, fmt.Errorf("tape backward: nil output or gradient: %w", ops.ErrGradientShape)
	}
	grads := make(map[*matrix.Matrix]*matrix.Matrix)
	if len(t.entries) == 0 {
		return grads, nil
	}
	if err := matrix.SameShape(output, outputGrad); err != nil {
		return nil, fmt.Errorf("tape backward: %w", err)
	}

	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads[output] = outputGrad
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := &t.entries[i]
		g, ok := grads[e.output]
		if !ok {
			continue
		}

		name := ops.NameOf(e.op)
		start := time.Now()
		inputGrads, err := e.op.Backward(g)
		if err != nil {
			return nil, fmt.Errorf("tape entry %d: %w", i, err)
		}
		t.recorder.Since(name, metrics.Backward, start)
		log.Debug().Str("op", name).Int("entry", i).Msg("tape backward")

		if err := accumulate(grads, e.inputs, inputGrads); err != nil {
			return nil, fmt.Errorf("tape entry %d (%s): %w", i, name, err)
		}
	}
	return grads, nil
}

// accumulate adds each input gradient to grads. Stored gradients are never
// modified in place so callers may keep references to them.
func accumulate(grads map[*matrix.Matrix]*matrix.Matrix, inputs, inputGrads []*matrix.Matrix) error {
	for j, input := range inputs {
		if j >= len(inputGrads) {
			break
		}
		g := inputGrads[j]
		if g == nil {
			continue
		}
		existing, ok := grads[input]
		if !ok {
			grads[input] = g
			continue
		}
		sum := existing.Clone()
		if err := sum.AddInPlace(g); err != nil {
			return err
		}
		grads[input] = sum
	}
	return nil
}

// Store hands the retained state of every recorded operation that supports
// checkpointing to arena. Backward fails until Restore is called.
func (t *Tape) Store(arena *checkpoint.Arena) error {
	for i := range t.entries {
		e := &t.entries[i]
		c, ok := e.op.(ops.Checkpointer)
		if !ok || e.stored {
			continue
		}
		h, err := c.Store(arena)
		if err != nil {
			return fmt.Errorf("tape entry %d: %w", i, err)
		}
		e.handle, e.stored = h, true
	}
	log.Debug().Int("entries", len(t.entries)).Int("arena", arena.Len()).Msg("tape stored")
	return nil
}

// Restore takes back every state stored by Store.
func (t *Tape) Restore(arena *checkpoint.Arena) error {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.stored {
			continue
		}
		if err := e.op.(ops.Checkpointer).Restore(arena, e.handle); err != nil {
			return fmt.Errorf("tape entry %d: %w", i, err)
		}
		e.stored = false
	}
	return nil
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *Tape) Clear() {
	t.entries = t.entries[:0]
}

// NumOps returns the number of recorded operations.
func (t *Tape) NumOps() int {
	return len(t.entries)
}
