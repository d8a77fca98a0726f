package soft

import (
	"errors"
	"fmt"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
)

var errSubmitted = errors.New("soft: frame already submitted")

type frame struct {
	dev       *Device
	cmds      []func(*frameState) error
	submitted bool
}

type frameState struct {
	dispatches      int
	draws           []DrawCall
	overlayVertices int
}

func (f *frame) DispatchCull(d *gpu.CullDispatch) {
	dispatch := *d
	f.cmds = append(f.cmds, func(s *frameState) error {
		if err := f.dev.runCull(&dispatch); err != nil {
			return err
		}
		s.dispatches++
		return nil
	})
}

func (f *frame) DrawIndexed(input gpu.VertexInput, indices gpu.Buffer, count uint32) {
	f.drawDirect(input, indices, count, false)
}

func (f *frame) DrawIndexedBlended(input gpu.VertexInput, indices gpu.Buffer, count uint32) {
	f.drawDirect(input, indices, count, true)
}

func (f *frame) drawDirect(input gpu.VertexInput, indices gpu.Buffer, count uint32, blended bool) {
	f.cmds = append(f.cmds, func(s *frameState) error {
		if err := checkInput(input); err != nil {
			return err
		}
		b, err := asBuffer(indices)
		if err != nil {
			return err
		}
		idx, err := readIndices(b, count)
		if err != nil {
			return err
		}
		s.draws = append(s.draws, DrawCall{Blended: blended, Input: input, Indices: idx})
		return nil
	})
}

func (f *frame) DrawIndexedIndirect(input gpu.VertexInput, indices gpu.Buffer, args gpu.Buffer) {
	f.cmds = append(f.cmds, func(s *frameState) error {
		if err := checkInput(input); err != nil {
			return err
		}
		a, err := asBuffer(args)
		if err != nil {
			return err
		}
		cmd, err := gpu.ParseDrawArgs(a.data)
		if err != nil {
			return err
		}
		b, err := asBuffer(indices)
		if err != nil {
			return err
		}
		idx, err := readIndices(b, cmd.FirstIndex+cmd.Count)
		if err != nil {
			return err
		}
		s.draws = append(s.draws, DrawCall{
			Indirect: true,
			Input:    input,
			Indices:  idx[cmd.FirstIndex:],
			Args:     cmd,
		})
		return nil
	})
}

func (f *frame) DrawOverlay(vertices []gpu.OverlayVertex) {
	n := len(vertices)
	f.cmds = append(f.cmds, func(s *frameState) error {
		s.overlayVertices += n
		return nil
	})
}

// Submit runs the recorded commands in order. The first failing command
// aborts the frame.
func (f *frame) Submit() error {
	if f.submitted {
		return errSubmitted
	}
	f.submitted = true

	var s frameState
	for i, cmd := range f.cmds {
		if err := cmd(&s); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}

	f.dev.mu.Lock()
	f.dev.frames++
	f.dev.dispatches += s.dispatches
	f.dev.draws = s.draws
	f.dev.overlayVertices = s.overlayVertices
	f.dev.mu.Unlock()
	return nil
}

func checkInput(input gpu.VertexInput) error {
	v, ok := input.(*vertexInput)
	if !ok || v == nil {
		return fmt.Errorf("soft: %T is not a soft vertex input", input)
	}
	if v.released {
		return fmt.Errorf("soft: vertex input: %w", gpu.ErrReleased)
	}
	return nil
}
