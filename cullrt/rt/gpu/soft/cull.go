package soft

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// runCull executes one dispatch of the cull program. Each task is one
// workgroup of gpu.CullWorkgroupSize invocations; survivors claim their
// output slot from a shared atomic counter, so the order of quads in the
// compacted buffer depends on scheduling.
func (d *Device) runCull(c *gpu.CullDispatch) error {
	var bufs [4]*Buffer
	for slot, buf := range c.Bindings() {
		b, err := asBuffer(buf)
		if err != nil {
			return fmt.Errorf("cull binding %d: %w", slot, err)
		}
		bufs[slot] = b
	}
	src := bufs[gpu.CullBindingSourceIndices]
	dst := bufs[gpu.CullBindingCompactedIndices]
	pos := bufs[gpu.CullBindingPositions]
	args := bufs[gpu.CullBindingDrawArgs]

	if len(args.data) < gpu.DrawArgsSize {
		return fmt.Errorf("cull: draw args buffer %q is %d bytes", args.label, len(args.data))
	}
	need := uint64(c.QuadCount) * gpu.WordsPerQuad * 4
	if need > uint64(len(src.data)) || need > uint64(len(dst.data)) {
		return fmt.Errorf("cull: %d quads overrun index buffers (%d/%d bytes)", c.QuadCount, len(src.data), len(dst.data))
	}

	copy(args.data, gpu.CulledDrawArgs(0).Bytes())
	if c.QuadCount == 0 {
		return nil
	}

	var (
		count    atomic.Uint32
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	groups := c.Workgroups()
	for g := uint32(0); g < groups; g++ {
		wg.Add(1)
		group := g
		d.pool.SubmitTask(worker.Task{
			ID: int(group),
			Do: func() (any, error) {
				defer wg.Done()
				for lane := uint32(0); lane < gpu.CullWorkgroupSize; lane++ {
					q := group*gpu.CullWorkgroupSize + lane
					if q >= c.QuadCount {
						break
					}
					if err := cullQuad(c.ViewProj, q, src.data, dst.data, pos.data, &count); err != nil {
						errOnce.Do(func() { firstErr = err })
						return nil, err
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	binary.LittleEndian.PutUint32(args.data[0:], count.Load())
	return nil
}

func cullQuad(viewProj mgl32.Mat4, q uint32, src, dst, pos []byte, count *atomic.Uint32) error {
	var words [gpu.WordsPerQuad]uint32
	base := q * gpu.WordsPerQuad
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(src[(base+uint32(i))*4:])
	}

	var pts [6]mgl32.Vec3
	for i, idx := range gpu.UnpackQuadWords(words) {
		off := int(idx) * 12
		if off+12 > len(pos) {
			return fmt.Errorf("cull: quad %d references vertex %d past the position buffer", q, idx)
		}
		pts[i] = mgl32.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(pos[off:])),
			math.Float32frombits(binary.LittleEndian.Uint32(pos[off+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(pos[off+8:])),
		}
	}

	if !gpu.QuadVisible(viewProj, pts) {
		return nil
	}

	out := (count.Add(6) - 6) / 2
	for i, w := range words {
		binary.LittleEndian.PutUint32(dst[(out+uint32(i))*4:], w)
	}
	return nil
}
