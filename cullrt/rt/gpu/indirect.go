package gpu

import (
	"encoding/binary"
	"fmt"
)

// DrawArgsSize is the byte size of a DrawElementsIndirectCommand.
const DrawArgsSize = 20

// DrawElementsIndirectCommand is read directly by the GPU's indexed
// draw-indirect path. The field order and 4-byte packing are a wire
// format shared with the cull shaders and the graphics API.
type DrawElementsIndirectCommand struct {
	Count         uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	BaseInstance  uint32
}

// CulledDrawArgs is the record a cull pass leaves behind for count indices.
func CulledDrawArgs(count uint32) DrawElementsIndirectCommand {
	return DrawElementsIndirectCommand{Count: count, InstanceCount: 1}
}

func (c DrawElementsIndirectCommand) Bytes() []byte {
	buf := make([]byte, DrawArgsSize)
	binary.LittleEndian.PutUint32(buf[0:], c.Count)
	binary.LittleEndian.PutUint32(buf[4:], c.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:], c.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:], uint32(c.BaseVertex))
	binary.LittleEndian.PutUint32(buf[16:], c.BaseInstance)
	return buf
}

func ParseDrawArgs(b []byte) (DrawElementsIndirectCommand, error) {
	if len(b) < DrawArgsSize {
		return DrawElementsIndirectCommand{}, fmt.Errorf("gpu: draw args need %d bytes, got %d", DrawArgsSize, len(b))
	}
	return DrawElementsIndirectCommand{
		Count:         binary.LittleEndian.Uint32(b[0:]),
		InstanceCount: binary.LittleEndian.Uint32(b[4:]),
		FirstIndex:    binary.LittleEndian.Uint32(b[8:]),
		BaseVertex:    int32(binary.LittleEndian.Uint32(b[12:])),
		BaseInstance:  binary.LittleEndian.Uint32(b[16:]),
	}, nil
}
