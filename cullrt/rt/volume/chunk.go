package volume

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	ChunkWidth  = 16
	ChunkHeight = 16
	ChunkDepth  = 16

	ChunkVoxelCount = ChunkWidth * ChunkHeight * ChunkDepth // 4096

	Empty uint32 = 0
)

// Coord is a chunk position on the chunk grid, not in voxels.
type Coord struct {
	X, Y, Z int32
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Less orders coordinates by X, then Y, then Z.
func (c Coord) Less(o Coord) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

// Chunk is a dense 16x16x16 block of cells. A cell is 0 when empty and
// otherwise holds its opacity code.
//
// Cells are stored at x + W*y + W*H*z. The mesher and the GPU cull pass
// both rebuild positions from this ordering, so it must never change.
type Chunk struct {
	Coord Coord
	Cells []uint32
}

func NewChunk(coord Coord) *Chunk {
	return &Chunk{
		Coord: coord,
		Cells: make([]uint32, ChunkVoxelCount),
	}
}

// Index returns the linear cell index of local (x, y, z).
func Index(x, y, z int) int {
	return x + ChunkWidth*y + ChunkWidth*ChunkHeight*z
}

// Coords is the inverse of Index.
func Coords(i int) (x, y, z int) {
	x = i % ChunkWidth
	y = (i / ChunkWidth) % ChunkHeight
	z = (i / ChunkWidth) / ChunkHeight
	return
}

func InBounds(x, y, z int) bool {
	return x >= 0 && x < ChunkWidth && y >= 0 && y < ChunkHeight && z >= 0 && z < ChunkDepth
}

// Set writes a cell. Only generators are expected to call it; a chunk is
// treated as immutable once it has been meshed.
func (c *Chunk) Set(x, y, z int, value uint32) {
	if !InBounds(x, y, z) {
		panic(fmt.Sprintf("volume: cell (%d,%d,%d) outside chunk %s", x, y, z, c.Coord))
	}
	c.Cells[Index(x, y, z)] = value
}

func (c *Chunk) Get(x, y, z int) uint32 {
	if !InBounds(x, y, z) {
		return Empty
	}
	return c.Cells[Index(x, y, z)]
}

func (c *Chunk) SolidCount() int {
	n := 0
	for _, v := range c.Cells {
		if v != Empty {
			n++
		}
	}
	return n
}

// Origin is the world-space minimum corner of the chunk.
func (c *Chunk) Origin() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(c.Coord.X * ChunkWidth),
		float32(c.Coord.Y * ChunkHeight),
		float32(c.Coord.Z * ChunkDepth),
	}
}

// CellOrigin is the world-space minimum corner of the cell at linear index i.
func (c *Chunk) CellOrigin(i int) mgl32.Vec3 {
	x, y, z := Coords(i)
	o := c.Origin()
	return mgl32.Vec3{o.X() + float32(x), o.Y() + float32(y), o.Z() + float32(z)}
}

// WorldAABB returns the world-space bounds of the whole chunk.
func (c *Chunk) WorldAABB() [2]mgl32.Vec3 {
	o := c.Origin()
	return [2]mgl32.Vec3{o, o.Add(mgl32.Vec3{ChunkWidth, ChunkHeight, ChunkDepth})}
}

// Validate reports a malformed grid. A chunk built through NewChunk is
// always valid.
func (c *Chunk) Validate() error {
	if len(c.Cells) != ChunkVoxelCount {
		return fmt.Errorf("volume: chunk %s has %d cells, want %d", c.Coord, len(c.Cells), ChunkVoxelCount)
	}
	return nil
}
