package chunkcull

import (
	"fmt"

	"github.com/gekko3d/chunkcull/cullrt/rt/mesh"
	"github.com/gekko3d/chunkcull/cullrt/rt/render"
	"github.com/gekko3d/chunkcull/cullrt/rt/volume"
)

// MaxDensity keeps random chunks well under mesh.MaxSolidCells. At this
// density the expected solid count sits about nine standard deviations
// below the limit.
const MaxDensity = 0.9 * float64(mesh.MaxSolidCells) / volume.ChunkVoxelCount

// Config describes the demo world and the initial renderer flags.
type Config struct {
	// GridRadius loads chunks at x, z in [-GridRadius, GridRadius) with y = 0.
	GridRadius int
	Density    float64
	Seed       int64

	FilteringEnabled bool
	Frozen           bool
	// ChunkFrustumCulling skips whole chunks whose bounds are outside the
	// frustum before any per-quad work is issued.
	ChunkFrustumCulling bool

	Debug bool
}

func DefaultConfig() Config {
	return Config{
		GridRadius:          2,
		Density:             volume.DefaultDensity,
		Seed:                volume.DefaultSeed,
		FilteringEnabled:    true,
		ChunkFrustumCulling: true,
	}
}

func (c Config) Validate() error {
	if c.GridRadius < 0 {
		return fmt.Errorf("grid radius must not be negative, got %d", c.GridRadius)
	}
	if c.Density < 0 || c.Density > MaxDensity {
		return fmt.Errorf("density must be in [0, %.2f], got %g", MaxDensity, c.Density)
	}
	return nil
}

func (c Config) RenderConfig() render.Config {
	return render.Config{FilteringEnabled: c.FilteringEnabled, Frozen: c.Frozen}
}
