package hud

import (
	"fmt"
)

// Status is what the overlay reports each frame.
type Status struct {
	FPS              float64
	Backend          string
	FilteringEnabled bool
	Frozen           bool
	Chunks           int
	VisibleChunks    int
	Dispatches       int
	IndirectDraws    int
	DirectDraws      int
	BlendedDraws     int
	Quads            int
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Lines formats s for display, one fact per line.
func (s Status) Lines() []string {
	return []string{
		fmt.Sprintf("%s  %.1f fps", s.Backend, s.FPS),
		fmt.Sprintf("filtering [F]: %s  frozen [Space]: %s", onOff(s.FilteringEnabled), onOff(s.Frozen)),
		fmt.Sprintf("chunks: %d/%d  quads: %d", s.VisibleChunks, s.Chunks, s.Quads),
		fmt.Sprintf("cull dispatches: %d  draws: %d indirect, %d direct, %d blended", s.Dispatches, s.IndirectDraws, s.DirectDraws, s.BlendedDraws),
	}
}

// Items lays the status lines out from the top-left corner.
func (s Status) Items(tr *TextRenderer, scale float32, color [4]float32) []TextItem {
	lines := s.Lines()
	items := make([]TextItem, len(lines))
	lh := tr.GetLineHeight(scale)
	for i, l := range lines {
		items[i] = TextItem{
			Text:     l,
			Position: [2]float32{10, 10 + float32(i)*lh},
			Scale:    scale,
			Color:    color,
		}
	}
	return items
}
