package hud

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const atlasSize = 512

type TextItem struct {
	Text     string
	Position [2]float32 // pixels from the top-left corner
	Scale    float32
	Color    [4]float32
}

type GlyphInfo struct {
	UVMin [2]float32
	UVMax [2]float32
	Size  [2]float32
	Off   [2]float32
	Adv   float32
}

// TextRenderer rasterizes printable ASCII into an alpha atlas once and
// lays out strings as textured quads.
type TextRenderer struct {
	AtlasImage *image.Alpha
	Glyphs     map[rune]GlyphInfo
	Face       font.Face
}

// NewDefaultTextRenderer uses the Go Regular font bundled with x/image.
func NewDefaultTextRenderer(fontSize float64) (*TextRenderer, error) {
	return NewTextRenderer(goregular.TTF, fontSize)
}

func NewTextRenderer(fontBytes []byte, fontSize float64) (*TextRenderer, error) {
	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}

	atlas := image.NewAlpha(image.Rect(0, 0, atlasSize, atlasSize))
	glyphs := make(map[rune]GlyphInfo)

	x, y := 2, 2
	rowHeight := 0
	for r := rune(32); r < 127; r++ {
		bounds, mask, maskp, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		w, h := bounds.Dx(), bounds.Dy()

		if x+w >= atlasSize {
			x = 2
			y += rowHeight + 4
			rowHeight = 0
		}
		if y+h >= atlasSize {
			break
		}

		draw.Draw(atlas, image.Rect(x, y, x+w, y+h), mask, maskp, draw.Src)

		glyphs[r] = GlyphInfo{
			UVMin: [2]float32{float32(x) / atlasSize, float32(y) / atlasSize},
			UVMax: [2]float32{float32(x+w) / atlasSize, float32(y+h) / atlasSize},
			Size:  [2]float32{float32(w), float32(h)},
			Off:   [2]float32{float32(bounds.Min.X), float32(bounds.Min.Y)},
			Adv:   float32(adv) / 64.0,
		}

		x += w + 4
		rowHeight = max(rowHeight, h)
	}

	return &TextRenderer{AtlasImage: atlas, Glyphs: glyphs, Face: face}, nil
}

// BuildVertices lays out items as two triangles per glyph in normalized
// device coordinates for a screenW x screenH target.
func (tr *TextRenderer) BuildVertices(items []TextItem, screenW, screenH int) []gpu.OverlayVertex {
	vertices := make([]gpu.OverlayVertex, 0, len(items)*6*16)
	if screenW <= 0 || screenH <= 0 {
		return vertices
	}

	sw, sh := float32(screenW), float32(screenH)
	metrics := tr.Face.Metrics()
	ascent := float32(metrics.Ascent.Ceil())
	lineHeight := float32(metrics.Height.Ceil())

	for _, item := range items {
		scale := item.Scale
		if scale == 0 {
			scale = 1
		}
		startX := item.Position[0]
		posX := startX
		posY := item.Position[1] + ascent*scale

		for _, r := range item.Text {
			if r == '\n' {
				posX = startX
				posY += lineHeight * scale
				continue
			}
			g, ok := tr.Glyphs[r]
			if !ok {
				continue
			}

			x0 := (posX+g.Off[0]*scale)/sw*2.0 - 1.0
			y0 := 1.0 - (posY+g.Off[1]*scale)/sh*2.0
			x1 := (posX+(g.Off[0]+g.Size[0])*scale)/sw*2.0 - 1.0
			y1 := 1.0 - (posY+(g.Off[1]+g.Size[1])*scale)/sh*2.0

			v := func(x, y, u, w float32) gpu.OverlayVertex {
				return gpu.OverlayVertex{Pos: [2]float32{x, y}, UV: [2]float32{u, w}, Color: item.Color}
			}
			vertices = append(vertices,
				v(x0, y0, g.UVMin[0], g.UVMin[1]),
				v(x1, y0, g.UVMax[0], g.UVMin[1]),
				v(x0, y1, g.UVMin[0], g.UVMax[1]),
				v(x1, y0, g.UVMax[0], g.UVMin[1]),
				v(x1, y1, g.UVMax[0], g.UVMax[1]),
				v(x0, y1, g.UVMin[0], g.UVMax[1]),
			)

			posX += g.Adv * scale
		}
	}
	return vertices
}

func (tr *TextRenderer) GetLineHeight(scale float32) float32 {
	if tr == nil {
		return 0
	}
	return float32(tr.Face.Metrics().Height.Ceil()) * scale
}
