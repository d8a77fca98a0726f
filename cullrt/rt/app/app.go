package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gekko3d/chunkcull"
	"github.com/gekko3d/chunkcull/cullrt/rt/core"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu/opengl"
	"github.com/gekko3d/chunkcull/cullrt/rt/gpu/webgpu"
	"github.com/gekko3d/chunkcull/cullrt/rt/hud"

	"github.com/go-gl/glfw/v3.3/glfw"
)

type Backend string

const (
	BackendWebGPU Backend = "webgpu"
	BackendOpenGL Backend = "opengl"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case BackendWebGPU, BackendOpenGL:
		return b, nil
	}
	return "", fmt.Errorf("unknown backend %q, want %q or %q", s, BackendWebGPU, BackendOpenGL)
}

var hudColor = [4]float32{1, 1, 0, 1}

type App struct {
	Window  *glfw.Window
	Backend Backend
	Device  gpu.Device

	World        *chunkcull.World
	Camera       *core.CameraState
	Profiler     *core.Profiler
	TextRenderer *hud.TextRenderer

	Config     chunkcull.Config
	Log        chunkcull.Logger
	ClearColor [4]float64
	ShowHUD    bool

	Width, Height int
	LastTime      time.Time
	Now           func() time.Time
}

func NewApp(window *glfw.Window, backend Backend, cfg chunkcull.Config, log chunkcull.Logger) *App {
	if log == nil {
		log = chunkcull.NewNopLogger()
	}
	a := &App{
		Window:     window,
		Backend:    backend,
		Camera:     core.NewCameraState(),
		Profiler:   core.NewProfiler(),
		Config:     cfg,
		Log:        log.Named("app"),
		ClearColor: [4]float64{0.1, 0.1, 0.12, 1},
		ShowHUD:    true,
		Now:        time.Now,
	}
	if window != nil {
		a.Width, a.Height = window.GetFramebufferSize()
		a.Camera.SetViewport(a.Width, a.Height)
	}
	return a
}

// Init creates the backend device for the window, then loads the world.
func (a *App) Init() error {
	dev, err := a.createDevice()
	if err != nil {
		return fmt.Errorf("%s backend: %w", a.Backend, err)
	}
	return a.InitWithDevice(dev)
}

func (a *App) createDevice() (gpu.Device, error) {
	switch a.Backend {
	case BackendOpenGL:
		return opengl.New(a.Window)
	case BackendWebGPU, "":
		return webgpu.New(a.Window)
	}
	return nil, fmt.Errorf("unknown backend %q", a.Backend)
}

// InitWithDevice loads the world onto an existing device.
func (a *App) InitWithDevice(dev gpu.Device) error {
	if err := a.Config.Validate(); err != nil {
		return err
	}
	a.Device = dev

	tr, err := hud.NewDefaultTextRenderer(16)
	if err != nil {
		return err
	}
	a.TextRenderer = tr
	atlas := tr.AtlasImage
	if err := dev.SetOverlayAtlas(atlas.Pix, atlas.Bounds().Dx(), atlas.Bounds().Dy()); err != nil {
		return fmt.Errorf("overlay atlas: %w", err)
	}

	a.World = chunkcull.NewWorld(dev, a.Config, a.Log)
	a.Profiler.BeginScope("Load")
	err = a.World.LoadGrid(a.Config.GridRadius)
	a.Profiler.EndScope("Load")
	if err != nil {
		return err
	}
	a.Log.Infof("%s: %d chunks loaded in %v", a.Backend, len(a.World.Chunks()), a.Profiler.Scopes["Load"])
	return nil
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Width, a.Height = w, h
	a.Camera.SetViewport(w, h)
	if r, ok := a.Device.(interface{ Resize(int, int) error }); ok {
		if err := r.Resize(w, h); err != nil {
			a.Log.Errorf("resize: %v", err)
		}
	}
}

// HandleKey applies a key event and reports whether the app should quit.
func (a *App) HandleKey(key glfw.Key, action glfw.Action) bool {
	if action != glfw.Press {
		return false
	}
	r := a.World.Renderer()
	switch key {
	case glfw.KeyF:
		a.Log.Infof("filtering: %v", r.ToggleFiltering())
	case glfw.KeySpace:
		a.Log.Infof("frozen: %v", r.ToggleFrozen())
	case glfw.KeyH:
		a.ShowHUD = !a.ShowHUD
	case glfw.KeyP:
		a.Camera.Paused = !a.Camera.Paused
	case glfw.KeyEscape:
		return true
	}
	return false
}

// Update advances the world rotation by the wall time since the last call.
func (a *App) Update() {
	now := a.Now()
	if !a.LastTime.IsZero() {
		a.Camera.Advance(now.Sub(a.LastTime).Seconds())
	}
	a.LastTime = now
}

func (a *App) status() hud.Status {
	st := a.World.Stats()
	rc := a.World.Renderer().Config()
	return hud.Status{
		FPS:              a.Profiler.FPS,
		Backend:          string(a.Backend),
		FilteringEnabled: rc.FilteringEnabled,
		Frozen:           rc.Frozen,
		Chunks:           st.Chunks,
		VisibleChunks:    st.VisibleChunks,
		Dispatches:       st.Dispatches,
		IndirectDraws:    st.IndirectDraws,
		DirectDraws:      st.DirectDraws,
		BlendedDraws:     st.BlendedDraws,
		Quads:            st.Quads,
	}
}

func (a *App) overlay() []gpu.OverlayVertex {
	if !a.ShowHUD || a.TextRenderer == nil {
		return nil
	}
	items := a.status().Items(a.TextRenderer, 1, hudColor)
	if a.Config.Debug {
		y := 10 + float32(len(items))*a.TextRenderer.GetLineHeight(1)
		items = append(items, hud.TextItem{
			Text:     a.Profiler.GetStatsString(),
			Position: [2]float32{10, y},
			Scale:    1,
			Color:    hudColor,
		})
	}
	return a.TextRenderer.BuildVertices(items, a.Width, a.Height)
}

// Render records and submits one frame. Backend failures are logged and the
// frame is dropped.
func (a *App) Render() {
	a.Profiler.Reset()
	viewProj := a.Camera.ViewProj()

	a.Profiler.BeginScope("Record")
	f, err := a.Device.BeginFrame(gpu.FrameParams{ViewProj: viewProj, ClearColor: a.ClearColor})
	if err != nil {
		a.Log.Errorf("begin frame: %v", err)
		return
	}
	a.World.Render(f, viewProj)
	a.Profiler.EndScope("Record")

	st := a.World.Stats()
	a.Profiler.SetCount("Chunks", st.VisibleChunks)
	a.Profiler.SetCount("Dispatches", st.Dispatches)
	a.Profiler.SetCount("Draws", st.IndirectDraws+st.DirectDraws+st.BlendedDraws)

	if v := a.overlay(); len(v) > 0 {
		f.DrawOverlay(v)
	}

	a.Profiler.BeginScope("Submit")
	err = f.Submit()
	a.Profiler.EndScope("Submit")
	if err != nil {
		a.Log.Errorf("submit: %v", err)
	}
	a.Profiler.Tick(a.Now())
}

func (a *App) Release() {
	if a.World != nil {
		a.World.Release()
	}
	if r, ok := a.Device.(interface{ Release() }); ok {
		r.Release()
	}
}
