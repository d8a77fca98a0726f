package main

import (
	"flag"
	"runtime"

	"github.com/gekko3d/chunkcull"
	"github.com/gekko3d/chunkcull/cullrt/rt/app"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	cfg := chunkcull.DefaultConfig()

	backendName := flag.String("backend", string(app.BackendWebGPU), "Graphics backend: webgpu or opengl")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging and profiler overlay")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Chunk generator seed")
	flag.Float64Var(&cfg.Density, "density", cfg.Density, "Probability that a cell is solid")
	flag.IntVar(&cfg.GridRadius, "radius", cfg.GridRadius, "Load chunks at x, z in [-radius, radius)")
	flag.BoolVar(&cfg.FilteringEnabled, "filter", cfg.FilteringEnabled, "Start with GPU quad filtering enabled")
	flag.BoolVar(&cfg.ChunkFrustumCulling, "chunk-cull", cfg.ChunkFrustumCulling, "Skip chunks outside the frustum on the CPU")
	width := flag.Int("width", 1280, "Window width")
	height := flag.Int("height", 720, "Window height")
	flag.Parse()

	log := chunkcull.NewLogger(cfg)

	backend, err := app.ParseBackend(*backendName)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("%v", err)
		return
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	switch backend {
	case app.BackendOpenGL:
		glfw.WindowHint(glfw.ContextVersionMajor, 4)
		glfw.WindowHint(glfw.ContextVersionMinor, 3)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	default:
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	}
	window, err := glfw.CreateWindow(*width, *height, "Chunk Cull ("+string(backend)+")", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, backend, cfg, log)
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if application.HandleKey(key, action) {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}
