// Command mapflow boots the engine with a control window, loads an optional
// project file, and runs the render loop. The immediate-mode UI, web API,
// and protocol frontends attach through the hooks exposed here.
package main

import (
	"flag"
	"log"
	"os"
	"runtime"
	"strconv"

	"github.com/MrLongNight/mapflow-go/control"
	"github.com/MrLongNight/mapflow-go/control/dmx"
	"github.com/MrLongNight/mapflow-go/engine"
	"github.com/MrLongNight/mapflow-go/engine/audio"
	"github.com/MrLongNight/mapflow-go/engine/module"
	"github.com/MrLongNight/mapflow-go/engine/output"
	"github.com/MrLongNight/mapflow-go/engine/project"
	"github.com/MrLongNight/mapflow-go/engine/renderer"
	"github.com/MrLongNight/mapflow-go/engine/window"
)

func init() {
	// Platform event processing must stay on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	projectPath := flag.String("project", "", "project file to open")
	profile := flag.Bool("profile", false, "log frame statistics")
	fpsCap := flag.Float64("fps", 0, "render frame cap (0 = uncapped)")
	flag.Parse()

	controlWindow, err := window.NewWindow(
		window.WithTitle("MapFlow"),
		window.WithSize(1600, 900),
	)
	if err != nil {
		log.Fatalf("failed to create control window: %v", err)
	}

	backend, err := renderer.NewBackend(controlWindow.SurfaceDescriptor())
	if err != nil {
		// Every GPU backend in the preference order failed; nothing to do.
		log.Fatalf("failed to initialize GPU: %v", err)
	}
	defer backend.Release()

	windows := window.NewManager(backend, controlWindow)
	defer windows.CloseAll()

	// Without a capture device the analyzer runs silent; triggers driven
	// by MIDI/OSC/shortcuts still work.
	analyzer := audio.NewAnalyzer(nil)

	options := []engine.EngineBuilderOption{
		engine.WithRenderFrameLimit(*fpsCap),
	}
	if *profile {
		options = append(options, engine.WithProfiling())
	}

	eng, err := engine.NewEngine(backend, windows, analyzer, options...)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}

	if *projectPath != "" {
		doc, err := project.Load(*projectPath)
		if err != nil {
			log.Fatalf("failed to open project: %v", err)
		}
		applyDocument(eng, doc)
		log.Printf("opened project %q", doc.Name)
	} else {
		seedDemo(eng)
	}

	if universe := os.Getenv("MAPFLOW_DMX_UNIVERSE"); universe != "" {
		startDMX(eng, universe)
	}

	eng.Run()
}

// applyDocument copies a loaded document into the running engine.
func applyDocument(eng engine.Engine, doc *project.Document) {
	*eng.Outputs() = *doc.OutputManager
	*eng.Modules() = *doc.ModuleManager
	*eng.Animator() = *doc.EffectAnimator
	*eng.Layers() = doc.LayerManager
}

// seedDemo builds a minimal beat-reactive module so a bare launch shows
// something on the first configured output.
func seedDemo(eng engine.Engine) {
	outputs := eng.Outputs()
	outputID := outputs.AddOutput("Demo Projector", output.NewCanvasRegion(0, 0, 1, 1), 1280, 720)

	moduleID := eng.Modules().CreateModule("Demo")
	mod := eng.Modules().Module(moduleID)

	trigger := mod.AddPart(module.Part{
		Type: module.PartTypeTrigger,
		Trigger: &module.TriggerSpec{
			Kind:         module.TriggerAudioFFT,
			Band:         audio.BandBass,
			Threshold:    0.5,
			OutputConfig: module.DefaultAudioTriggerOutputConfig(),
		},
	})
	source := mod.AddPart(module.Part{
		Type:   module.PartTypeSource,
		Source: &module.SourceSpec{Kind: module.SourceKindMediaFile, Path: "demo.mp4"},
	})
	layer := mod.AddPart(module.Part{
		Type:  module.PartTypeLayer,
		Layer: &module.LayerSpec{Opacity: 1},
	})
	out := mod.AddPart(module.Part{
		Type:   module.PartTypeOutput,
		Output: &module.OutputSpec{Kind: module.OutputKindProjector, ProjectorID: outputID},
	})

	for _, conn := range []module.Connection{
		{FromPart: trigger, FromSocket: 0, ToPart: source, ToSocket: 0},
		{FromPart: source, FromSocket: 0, ToPart: layer, ToSocket: 0},
		{FromPart: layer, FromSocket: 0, ToPart: out, ToSocket: 0},
	} {
		if err := mod.Connect(conn); err != nil {
			log.Printf("demo wiring: %v", err)
		}
	}
}

// startDMX streams the first layer's color to an sACN universe. Until the
// GPU readback sampler lands this uses a black sampler, which still lets
// fixtures verify addressing.
func startDMX(eng engine.Engine, universe string) {
	parsed, err := strconv.ParseUint(universe, 10, 16)
	if err != nil {
		log.Printf("dmx: invalid universe %q", universe)
		return
	}
	sender, err := dmx.NewSacnSender(uint16(parsed), "MapFlow")
	if err != nil {
		log.Printf("dmx: %v", err)
		return
	}
	bridge := dmx.NewBridge(sender, blackSampler{})
	bridge.SetFixtures([]dmx.FixtureMapping{{LayerPartID: 0, StartChannel: 1, Dimmer: 1}})
	bridge.Start()
}

type blackSampler struct{}

var _ control.ColorSampler = blackSampler{}

func (blackSampler) SampleAverageColor(uint64) (float32, float32, float32, error) {
	return 0, 0, 0, nil
}
