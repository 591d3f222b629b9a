// Package engine is the per-frame orchestrator: it owns the render thread,
// walks evaluation through decode sync, per-output rendering, post passes,
// and presentation, and drains commands posted from other threads at frame
// start.
package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/MrLongNight/mapflow-go/common"
	"github.com/MrLongNight/mapflow-go/engine/anim"
	"github.com/MrLongNight/mapflow-go/engine/audio"
	"github.com/MrLongNight/mapflow-go/engine/media"
	"github.com/MrLongNight/mapflow-go/engine/module"
	"github.com/MrLongNight/mapflow-go/engine/output"
	"github.com/MrLongNight/mapflow-go/engine/profiler"
	"github.com/MrLongNight/mapflow-go/engine/renderer"
	"github.com/MrLongNight/mapflow-go/engine/renderer/compositor"
	"github.com/MrLongNight/mapflow-go/engine/renderer/effects"
	"github.com/MrLongNight/mapflow-go/engine/renderer/mesh"
	"github.com/MrLongNight/mapflow-go/engine/renderer/postfx"
	"github.com/MrLongNight/mapflow-go/engine/renderer/texture_pool"
	"github.com/MrLongNight/mapflow-go/engine/window"
)

// UIPass renders the immediate-mode UI onto the control window. The
// embedding application provides it; the engine only schedules it.
type UIPass func(encoder *wgpu.CommandEncoder, target *wgpu.TextureView)

// Engine is the main entry point: it owns the render loop and coordinates
// every subsystem per frame.
type Engine interface {
	// Run starts the render loop on the calling goroutine (which must be
	// the main thread for platform event processing). Blocks until Quit
	// or until the control window closes.
	Run()

	// Quit signals the render loop to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Post enqueues a closure for execution on the render thread at the
	// next frame start. Async tasks never touch the GPU directly; they
	// post commands here.
	//
	// Parameters:
	//   - command: the closure to run on the render thread
	Post(command func())

	// Modules returns the module graph manager.
	Modules() *module.Manager

	// Outputs returns the output configuration manager.
	Outputs() *output.Manager

	// Triggers returns the trigger system, for external event injection.
	Triggers() *module.TriggerSystem

	// EffectChain returns the post-process chain.
	EffectChain() *effects.Chain

	// Layers returns the compositing layer stack.
	Layers() *compositor.Stack

	// Animator returns the effect parameter animator.
	Animator() *anim.EffectAnimator

	// PreviewView returns the control-window preview texture for an
	// output, or nil when none is registered yet. Safe from the UI.
	//
	// Parameters:
	//   - id: the output ID
	//
	// Returns:
	//   - *wgpu.TextureView: the preview texture view
	PreviewView(id output.ID) *wgpu.TextureView

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional frame rate cap in frames per
	// second. Pass 0 to uncap (vsync still applies per present mode).
	SetRenderFrameLimit(fps float64)
}

// outputTargets holds one output's offscreen chain: the canvas the mesh
// renderer draws into, the effect output, and the post intermediate.
type outputTargets struct {
	width, height uint32

	canvas     *wgpu.Texture
	canvasView *wgpu.TextureView
	effect     *wgpu.Texture
	effectView *wgpu.TextureView
	post       *wgpu.Texture
	postView   *wgpu.TextureView
}

func (t *outputTargets) release() {
	for _, view := range []*wgpu.TextureView{t.canvasView, t.effectView, t.postView} {
		if view != nil {
			view.Release()
		}
	}
	for _, tex := range []*wgpu.Texture{t.canvas, t.effect, t.post} {
		if tex != nil {
			tex.Release()
		}
	}
}

// previewSize is the control-window thumbnail resolution.
const previewSize = 256

type previewTarget struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

type engine struct {
	quitChannel chan struct{}
	quitOnce    sync.Once
	wg          sync.WaitGroup

	commands chan func()

	backend renderer.Backend
	windows *window.Manager
	pool    texture_pool.Pool
	warp    *mesh.Renderer
	comp    *compositor.Compositor
	chain   *effects.Chain
	post    *postfx.OutputPost

	analyzer  audio.Analyzer
	triggers  *module.TriggerSystem
	evaluator *module.Evaluator
	modules   *module.Manager
	outputs   *output.Manager
	layers    compositor.Stack
	players   *media.PlayerRegistry
	uploads   *media.UploadWorker
	animator  *anim.EffectAnimator

	uiPass     UIPass
	prePresent func(id output.ID)

	profiler         *profiler.Profiler
	profilingEnabled bool
	renderFrameLimit time.Duration

	frameIndex uint64
	lastFrame  time.Time

	targets map[output.ID]*outputTargets

	previewMu sync.Mutex
	previews  map[output.ID]*previewTarget
	blit      *effects.FullscreenPass

	// gridUploaded tracks which layer grid patterns are resident.
	gridUploaded map[uint64][2]uint32
}

var _ Engine = &engine{}

// NewEngine wires the engine from its subsystems. The backend, window
// manager, and analyzer are required; everything else is constructed here.
//
// Parameters:
//   - backend: the GPU backend
//   - windows: the window manager holding the control window
//   - analyzer: the audio analyzer (a silent one is fine)
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine
//   - error: GPU pipeline construction failure
func NewEngine(backend renderer.Backend, windows *window.Manager, analyzer audio.Analyzer, options ...EngineBuilderOption) (Engine, error) {
	if backend == nil {
		panic("engine: NewEngine requires a non-nil Backend")
	}
	if windows == nil {
		panic("engine: NewEngine requires a non-nil window Manager")
	}
	if analyzer == nil {
		panic("engine: NewEngine requires a non-nil Analyzer")
	}

	format := backend.SurfaceFormat()

	warp, err := mesh.NewRenderer(backend.Device(), backend.Queue(), format)
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh renderer: %w", err)
	}
	comp, err := compositor.NewCompositor(backend.Device(), backend.Queue(), format)
	if err != nil {
		return nil, fmt.Errorf("failed to create compositor: %w", err)
	}
	library := effects.NewLutLibrary()
	chain, err := effects.NewChain(backend.Device(), backend.Queue(), format, library)
	if err != nil {
		return nil, fmt.Errorf("failed to create effect chain: %w", err)
	}
	post, err := postfx.NewOutputPost(backend.Device(), backend.Queue(), format)
	if err != nil {
		return nil, fmt.Errorf("failed to create output post passes: %w", err)
	}
	blit, err := effects.NewFullscreenPass(backend.Device(), backend.Queue(), format, "Preview Blit", effects.BlitFragment, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview blit: %w", err)
	}

	pool := texture_pool.NewPool(backend)

	e := &engine{
		quitChannel:  make(chan struct{}),
		commands:     make(chan func(), 256),
		backend:      backend,
		windows:      windows,
		pool:         pool,
		warp:         warp,
		comp:         comp,
		chain:        chain,
		post:         post,
		analyzer:     analyzer,
		triggers:     module.NewTriggerSystem(),
		evaluator:    module.NewEvaluator(),
		modules:      module.NewManager(),
		outputs:      output.NewManager(1920, 1080),
		players:      media.NewPlayerRegistry(),
		uploads:      media.NewUploadWorker(pool),
		animator:     anim.NewEffectAnimator(),
		profiler:     profiler.NewProfiler(),
		targets:      make(map[output.ID]*outputTargets),
		previews:     make(map[output.ID]*previewTarget),
		blit:         blit,
		gridUploaded: make(map[uint64][2]uint32),
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

func (e *engine) Modules() *module.Manager        { return e.modules }
func (e *engine) Outputs() *output.Manager        { return e.outputs }
func (e *engine) Triggers() *module.TriggerSystem { return e.triggers }
func (e *engine) EffectChain() *effects.Chain     { return e.chain }
func (e *engine) Layers() *compositor.Stack       { return &e.layers }
func (e *engine) Animator() *anim.EffectAnimator  { return e.animator }

func (e *engine) EnableProfiler()  { e.profilingEnabled = true }
func (e *engine) DisableProfiler() { e.profilingEnabled = false }

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Post(command func()) {
	select {
	case e.commands <- command:
	case <-e.quitChannel:
	}
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) PreviewView(id output.ID) *wgpu.TextureView {
	e.previewMu.Lock()
	defer e.previewMu.Unlock()
	if preview, ok := e.previews[id]; ok {
		return preview.view
	}
	return nil
}

// Run drives the frame loop until Quit or control-window close. It owns
// all GPU submission; the upload worker hands frames over through the
// texture pool's serialized write path.
func (e *engine) Run() {
	e.uploads.Start()
	defer e.uploads.Stop()
	defer e.players.ReleaseAll()

	e.lastFrame = time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		window.PollEvents()
		control := e.windows.ControlContext()
		if control == nil || !control.Window.IsRunning() {
			e.Quit()
			return
		}

		frameStart := time.Now()
		e.frame()

		if e.profilingEnabled {
			e.profiler.Tick()
		}

		if e.renderFrameLimit > 0 {
			if elapsed := time.Since(frameStart); elapsed < e.renderFrameLimit {
				time.Sleep(e.renderFrameLimit - elapsed)
			}
		}
	}
}

// frame runs one scheduler iteration: commands, analysis, evaluation,
// upload drain, and per-window rendering. A panic inside the frame is
// contained so one bad graph cannot take the process down mid-show.
func (e *engine) frame() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: frame %d recovered from panic: %v", e.frameIndex, r)
		}
	}()

	now := time.Now()
	dt := now.Sub(e.lastFrame)
	e.lastFrame = now
	e.frameIndex++

	// Drain commands posted from other threads.
	for {
		select {
		case command := <-e.commands:
			command()
		default:
			goto drained
		}
	}
drained:

	evalStart := time.Now()

	// 1. Audio analysis feeds triggers and the evaluator.
	analysis := e.analyzer.Tick()
	e.triggers.Update(e.modules, analysis, dt.Seconds())
	e.evaluator.UpdateAudio(analysis)

	// 2. Evaluate the module graphs.
	result := e.evaluator.EvaluateAll(e.modules)
	e.applySourceCommands(result)

	// Advance effect parameter animation on the render thread.
	for target, value := range e.animator.Advance(dt.Seconds()) {
		e.applyAnimatedParam(target, value)
	}

	evalElapsed := time.Since(evalStart)

	// 3. Texture housekeeping and a non-blocking upload drain.
	e.pool.BeginFrame(e.frameIndex)
	e.uploads.DrainAvailable()
	e.warp.BeginFrame()

	// 4. Window set follows the output configuration.
	if err := e.windows.SyncWindows(e.outputs); err != nil {
		log.Printf("engine: window sync: %v", err)
	}

	renderStart := time.Now()
	opsByOutput := groupOps(result.RenderOps)

	var presentElapsed time.Duration
	for _, ctx := range e.windows.Live() {
		if ctx.OutputID == window.ControlWindowID {
			continue
		}
		presentElapsed += e.renderOutput(ctx, opsByOutput[ctx.OutputID])
	}
	renderElapsed := time.Since(renderStart) - presentElapsed

	// 5. Control window: UI pass plus output thumbnails.
	if control := e.windows.ControlContext(); control != nil && control.Window.IsRunning() {
		presentElapsed += e.renderControl(control)
	}

	e.profiler.AddStageTimes(evalElapsed, renderElapsed, presentElapsed)
}

// applySourceCommands engages sources activated this frame: media files
// get decoders and pipelines; other source kinds are engaged by their
// input frontends which watch the same commands.
func (e *engine) applySourceCommands(result module.EvalResult) {
	for partID, cmd := range result.SourceCommands {
		if cmd.Kind != module.SourceCommandPlayMedia {
			continue
		}
		moduleID := e.moduleOfPart(partID)
		key := media.PlayerKey{ModuleID: moduleID, PartID: partID}

		player, created, err := e.players.Acquire(key, cmd.Path, media.NewFileDecoder)
		if err != nil {
			// The error is only logged. The source gets no pool slot, so
			// resolveSource shows the calibration grid in its place.
			log.Printf("engine: source %d: %v", partID, err)
			continue
		}
		if created {
			player.SetLooping(true)
			player.Play()
			pipeline := media.NewFramePipeline(moduleID, partID)
			e.players.AttachPipeline(key, pipeline)
			e.uploads.Register(pipeline)
			pipeline.Start(player)
		}
	}
}

func (e *engine) moduleOfPart(partID module.PartID) uint64 {
	for _, mod := range e.modules.Modules {
		if mod.PartByID(partID) != nil {
			return mod.ID
		}
	}
	return 0
}

// applyAnimatedParam routes one animated value into the effect chain.
func (e *engine) applyAnimatedParam(target anim.ParamTarget, value anim.AnimValue) {
	for _, effect := range e.chain.Effects() {
		if effect.ID == target.EffectID && value.Kind == anim.ValueFloat {
			effect.SetParam(target.Parameter, value.F)
		}
	}
}

// groupOps indexes render operations by their bound output ID.
func groupOps(ops []module.RenderOp) map[output.ID][]module.RenderOp {
	grouped := make(map[output.ID][]module.RenderOp)
	for _, op := range ops {
		grouped[op.Output.ID] = append(grouped[op.Output.ID], op)
	}
	return grouped
}

// renderOutput renders one window's operations and presents. Returns the
// time spent presenting (vsync wait included).
func (e *engine) renderOutput(ctx *window.Context, ops []module.RenderOp) time.Duration {
	cfg := e.outputs.Output(ctx.OutputID)
	if cfg == nil {
		return 0
	}

	surfaceTexture, surfaceView, err := ctx.AcquireFrame()
	if err != nil {
		// Fatal for this window's frame only.
		log.Printf("engine: %v", err)
		return 0
	}

	encoder, err := e.backend.Device().CreateCommandEncoder(nil)
	if err != nil {
		ctx.Present(surfaceTexture, surfaceView)
		return 0
	}

	targets, err := e.ensureTargets(ctx.OutputID, uint32(ctx.Window.Width()), uint32(ctx.Window.Height()))
	if err != nil {
		log.Printf("engine: %v", err)
		ctx.Present(surfaceTexture, surfaceView)
		return 0
	}

	if err := e.renderCanvas(encoder, targets, ops); err != nil {
		log.Printf("engine: render of output %d failed, clearing frame: %v", ctx.OutputID, err)
		// A frame that would show undefined content clears to black
		// instead of presenting stale ops.
		clearTarget(encoder, targets.canvasView)
	}

	// Effects, then the per-output post chain onto the surface.
	if err := e.chain.Run(encoder, targets.canvasView, targets.effectView, targets.width, targets.height); err != nil {
		log.Printf("engine: effect chain on output %d: %v", ctx.OutputID, err)
	}
	if err := e.post.Record(encoder, cfg, targets.effectView, targets.postView, surfaceView); err != nil {
		log.Printf("engine: post passes on output %d: %v", ctx.OutputID, err)
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		ctx.Present(surfaceTexture, surfaceView)
		return 0
	}
	e.backend.Queue().Submit(commandBuffer)
	commandBuffer.Release()

	if e.prePresent != nil {
		e.prePresent(ctx.OutputID)
	}

	presentStart := time.Now()
	ctx.Present(surfaceTexture, surfaceView)
	return time.Since(presentStart)
}

// renderCanvas fills one output's canvas. Without a configured layer stack
// the ops draw straight into the canvas; with one, each stack layer gets
// its own target and the compositor blends the stack bottom to top.
func (e *engine) renderCanvas(encoder *wgpu.CommandEncoder, targets *outputTargets, ops []module.RenderOp) error {
	resolved := e.layers.Resolve()
	if len(resolved) == 0 {
		return e.renderOps(encoder, targets, targets.canvasView, ops)
	}

	inputs := make([]compositor.LayerInput, 0, len(resolved))
	for _, layer := range resolved {
		slot := fmt.Sprintf("layer_target_%d", layer.Layer.ID)
		view, err := e.pool.Ensure(slot, targets.width, targets.height,
			e.backend.SurfaceFormat(),
			wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
		if err != nil {
			return err
		}

		var layerOps []module.RenderOp
		for _, op := range ops {
			if op.LayerPartID == layer.Layer.ID {
				layerOps = append(layerOps, op)
			}
		}
		if err := e.renderOps(encoder, targets, view, layerOps); err != nil {
			return err
		}
		inputs = append(inputs, compositor.LayerInput{Resolved: layer, View: view})
	}
	return e.comp.Composite(encoder, inputs, targets.canvasView)
}

// renderOps draws a set of operations into one render target.
func (e *engine) renderOps(encoder *wgpu.CommandEncoder, targets *outputTargets, targetView *wgpu.TextureView, ops []module.RenderOp) error {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Output Canvas Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       targetView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	})
	defer pass.End()

	for _, op := range ops {
		sourceView := e.resolveSource(&op, targets)
		if sourceView == nil {
			// Transparent result; the clear already handled it.
			continue
		}

		var transform [16]float32
		common.Identity(transform[:])

		uniformBG, err := e.warp.UniformBindGroup(transform, op.Opacity,
			op.Props.FlipH, op.Props.FlipV,
			op.Props.Brightness, op.Props.Contrast, op.Props.Saturation, op.Props.HueShift)
		if err != nil {
			return err
		}
		textureBG, err := e.warp.TextureBindGroup(sourceView)
		if err != nil {
			return err
		}
		buffers, err := e.warp.Buffers(op.LayerPartID, &op.Mesh)
		if err != nil {
			return err
		}

		// Projective warps need the perspective-correct pipeline; only an
		// axis-aligned rectangular quad takes the cheap path.
		perspective := true
		if v := op.Mesh.Vertices; len(v) == 4 {
			perspective = !(v[0].Position.Y == v[1].Position.Y && v[2].Position.Y == v[3].Position.Y &&
				v[0].Position.X == v[3].Position.X && v[1].Position.X == v[2].Position.X)
		}
		e.warp.Draw(pass, buffers, uniformBG, textureBG, perspective)
	}
	return nil
}

// resolveSource finds the texture an operation samples: the source part's
// pool slot, or the calibration grid for sourceless/mapping-mode ops.
func (e *engine) resolveSource(op *module.RenderOp, targets *outputTargets) *wgpu.TextureView {
	if op.MappingMode || op.SourcePartID == nil {
		return e.gridView(op.LayerPartID, targets.width, targets.height)
	}

	moduleID := e.moduleOfPart(*op.SourcePartID)
	slot := fmt.Sprintf("part_%d_%d", moduleID, *op.SourcePartID)
	if view := e.pool.View(slot); view != nil {
		return view
	}
	// Source engaged but no frame arrived yet: grid keeps the output
	// aligned instead of flashing black.
	return e.gridView(op.LayerPartID, targets.width, targets.height)
}

// gridView returns (uploading on first use) the numbered calibration grid
// for a layer.
func (e *engine) gridView(layerID uint64, width, height uint32) *wgpu.TextureView {
	slot := fmt.Sprintf("grid_%d", layerID)
	if shape, ok := e.gridUploaded[layerID]; ok && shape == [2]uint32{width, height} {
		if view := e.pool.View(slot); view != nil {
			return view
		}
	}
	data := GenerateGridTexture(width, height, layerID)
	if err := e.pool.EnsureAndUpload(slot, data, width, height, 4); err != nil {
		log.Printf("engine: grid upload failed: %v", err)
		return nil
	}
	e.gridUploaded[layerID] = [2]uint32{width, height}
	return e.pool.View(slot)
}

// renderControl runs the UI pass and the preview thumbnail passes on the
// control window.
func (e *engine) renderControl(ctx *window.Context) time.Duration {
	surfaceTexture, surfaceView, err := ctx.AcquireFrame()
	if err != nil {
		log.Printf("engine: %v", err)
		return 0
	}

	encoder, err := e.backend.Device().CreateCommandEncoder(nil)
	if err != nil {
		ctx.Present(surfaceTexture, surfaceView)
		return 0
	}

	clearTarget(encoder, surfaceView)

	// Thumbnail passes: downsample each previewable output's effect
	// target into its preview texture.
	for _, cfg := range e.outputs.Outputs {
		if !cfg.ShowInPreviewPanel {
			continue
		}
		targets, ok := e.targets[cfg.ID]
		if !ok {
			continue
		}
		preview, err := e.ensurePreview(cfg.ID)
		if err != nil {
			continue
		}
		if err := e.blit.Record(encoder, targets.effectView, preview.view); err != nil {
			log.Printf("engine: preview blit of output %d: %v", cfg.ID, err)
		}
	}

	if e.uiPass != nil {
		e.uiPass(encoder, surfaceView)
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		ctx.Present(surfaceTexture, surfaceView)
		return 0
	}
	e.backend.Queue().Submit(commandBuffer)
	commandBuffer.Release()

	presentStart := time.Now()
	ctx.Present(surfaceTexture, surfaceView)
	return time.Since(presentStart)
}

// ensureTargets keeps one output's offscreen chain matched to its window size.
func (e *engine) ensureTargets(id output.ID, width, height uint32) (*outputTargets, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("output %d has zero-sized framebuffer", id)
	}
	if targets, ok := e.targets[id]; ok && targets.width == width && targets.height == height {
		return targets, nil
	}
	if old, ok := e.targets[id]; ok {
		old.release()
		delete(e.targets, id)
	}

	targets := &outputTargets{width: width, height: height}
	var err error
	if targets.canvas, targets.canvasView, err = e.backend.CreateRenderTarget(fmt.Sprintf("Canvas %d", id), width, height); err != nil {
		return nil, err
	}
	if targets.effect, targets.effectView, err = e.backend.CreateRenderTarget(fmt.Sprintf("Effect %d", id), width, height); err != nil {
		targets.release()
		return nil, err
	}
	if targets.post, targets.postView, err = e.backend.CreateRenderTarget(fmt.Sprintf("Post %d", id), width, height); err != nil {
		targets.release()
		return nil, err
	}
	e.targets[id] = targets
	return targets, nil
}

// ensurePreview keeps one output's thumbnail target alive, updating the
// registration under the lock before the UI can observe it.
func (e *engine) ensurePreview(id output.ID) (*previewTarget, error) {
	e.previewMu.Lock()
	defer e.previewMu.Unlock()

	if preview, ok := e.previews[id]; ok {
		return preview, nil
	}
	texture, view, err := e.backend.CreateRenderTarget(fmt.Sprintf("Preview %d", id), previewSize, previewSize)
	if err != nil {
		return nil, err
	}
	preview := &previewTarget{texture: texture, view: view}
	e.previews[id] = preview
	return preview, nil
}

// clearTarget encodes a bare clear pass to transparent black.
func clearTarget(encoder *wgpu.CommandEncoder, view *wgpu.TextureView) {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Clear Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	})
	pass.End()
}
