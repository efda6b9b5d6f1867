// Package engine wires the surface together. Bring-up happens in two phases: the graphics context is
// created from the window first, then the compute side is linked to it, the shared grid buffer is
// allocated and seeded, and both programs are built. After that every frame runs
// acquire, dispatch, release, draw.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-surface/common"
	"github.com/Carmen-Shannon/oxy-surface/engine/broker"
	"github.com/Carmen-Shannon/oxy-surface/engine/camera"
	"github.com/Carmen-Shannon/oxy-surface/engine/config"
	"github.com/Carmen-Shannon/oxy-surface/engine/fault"
	"github.com/Carmen-Shannon/oxy-surface/engine/gpu"
	"github.com/Carmen-Shannon/oxy-surface/engine/interop"
	"github.com/Carmen-Shannon/oxy-surface/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-surface/engine/profiler"
	"github.com/Carmen-Shannon/oxy-surface/engine/programs"
	"github.com/Carmen-Shannon/oxy-surface/engine/pump"
)

// Engine owns every GPU object of the surface and the frame pump that drives them.
// All methods must be called from the goroutine that owns the window.
type Engine struct {
	cfg     config.Config
	log     *zap.Logger
	driver  gpu.Driver
	surface gpu.Surface
	sources *programs.Sources
	poll    func() bool
	clock   pump.Clock

	graphics gpu.GraphicsContext
	broker   *broker.Broker
	buffer   *interop.Buffer
	shader   *pipeline.ShaderPipeline
	kernel   *pipeline.KernelPipeline

	camera   camera.Camera
	model    [16]float32
	pump     *pump.Pump
	profiler *profiler.Profiler

	// resizeErr is a failed surface reconfiguration, reported by the next frame.
	resizeErr error
}

// NewEngine creates an engine for the given driver and window surface. Nothing touches the GPU until Start.
//
// Parameters:
//   - driver: the GPU driver
//   - surface: the window surface to present into
//   - options: functional options for engine configuration
//
// Returns:
//   - *Engine: the engine, not yet started
func NewEngine(driver gpu.Driver, surface gpu.Surface, options ...EngineBuilderOption) *Engine {
	e := &Engine{
		cfg:     config.Default(),
		log:     zap.NewNop(),
		driver:  driver,
		surface: surface,
		clock:   pump.SystemClock(),
		model:   common.IdentityMatrix(),
	}
	for _, opt := range options {
		opt(e)
	}

	cc := e.cfg.Camera
	e.camera = camera.NewCamera(
		camera.WithEye(cc.Eye),
		camera.WithCenter(cc.Center),
		camera.WithUp(cc.Up),
		camera.WithFov(cc.FovDeg),
		camera.WithNear(cc.Near),
		camera.WithFar(cc.Far),
	)
	if e.cfg.Profiler.Enabled {
		e.profiler = profiler.NewProfiler(
			profiler.WithLogger(e.log),
			profiler.WithInterval(e.cfg.Profiler.Interval.Std()),
			profiler.WithNow(e.clock.Now),
		)
	}
	return e
}

// Start performs the full bring-up. On failure every object created so far is released.
//
// Returns:
//   - error: the first fault encountered
func (e *Engine) Start() error {
	if err := e.start(); err != nil {
		e.Close()
		return err
	}
	return nil
}

func (e *Engine) start() error {
	sources, err := e.loadSources()
	if err != nil {
		return err
	}

	// phase one: graphics context from the live window
	graphics, err := e.driver.CreateGraphicsContext(e.surface, gpu.ParsePresentMode(e.cfg.GPU.PresentMode))
	if err != nil {
		return fault.Initialization("create graphics context", err)
	}
	e.graphics = graphics
	e.camera.Resize(e.surface.Width(), e.surface.Height())

	// phase two: compute context linked to it
	b, err := broker.Open(e.driver, graphics,
		broker.WithLogger(e.log),
		broker.WithProfiling(e.cfg.GPU.Profiling),
	)
	if err != nil {
		return err
	}
	e.broker = b

	side := e.cfg.Grid.Side
	handle, err := graphics.CreateBuffer("surface grid", interop.BufferSize(side))
	if err != nil {
		return fault.Initialization("create grid buffer", err)
	}
	buf, err := interop.NewBuffer(b.Context(), b.Queue(), handle)
	if err != nil {
		return err
	}
	if err := buf.Seed(interop.SeedGrid(side)); err != nil {
		return err
	}
	e.buffer = buf

	e.shader, err = pipeline.NewShaderPipeline(graphics, sources.Vertex, sources.Fragment, pipeline.WithShaderLogger(e.log))
	if err != nil {
		return err
	}
	if err := e.shader.Bind(buf); err != nil {
		return err
	}

	e.kernel, err = pipeline.NewKernelPipeline(b.Context(), b.Queue(), sources.Kernel,
		pipeline.WithEntryPoint(e.cfg.Kernel.EntryPoint),
		pipeline.WithGridSide(uint32(side)),
		pipeline.WithLocalSize(e.cfg.Kernel.LocalSize),
		pipeline.WithLogger(e.log),
	)
	if err != nil {
		return err
	}

	e.pump = pump.New(e.RenderFrame, e.pumpOptions()...)
	globalSize, localSize := e.kernel.GlobalSize(), e.kernel.LocalSize()
	e.log.Info("surface ready",
		zap.Int("grid_side", side),
		zap.Uint32("points", e.shader.Count()),
		zap.Uint32s("global_size", globalSize[:]),
		zap.Uint32s("local_size", localSize[:]),
		zap.Duration("frame_budget", e.cfg.Pump.FrameBudget.Std()),
	)
	return nil
}

func (e *Engine) loadSources() (programs.Sources, error) {
	if e.sources != nil {
		return *e.sources, nil
	}
	s, err := programs.Load(e.cfg.Programs.Dir)
	if err != nil {
		return programs.Sources{}, fault.Initialization("load programs", err)
	}
	return s, nil
}

func (e *Engine) pumpOptions() []pump.PumpBuilderOption {
	cc := e.cfg.Clock
	options := []pump.PumpBuilderOption{
		pump.WithClock(e.clock),
		pump.WithFrameBudget(e.cfg.Pump.FrameBudget.Std()),
		pump.WithPollInterval(e.cfg.Pump.PollInterval.Std()),
		pump.WithFrameClock(pump.FrameClock{Step: cc.Step, UpperBound: cc.UpperBound, Period: cc.Period}),
		pump.WithAdvance(e.advanceCamera),
	}
	if e.poll != nil {
		options = append(options, pump.WithPoll(e.poll))
	}
	if e.profiler != nil {
		options = append(options, pump.WithObserver(func(s pump.TickStats) { e.profiler.Tick(s) }))
	}
	return options
}

// RenderFrame runs one frame at animation time t: hand the grid to compute, dispatch the kernel,
// hand it back and draw it.
func (e *Engine) RenderFrame(t float32) error {
	if e.resizeErr != nil {
		err := e.resizeErr
		e.resizeErr = nil
		return err
	}
	if e.graphics == nil || !e.graphics.Live() {
		return fault.Dispatch("render", errors.New("graphics context is gone"))
	}

	if err := e.buffer.Acquire(); err != nil {
		return err
	}
	if err := e.kernel.Dispatch(e.buffer, t); err != nil {
		return err
	}
	if err := e.buffer.Release(); err != nil {
		return err
	}

	if err := e.shader.SetMatrices(e.model, e.camera.ViewMatrix(), e.camera.ProjectionMatrix()); err != nil {
		return err
	}
	if err := e.shader.Draw(); err != nil {
		return err
	}

	if e.profiler != nil {
		e.profiler.RecordDispatch(e.kernelDuration())
		e.profiler.SetTransitions(e.buffer.Transitions())
	}
	return nil
}

func (e *Engine) kernelDuration() time.Duration {
	if timer, ok := e.broker.Queue().(gpu.KernelTimer); ok {
		return timer.LastKernelDuration()
	}
	return 0
}

func (e *Engine) advanceCamera() {
	e.camera.Rotate(e.cfg.Camera.RotationStepDeg, e.cfg.Camera.RotationAxis)
}

// Resize follows a framebuffer size change: the projection takes the new aspect and the surface is
// reconfigured. A reconfiguration failure is returned and also surfaces from the next frame.
func (e *Engine) Resize(width, height int) error {
	e.camera.Resize(width, height)
	if e.graphics == nil {
		return nil
	}
	if err := e.graphics.Resize(width, height); err != nil {
		e.resizeErr = fault.Dispatch("resize", err)
		return e.resizeErr
	}
	return nil
}

// Tick runs a single pump tick.
func (e *Engine) Tick() error {
	if e.pump == nil {
		return fault.Protocol("tick", "engine is not started")
	}
	_, err := e.pump.Tick()
	return err
}

// Run drives the frame pump until ctx is cancelled, the poll hook stops it, or a frame fails.
func (e *Engine) Run(ctx context.Context) error {
	if e.pump == nil {
		return fault.Protocol("run", "engine is not started")
	}
	return e.pump.Run(ctx)
}

// Close releases the compute context, the graphics context and the driver. Safe to call more than once.
func (e *Engine) Close() {
	if e.broker != nil {
		e.broker.Close()
		e.broker = nil
	}
	if e.graphics != nil {
		e.graphics.Release()
		e.graphics = nil
	}
	if e.driver != nil {
		e.driver.Release()
		e.driver = nil
	}
}

// Camera returns the camera.
func (e *Engine) Camera() camera.Camera { return e.camera }

// Buffer returns the shared grid buffer, nil before Start.
func (e *Engine) Buffer() *interop.Buffer { return e.buffer }

// Pump returns the frame pump, nil before Start.
func (e *Engine) Pump() *pump.Pump { return e.pump }

// Profiler returns the profiler, nil when profiling is disabled.
func (e *Engine) Profiler() *profiler.Profiler { return e.profiler }
