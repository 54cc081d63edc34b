package frame

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/device"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
)

// CullRecorder records the frustum cull of a frame.
type CullRecorder interface {
	RecordFrustumCull(ctx *Context, f common.Frustum) error
}

// ClusterRecorder records the cluster grid build of a frame.
type ClusterRecorder interface {
	RecordClusterBuild(ctx *Context, v camera.View) (bool, error)
}

// LightBinRecorder records light binning and exposes the bins the shading stage reads.
type LightBinRecorder interface {
	RecordLightBinning(ctx *Context, lights []light.PointLight) error
	ShadingBindings(slot int) []device.Binding
}

// DrawSource resolves a material to its indirect draw range in a frame slot.
type DrawSource interface {
	IndirectDraw(slot int, m common.MaterialType) (IndirectDraw, bool)
}

// PassTiming is the CPU time spent recording one pass.
type PassTiming struct {
	Kind     PassKind
	Duration time.Duration
}

// Report summarises one scheduled frame.
type Report struct {
	// ClusterRebuilt is true when a ClusterBuildPass dispatched the grid build.
	ClusterRebuilt bool
	// Draws lists the non-empty material draws in pass order.
	Draws []IndirectDraw
	// Timings lists the recording time of every pass in order.
	Timings []PassTiming
}

// Scheduler runs a list of passes against a frame context, dispatching on the pass type.
type Scheduler struct {
	culler   CullRecorder
	clusters ClusterRecorder
	binner   LightBinRecorder
	draws    DrawSource
	observer func(kind PassKind, d time.Duration)
	log      *slog.Logger
}

// NewScheduler creates a Scheduler. Passes whose recorder was not provided fail with common.ErrConfig.
//
// Parameters:
//   - options: SchedulerOption values wiring the recorders
//
// Returns:
//   - *Scheduler: the scheduler
func NewScheduler(options ...SchedulerOption) *Scheduler {
	s := &Scheduler{log: common.ComponentLogger("scheduler")}
	for _, option := range options {
		option(s)
	}
	return s
}

// Run records every pass in order, then submits the frame. On the first failure the frame is
// discarded and the error returned; nothing of it reaches the device queue.
//
// Parameters:
//   - ctx: the frame context
//   - passes: the passes to run
//
// Returns:
//   - Report: what the frame did
//   - error: the first pass or submission failure
func (s *Scheduler) Run(ctx *Context, passes []Pass) (Report, error) {
	var report Report
	for _, p := range passes {
		start := time.Now()
		if err := s.run(ctx, p, &report); err != nil {
			ctx.Discard()
			s.log.Warn("frame skipped", slog.Uint64("frame", ctx.Number), slog.String("pass", p.Kind().String()), slog.Any("error", err))
			return report, fmt.Errorf("frame %d %s pass: %w", ctx.Number, p.Kind(), err)
		}
		d := time.Since(start)
		report.Timings = append(report.Timings, PassTiming{Kind: p.Kind(), Duration: d})
		if s.observer != nil {
			s.observer(p.Kind(), d)
		}
	}
	if err := ctx.Submit(); err != nil {
		s.log.Warn("frame skipped", slog.Uint64("frame", ctx.Number), slog.Any("error", err))
		return report, fmt.Errorf("frame %d submit: %w", ctx.Number, err)
	}
	return report, nil
}

func (s *Scheduler) run(ctx *Context, p Pass, report *Report) error {
	switch pass := p.(type) {
	case CullPass:
		if s.culler == nil {
			return fmt.Errorf("no culler: %w", common.ErrConfig)
		}
		return s.culler.RecordFrustumCull(ctx, pass.Frustum)

	case ClusterBuildPass:
		if s.clusters == nil {
			return fmt.Errorf("no cluster builder: %w", common.ErrConfig)
		}
		built, err := s.clusters.RecordClusterBuild(ctx, pass.View)
		report.ClusterRebuilt = report.ClusterRebuilt || built
		return err

	case LightBinPass:
		if s.binner == nil {
			return fmt.Errorf("no light binner: %w", common.ErrConfig)
		}
		return s.binner.RecordLightBinning(ctx, pass.Lights)

	case MaterialDrawPass:
		if s.draws == nil {
			return fmt.Errorf("no draw source: %w", common.ErrConfig)
		}
		draw, ok := s.draws.IndirectDraw(ctx.Slot, pass.Material)
		if !ok {
			return nil
		}
		if err := ctx.Use(device.StageDrawIndirect, []device.Binding{{
			Buffer: draw.Buffer,
			Offset: draw.Offset,
			Size:   uint64(draw.Count) * uint64(draw.Stride),
			Access: device.AccessIndirectRead,
		}}); err != nil {
			return err
		}
		if s.binner != nil {
			if err := ctx.Use(device.StageFragment, s.binner.ShadingBindings(ctx.Slot)); err != nil {
				return err
			}
		}
		report.Draws = append(report.Draws, draw)
		if pass.Draw != nil {
			return pass.Draw(ctx, draw)
		}
		return nil

	default:
		return fmt.Errorf("unknown pass %T: %w", p, common.ErrConfig)
	}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithCuller wires the recorder of CullPass.
func WithCuller(c CullRecorder) SchedulerOption {
	return func(s *Scheduler) {
		s.culler = c
	}
}

// WithClusterBuilder wires the recorder of ClusterBuildPass.
func WithClusterBuilder(c ClusterRecorder) SchedulerOption {
	return func(s *Scheduler) {
		s.clusters = c
	}
}

// WithLightBinner wires the recorder of LightBinPass.
func WithLightBinner(b LightBinRecorder) SchedulerOption {
	return func(s *Scheduler) {
		s.binner = b
	}
}

// WithDrawSource wires the material ranges used by MaterialDrawPass.
func WithDrawSource(d DrawSource) SchedulerOption {
	return func(s *Scheduler) {
		s.draws = d
	}
}

// WithObserver receives the recording time of every pass, e.g. for a profiler.
func WithObserver(fn func(kind PassKind, d time.Duration)) SchedulerOption {
	return func(s *Scheduler) {
		s.observer = fn
	}
}
