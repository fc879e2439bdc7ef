package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
	"github.com/Faultbox/autolow/internal/queue"
)

// LowPolySuffix is appended to the source name to name its duplicate.
const LowPolySuffix = "_LP"

// Controller runs the pipeline over the queue (or the active object when the
// queue is empty) and owns the queue editing and settings commands. Runs are
// sequential; a Controller is not safe for concurrent use.
type Controller struct {
	Host     host.Host
	Queue    *queue.Queue
	Settings *config.Pipeline
	Log      *zap.Logger

	state State
}

// NewController creates a controller. A nil logger disables logging.
func NewController(h host.Host, q *queue.Queue, settings *config.Pipeline, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		Host:     h,
		Queue:    q,
		Settings: settings,
		Log:      log,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	return c.state
}

type target struct {
	item queue.Item
	obj  host.Object
	err  error // lookup failure
}

// Start runs the pipeline to completion. Settings are snapshotted on entry.
// Validation errors end the run in StateFailed without touching the scene or
// the queue. Per-object errors are recorded and processing moves on; the
// queue is cleared once every object was attempted.
func (c *Controller) Start(ctx context.Context) *Report {
	settings := *c.Settings
	report := &Report{}

	c.state = StateValidating
	output, targets, queued, err := c.validate(settings)
	if err != nil {
		c.state = StateFailed
		report.State = StateFailed
		report.Err = err
		c.Log.Error("run rejected", zap.Error(err))
		return report
	}

	c.Log.Info("run started",
		zap.Int("objects", len(targets)),
		zap.Stringer("remesher", settings.Remesher),
		zap.Stringer("unwrap", settings.UnwrapMethod),
		zap.Stringer("bake", settings.BakeMethod))

	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			// Unprocessed queue items stay queued for the next run. An
			// active-object run leaves the queue untouched.
			if queued {
				c.Queue.Replace(itemsOf(targets[i:]))
			}
			report.State = StateDone
			report.Err = multierr.Append(report.Err, err)
			c.state = StateDone
			return report
		}

		c.state = StateProcessing
		res, warnings := c.process(ctx, settings, t, output)
		report.Objects = append(report.Objects, res)
		report.Warnings = append(report.Warnings, warnings...)
		report.Err = multierr.Append(report.Err, res.Err)
	}

	c.Queue.Clear()
	c.state = StateDone
	report.State = StateDone
	c.Log.Info(report.Summary())
	return report
}

// validate checks run preconditions in the order the user should fix them
// and reports whether the targets came from the queue. The autosave write
// happens only once every precondition holds.
func (c *Controller) validate(settings config.Pipeline) (*ImageOutput, []target, bool, error) {
	output, targets, queued, err := c.resolveTargets(settings)
	if err != nil {
		return nil, nil, false, err
	}
	if settings.Autosave {
		if err := c.Host.Save(); err != nil {
			return nil, nil, false, fmt.Errorf("autosave: %w", err)
		}
	}
	return output, targets, queued, nil
}

func (c *Controller) resolveTargets(settings config.Pipeline) (*ImageOutput, []target, bool, error) {
	if err := settings.Validate(); err != nil {
		return nil, nil, false, err
	}

	if settings.Autosave && c.Host.FilePath() == "" {
		if err := c.Host.PromptSave(); err != nil {
			return nil, nil, false, fmt.Errorf("%w: %v", ErrUnsavedWorkspace, err)
		}
		return nil, nil, false, ErrUnsavedWorkspace
	}

	var output *ImageOutput
	if settings.SaveImages && settings.Bakes() {
		if settings.ImagePath != "" && !isDir(settings.ImagePath) {
			c.Settings.ImagePath = ""
			return nil, nil, false, ErrImagePathMissing
		}
		dir, err := ImageDir(settings.ImagePath, c.Host.FilePath())
		if err != nil {
			return nil, nil, false, err
		}
		output = &ImageOutput{Dir: dir, Format: settings.ImageFormat, Qualify: settings.QualifyImageNames}
	}

	if c.Queue.Len() > 0 {
		var targets []target
		for _, item := range c.Queue.Items() {
			obj, err := c.Host.Lookup(item.ID)
			targets = append(targets, target{item: item, obj: obj, err: err})
		}
		return output, targets, true, nil
	}

	active, ok := c.Host.ActiveObject()
	if !ok {
		return nil, nil, false, ErrNoObject
	}
	if active.Kind() != host.KindMesh {
		return nil, nil, false, ErrNotMesh
	}
	mesh, err := c.Host.Mesh(active)
	if err != nil {
		return nil, nil, false, err
	}
	if mesh.PolygonCount() == 0 {
		return nil, nil, false, ErrNoPolygons
	}
	return output, []target{{item: queue.Item{ID: active.ID(), Name: active.Name()}, obj: active}}, false, nil
}

// process runs every step for one source object. On failure the duplicate
// is removed so the scene only gains finished low-poly objects.
func (c *Controller) process(ctx context.Context, settings config.Pipeline, t target, output *ImageOutput) (ObjectResult, []string) {
	res := ObjectResult{Source: t.item.Name}
	log := c.Log.With(zap.String("object", t.item.Name))

	fail := func(step Step, err error) (ObjectResult, []string) {
		res.Err = &ObjectError{Object: t.item.Name, Step: step, Err: err}
		log.Error("object failed", zap.String("step", string(step)), zap.Error(err))
		return res, nil
	}

	if t.err != nil {
		return fail(StepLookup, t.err)
	}
	high := t.obj
	if high.Kind() != host.KindMesh {
		return fail(StepLookup, ErrNotMesh)
	}
	if err := c.Host.SetHidden(high, false); err != nil {
		return fail(StepDuplicate, err)
	}

	low, err := c.duplicate(high)
	if err != nil {
		return fail(StepDuplicate, err)
	}
	discard := func(step Step, err error) (ObjectResult, []string) {
		c.state = StateCleanup
		err = multierr.Combine(err, c.Host.ClearModifiers(low), c.Host.Remove(low))
		return fail(step, err)
	}

	rr, err := Remesh(c.Host, settings, high, low, log)
	if err != nil {
		return discard(StepRemesh, err)
	}
	warnings := rr.Warnings

	if settings.UnwrapMethod != config.UnwrapNone || settings.Bakes() {
		mesh, err := c.Host.Mesh(low)
		if err != nil {
			return discard(StepRemesh, err)
		}
		if mesh.PolygonCount() == 0 {
			return discard(StepRemesh, ErrDegenerateMesh)
		}
	}

	if err := Unwrap(c.Host, settings.UnwrapMethod, low); err != nil {
		return discard(StepUnwrap, err)
	}

	baked, err := Bake(ctx, c.Host, BakeJob{
		Settings: settings,
		High:     high,
		Low:      low,
		Remeshed: rr.Remeshed,
		Output:   output,
		Log:      log,
	})
	if err != nil {
		return discard(StepBake, err)
	}
	res.Images = baked.Images

	c.state = StateCleanup
	if err := multierr.Combine(c.Host.SetHidden(high, true), c.Host.ClearModifiers(low)); err != nil {
		return discard(StepCleanup, err)
	}
	res.LowPoly = low.Name()

	if settings.AutosaveAfter {
		if err := c.Host.Save(); err != nil {
			msg := fmt.Sprintf("autosave after %s failed: %v", high.Name(), err)
			log.Warn(msg)
			warnings = append(warnings, msg)
		}
	}
	log.Info("object done",
		zap.String("lowpoly", low.Name()),
		zap.Bool("quad_retried", rr.Retried),
		zap.Strings("images", res.Images))
	return res, warnings
}

// duplicate makes the low-poly working copy and gives both objects smooth
// shading with auto-smooth off.
func (c *Controller) duplicate(high host.Object) (host.Object, error) {
	low, err := c.Host.Duplicate(high, high.Name()+LowPolySuffix)
	if err != nil {
		return nil, err
	}
	if err := multierr.Combine(
		c.Host.ShadeSmooth(high, false),
		c.Host.ShadeSmooth(low, false),
	); err != nil {
		return nil, multierr.Append(err, c.Host.Remove(low))
	}
	return low, nil
}

// QueueAction edits the queue. Add enqueues the active mesh object; the
// other actions act on the current index and are no-ops at the boundaries.
func (c *Controller) QueueAction(action queue.Action) error {
	switch action {
	case queue.ActionAdd:
		active, ok := c.Host.ActiveObject()
		if !ok {
			return ErrNothingSelected
		}
		if active.Kind() != host.KindMesh {
			return ErrNotMesh
		}
		c.Queue.Add(queue.Item{ID: active.ID(), Name: active.Name()})
	case queue.ActionRemove:
		c.Queue.Remove()
	case queue.ActionUp:
		c.Queue.MoveUp()
	case queue.ActionDown:
		c.Queue.MoveDown()
	default:
		return fmt.Errorf("unknown queue action %d", int(action))
	}
	current, _ := c.Queue.Current()
	c.Log.Debug("queue edited",
		zap.Stringer("action", action),
		zap.String("current", current.Name),
		zap.Int("len", c.Queue.Len()),
		zap.Int("index", c.Queue.Index()))
	return nil
}

// SetWorkflowPreset applies a known-good remesh/unwrap/bake combination.
func (c *Controller) SetWorkflowPreset(w config.Workflow) error {
	if err := c.Settings.ApplyWorkflow(w); err != nil {
		return err
	}
	c.Log.Info("workflow preset applied",
		zap.Stringer("workflow", w),
		zap.Stringer("remesher", c.Settings.Remesher),
		zap.Stringer("unwrap", c.Settings.UnwrapMethod),
		zap.Stringer("bake", c.Settings.BakeMethod))
	return nil
}

// SetImagePath sets the output folder. Paths that are not existing
// directories are rejected and the setting is left unchanged.
func (c *Controller) SetImagePath(path string) error {
	if !isDir(path) {
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	c.Settings.ImagePath = path
	return nil
}

func itemsOf(targets []target) []queue.Item {
	items := make([]queue.Item, len(targets))
	for i, t := range targets {
		items[i] = t.item
	}
	return items
}
