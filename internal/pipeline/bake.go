package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/autolow/internal/config"
	"github.com/Faultbox/autolow/internal/host"
)

// BakeResult lists what a bake produced.
type BakeResult struct {
	Graph  *BakeGraph
	Baked  []host.BakeType
	Images []string // saved file paths
}

// BakeJob is everything Bake needs for one low-poly object.
type BakeJob struct {
	Settings config.Pipeline
	High     host.Object
	Low      host.Object
	// Remeshed switches the normal pass to the multires displacement.
	Remeshed bool
	Output   *ImageOutput
	Log      *zap.Logger
}

// Bake builds the bake graph on the low-poly object and runs the enabled
// passes: normal first, then diffuse. Images are saved after both bakes.
func Bake(ctx context.Context, h host.Host, job BakeJob) (res BakeResult, err error) {
	s := job.Settings
	if s.BakeMethod == config.BakeNone || (!s.NormalBake && !s.DiffuseBake) {
		return res, nil
	}
	log := job.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("object", job.Low.Name()), zap.Stringer("bake", s.BakeMethod))

	graph, err := BuildBakeGraph(h, job.Low, s.Resolution, s.NormalBake)
	if err != nil {
		return res, fmt.Errorf("building bake graph: %w", err)
	}
	res.Graph = graph

	cage, release, err := BuildCage(h, s, job.Low)
	if err != nil {
		return res, fmt.Errorf("building cage: %w", err)
	}
	defer func() { err = multierr.Append(err, release()) }()

	base := baseRequest(s, job.High, job.Low, cage)

	if s.NormalBake {
		req := base
		req.Type = host.BakeNormal
		if job.Remeshed {
			req.Multires = true
			req.Sources = nil
			req.Cage = nil
			req.Extrusion, req.MaxRayDistance = 0, 0
		}
		if err := runPass(ctx, h, graph, req, log); err != nil {
			return res, err
		}
		res.Baked = append(res.Baked, host.BakeNormal)
	}

	if s.DiffuseBake {
		req := base
		req.Type = host.BakeDiffuse
		if err := runPass(ctx, h, graph, req, log); err != nil {
			return res, err
		}
		res.Baked = append(res.Baked, host.BakeDiffuse)
	}

	for _, t := range res.Baked {
		slot, _ := graph.Slot(t)
		path, err := job.Output.Save(job.Low, slot.Image)
		if err != nil {
			return res, err
		}
		if path != "" {
			log.Info("saved baked image", zap.Stringer("map", t), zap.String("path", path))
			res.Images = append(res.Images, path)
		}
	}
	return res, nil
}

// baseRequest fills the ray projection settings shared by both passes. The
// lighting passes are always off so only surface color is captured.
func baseRequest(s config.Pipeline, high, low, cage host.Object) host.BakeRequest {
	req := host.BakeRequest{Target: low}
	if s.BakeMethod == config.BakeTransfer {
		req.Sources = []host.Object{high}
	}
	switch {
	case cage != nil:
		req.Cage = cage
	case s.CageSettings == config.CageManual:
		req.Extrusion = s.Extrusion
		req.MaxRayDistance = s.RayDistance
	}
	return req
}

func runPass(ctx context.Context, h host.Host, graph *BakeGraph, req host.BakeRequest, log *zap.Logger) error {
	slot, ok := graph.Slot(req.Type)
	if !ok {
		return fmt.Errorf("no %s image in the bake graph", req.Type)
	}
	if err := graph.Material.SetActiveNode(slot.Node); err != nil {
		return err
	}
	req.Image = slot.Node

	log.Debug("baking",
		zap.Stringer("map", req.Type),
		zap.Bool("multires", req.Multires),
		zap.Bool("cage", req.Cage != nil))
	if err := h.Bake(ctx, req); err != nil {
		return fmt.Errorf("baking %s: %w", req.Type, err)
	}
	return nil
}
