package service

import (
	"context"
	"fmt"
	"math"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
)

// RenditionPlanner resolves rendition specs into concrete encode dimensions.
type RenditionPlanner interface {
	// Plan resolves a single spec, probing the source when the height is derived.
	Plan(ctx context.Context, sourcePath string, spec vo.RenditionSpec) (vo.RenditionParams, error)

	// PlanAll resolves specs in order and probes the source at most once.
	PlanAll(ctx context.Context, sourcePath string, specs []vo.RenditionSpec) ([]vo.RenditionParams, error)
}

type renditionPlannerImpl struct {
	engine gateway.EncodingEngine
}

func NewRenditionPlanner(engine gateway.EncodingEngine) RenditionPlanner {
	return &renditionPlannerImpl{engine: engine}
}

func (p *renditionPlannerImpl) Plan(ctx context.Context, sourcePath string, spec vo.RenditionSpec) (vo.RenditionParams, error) {
	params, err := p.PlanAll(ctx, sourcePath, []vo.RenditionSpec{spec})
	if err != nil {
		return vo.RenditionParams{}, err
	}
	return params[0], nil
}

func (p *renditionPlannerImpl) PlanAll(ctx context.Context, sourcePath string, specs []vo.RenditionSpec) ([]vo.RenditionParams, error) {
	var native *gateway.VideoInfo
	out := make([]vo.RenditionParams, 0, len(specs))
	for _, spec := range specs {
		if !spec.DerivesHeight() {
			out = append(out, vo.RenditionParams{Spec: spec, Width: spec.Width, Height: spec.Height})
			continue
		}
		if native == nil {
			info, err := p.probe(ctx, sourcePath)
			if err != nil {
				return nil, err
			}
			native = info
		}
		out = append(out, vo.RenditionParams{
			Spec:   spec,
			Width:  spec.Width,
			Height: DeriveHeight(native.Width, native.Height, spec.Width),
		})
	}
	return out, nil
}

func (p *renditionPlannerImpl) probe(ctx context.Context, sourcePath string) (*gateway.VideoInfo, error) {
	info, err := p.engine.Probe(ctx, sourcePath)
	if err != nil {
		return nil, vo.NewJobError(vo.ErrProbe, vo.JobStateEncoding, sourcePath, err)
	}
	if info == nil || info.Width <= 0 || info.Height <= 0 {
		return nil, vo.NewJobError(vo.ErrProbe, vo.JobStateEncoding, sourcePath,
			fmt.Errorf("source has no usable video dimensions"))
	}
	return info, nil
}

// DeriveHeight keeps the native aspect ratio: round(nativeHeight * targetWidth / nativeWidth).
func DeriveHeight(nativeWidth, nativeHeight, targetWidth int) int {
	return int(math.Round(float64(nativeHeight) * float64(targetWidth) / float64(nativeWidth)))
}
