package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/pkg/logger"
)

const variantManifestName = "playlist.m3u8"

// EncodeInput 编码阶段的输入
type EncodeInput struct {
	JobID           string
	SourcePath      string
	Renditions      []vo.RenditionSpec
	SegmentDuration int
	// VideoDir holds one subdirectory per rendition plus the master manifest.
	VideoDir   string
	Encryption *gateway.EncryptionSpec
}

// EncodeReport collects the ordered results and the isolated per-rendition failures.
type EncodeReport struct {
	Results []vo.RenditionResult
	Errors  []error
}

// Succeeded 成功的渲染数量
func (r *EncodeReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

// EncodeInvoker drives the encoding engine once per rendition.
type EncodeInvoker interface {
	// Encode returns a non-nil error only for failures that stop every rendition:
	// a probe failure, an unusable output directory or a cancelled context.
	Encode(ctx context.Context, in *EncodeInput) (*EncodeReport, error)
}

type encodeInvokerImpl struct {
	engine  gateway.EncodingEngine
	planner RenditionPlanner
}

func NewEncodeInvoker(engine gateway.EncodingEngine, planner RenditionPlanner) EncodeInvoker {
	return &encodeInvokerImpl{engine: engine, planner: planner}
}

func (e *encodeInvokerImpl) Encode(ctx context.Context, in *EncodeInput) (*EncodeReport, error) {
	params, err := e.planner.PlanAll(ctx, in.SourcePath, in.Renditions)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(in.VideoDir, 0o755); err != nil {
		return nil, vo.NewJobError(vo.ErrEncode, vo.JobStateEncoding, in.VideoDir, fmt.Errorf("create output dir: %w", err))
	}

	report := &EncodeReport{Results: make([]vo.RenditionResult, 0, len(params))}
	for i, p := range params {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, encErr := e.encodeOne(ctx, in, i, p)
		if encErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn("Rendition encode failed", map[string]interface{}{
				"job_id":     in.JobID,
				"rendition":  p.Spec.String(),
				"resolution": p.Resolution(),
				"error":      encErr.Error(),
			})
			report.Errors = append(report.Errors, encErr)
		}
		report.Results = append(report.Results, result)
	}

	logger.Info("Encode stage finished", map[string]interface{}{
		"job_id":    in.JobID,
		"total":     len(report.Results),
		"succeeded": report.Succeeded(),
	})
	return report, nil
}

func (e *encodeInvokerImpl) encodeOne(ctx context.Context, in *EncodeInput, index int, p vo.RenditionParams) (vo.RenditionResult, error) {
	result := vo.RenditionResult{Params: p}
	dir := filepath.Join(in.VideoDir, RenditionDirName(index, p))
	detail := fmt.Sprintf("rendition %d %s", index, p.Resolution())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, vo.NewJobError(vo.ErrEncode, vo.JobStateEncoding, detail, err)
	}

	manifest, err := e.engine.EncodeRendition(ctx, &gateway.EncodeRequest{
		JobID:           in.JobID,
		SourcePath:      in.SourcePath,
		Width:           p.Width,
		Height:          p.Height,
		VideoBitrate:    p.Spec.VideoBitrate,
		AudioBitrate:    p.Spec.AudioBitrate,
		SegmentDuration: in.SegmentDuration,
		OutputDir:       dir,
		ManifestName:    variantManifestName,
		Encryption:      in.Encryption,
	})
	if err != nil {
		return result, vo.NewJobError(vo.ErrEncode, vo.JobStateEncoding, detail, err)
	}
	if manifest == "" {
		return result, vo.NewJobError(vo.ErrEncode, vo.JobStateEncoding, detail, errors.New("engine returned no manifest"))
	}
	rel, err := filepath.Rel(in.VideoDir, manifest)
	if err != nil {
		return result, vo.NewJobError(vo.ErrEncode, vo.JobStateEncoding, detail, err)
	}
	result.ManifestPath = filepath.ToSlash(rel)
	result.Success = true
	return result, nil
}

// RenditionDirName names the rendition-scoped output directory, e.g. "00_320x180".
func RenditionDirName(index int, p vo.RenditionParams) string {
	return fmt.Sprintf("%02d_%dx%d", index, p.Width, p.Height)
}
