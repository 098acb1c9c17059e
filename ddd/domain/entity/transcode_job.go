package entity

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"streaming-engine/ddd/domain/vo"
)

// TranscodeJob 打包任务，提交后不可变
type TranscodeJob struct {
	id            string
	sourceLocator string
	sourceBucket  string
	renditions    []vo.RenditionSpec
	destination   string
	keyURL        string
	callbackURL   string
	createdAt     time.Time
}

// TranscodeJobParams carries the submission fields of a job.
type TranscodeJobParams struct {
	ID            string             `json:"id"`
	SourceLocator string             `json:"source_locator"`
	SourceBucket  string             `json:"source_bucket,omitempty"`
	Renditions    []vo.RenditionSpec `json:"renditions"`
	Destination   string             `json:"destination"`
	KeyURL        string             `json:"key_url,omitempty"`
	CallbackURL   string             `json:"callback_url,omitempty"`
}

// NewTranscodeJob validates p and builds an immutable job. An empty rendition list
// falls back to the documented preset table.
func NewTranscodeJob(p TranscodeJobParams) (*TranscodeJob, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if strings.TrimSpace(p.SourceLocator) == "" {
		return nil, fmt.Errorf("source locator is required")
	}
	dest := strings.Trim(strings.TrimSpace(p.Destination), "/")
	if dest == "" {
		return nil, fmt.Errorf("destination path is required")
	}
	renditions := p.Renditions
	if len(renditions) == 0 {
		renditions = vo.FallbackRenditions()
	}
	for i, r := range renditions {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rendition[%d]: %w", i, err)
		}
	}
	if p.KeyURL != "" {
		if err := validateURL(p.KeyURL, true); err != nil {
			return nil, fmt.Errorf("key url: %w", err)
		}
	}
	if p.CallbackURL != "" {
		if err := validateURL(p.CallbackURL, false); err != nil {
			return nil, fmt.Errorf("callback url: %w", err)
		}
	}

	specs := make([]vo.RenditionSpec, len(renditions))
	copy(specs, renditions)
	return &TranscodeJob{
		id:            p.ID,
		sourceLocator: p.SourceLocator,
		sourceBucket:  strings.TrimSpace(p.SourceBucket),
		renditions:    specs,
		destination:   dest,
		keyURL:        p.KeyURL,
		callbackURL:   p.CallbackURL,
		createdAt:     time.Now(),
	}, nil
}

func (j *TranscodeJob) ID() string            { return j.id }
func (j *TranscodeJob) SourceLocator() string { return j.sourceLocator }
func (j *TranscodeJob) SourceBucket() string  { return j.sourceBucket }
func (j *TranscodeJob) Destination() string   { return j.destination }
func (j *TranscodeJob) KeyURL() string        { return j.keyURL }
func (j *TranscodeJob) CallbackURL() string   { return j.callbackURL }
func (j *TranscodeJob) CreatedAt() time.Time  { return j.createdAt }

// Renditions returns a copy of the rendition list in submission order.
func (j *TranscodeJob) Renditions() []vo.RenditionSpec {
	out := make([]vo.RenditionSpec, len(j.renditions))
	copy(out, j.renditions)
	return out
}

// Params returns the submission fields, e.g. to hand the job to another process.
func (j *TranscodeJob) Params() TranscodeJobParams {
	return TranscodeJobParams{
		ID:            j.id,
		SourceLocator: j.sourceLocator,
		SourceBucket:  j.sourceBucket,
		Renditions:    j.Renditions(),
		Destination:   j.destination,
		KeyURL:        j.keyURL,
		CallbackURL:   j.callbackURL,
	}
}

// IsSourceLocal reports whether the source locator is already a local path.
func (j *TranscodeJob) IsSourceLocal() bool { return j.sourceBucket == "" }

// Encrypted reports whether segments should be AES-128 encrypted.
func (j *TranscodeJob) Encrypted() bool { return j.keyURL != "" }

// OutcomeID is the destination's last segment on success and the job id otherwise.
func (j *TranscodeJob) OutcomeID(success bool) string {
	if success {
		return path.Base(j.destination)
	}
	return j.id
}

// validateURL accepts absolute http(s) URLs, and root-relative paths when allowRelative is set.
func validateURL(raw string, allowRelative bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		if allowRelative && strings.HasPrefix(raw, "/") {
			return nil
		}
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
