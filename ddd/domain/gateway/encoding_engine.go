package gateway

import "context"

// VideoInfo 探测到的源视频信息
type VideoInfo struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
	Codec    string  `json:"codec"`
}

// EncryptionSpec requests AES-128 segment encryption. The engine creates the key at
// KeyPath on first use and reuses it for later renditions of the same job.
type EncryptionSpec struct {
	KeyPath string
	KeyURL  string
}

// EncodeRequest 单个渲染的编码请求
type EncodeRequest struct {
	JobID           string
	SourcePath      string
	Width           int
	Height          int
	VideoBitrate    int
	AudioBitrate    int
	SegmentDuration int
	// OutputDir is the rendition-scoped directory receiving the manifest and segments.
	OutputDir    string
	ManifestName string
	Encryption   *EncryptionSpec
}

// EncodingEngine 编码引擎
type EncodingEngine interface {
	Probe(ctx context.Context, path string) (*VideoInfo, error)

	// EncodeRendition returns the path of the variant manifest it wrote.
	EncodeRendition(ctx context.Context, req *EncodeRequest) (string, error)
}
