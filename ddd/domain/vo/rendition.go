package vo

import (
	"fmt"

	"streaming-engine/pkg/config"
)

// RenditionSpec 渲染规格，Height<=0 表示按源宽高比推导
type RenditionSpec struct {
	VideoBitrate int `json:"video_bitrate"`
	AudioBitrate int `json:"audio_bitrate"`
	Width        int `json:"width"`
	Height       int `json:"height"`
}

// Validate 验证渲染规格
func (s RenditionSpec) Validate() error {
	if s.Width <= 0 {
		return fmt.Errorf("rendition width must be positive, got %d", s.Width)
	}
	if s.VideoBitrate <= 0 {
		return fmt.Errorf("rendition video bitrate must be positive, got %d", s.VideoBitrate)
	}
	if s.AudioBitrate < 0 {
		return fmt.Errorf("rendition audio bitrate must not be negative, got %d", s.AudioBitrate)
	}
	return nil
}

// DerivesHeight reports whether the height has to come from the source aspect ratio.
func (s RenditionSpec) DerivesHeight() bool {
	return s.Height <= 0
}

// Bandwidth is the combined bitrate advertised in the master manifest.
func (s RenditionSpec) Bandwidth() int {
	return s.VideoBitrate + s.AudioBitrate
}

func (s RenditionSpec) String() string {
	return fmt.Sprintf("%dx%d@%d+%d", s.Width, s.Height, s.VideoBitrate, s.AudioBitrate)
}

// RenditionParams 具体的编码参数
type RenditionParams struct {
	Spec   RenditionSpec
	Width  int
	Height int
}

// Resolution 返回 WxH 形式的分辨率标签
func (p RenditionParams) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// RenditionResult 单个渲染的编码结果
type RenditionResult struct {
	Params RenditionParams
	// ManifestPath is relative to the directory holding the master manifest.
	ManifestPath string
	Success      bool
}

// Spec 返回结果对应的渲染规格
func (r RenditionResult) Spec() RenditionSpec {
	return r.Params.Spec
}

// SpecsFromPresets converts configured presets into rendition specs.
func SpecsFromPresets(presets []config.RenditionPreset) []RenditionSpec {
	specs := make([]RenditionSpec, 0, len(presets))
	for _, p := range presets {
		specs = append(specs, RenditionSpec{
			VideoBitrate: p.VideoBitrate,
			AudioBitrate: p.AudioBitrate,
			Width:        p.Width,
			Height:       p.Height,
		})
	}
	return specs
}

// FallbackRenditions 返回文档化的默认渲染表
func FallbackRenditions() []RenditionSpec {
	return SpecsFromPresets(config.DefaultRenditions())
}
