package vo

import (
	"fmt"
	"strings"
)

const masterPlaylistHeader = "#EXTM3U"

// VariantEntry 主播放列表中的一个变体条目
type VariantEntry struct {
	Bandwidth    int
	Resolution   string
	ManifestPath string
}

// MasterPlaylist 主播放列表
type MasterPlaylist struct {
	Entries []VariantEntry
}

// Render serializes the playlist in entry order.
func (m *MasterPlaylist) Render() string {
	var b strings.Builder
	b.WriteString(masterPlaylistHeader)
	b.WriteString("\n")
	for _, e := range m.Entries {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n%s\n", e.Bandwidth, e.Resolution, e.ManifestPath)
	}
	return b.String()
}
