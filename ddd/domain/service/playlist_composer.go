package service

import (
	"os"
	"path/filepath"

	"streaming-engine/ddd/domain/vo"
)

// PlaylistComposer builds the master manifest from successful renditions.
type PlaylistComposer interface {
	Compose(results []vo.RenditionResult) (*vo.MasterPlaylist, error)
	// Write stores the rendered playlist as dir/name and returns the file path.
	Write(playlist *vo.MasterPlaylist, dir, name string) (string, error)
}

type playlistComposerImpl struct{}

func NewPlaylistComposer() PlaylistComposer {
	return &playlistComposerImpl{}
}

func (c *playlistComposerImpl) Compose(results []vo.RenditionResult) (*vo.MasterPlaylist, error) {
	playlist := &vo.MasterPlaylist{}
	for _, r := range results {
		if !r.Success {
			continue
		}
		playlist.Entries = append(playlist.Entries, vo.VariantEntry{
			Bandwidth:    r.Spec().Bandwidth(),
			Resolution:   r.Params.Resolution(),
			ManifestPath: r.ManifestPath,
		})
	}
	if len(playlist.Entries) == 0 {
		return nil, vo.NewJobError(vo.ErrNoSuccessfulRenditions, vo.JobStateComposing, "", nil)
	}
	return playlist, nil
}

func (c *playlistComposerImpl) Write(playlist *vo.MasterPlaylist, dir, name string) (string, error) {
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(playlist.Render()), 0o644); err != nil {
		return "", err
	}
	return target, nil
}
