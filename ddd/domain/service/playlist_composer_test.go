package service

import (
	"errors"
	"os"
	"testing"

	"streaming-engine/ddd/domain/vo"
)

func result(spec vo.RenditionSpec, w, h int, manifest string, ok bool) vo.RenditionResult {
	return vo.RenditionResult{
		Params:       vo.RenditionParams{Spec: spec, Width: w, Height: h},
		ManifestPath: manifest,
		Success:      ok,
	}
}

func TestComposeKeepsSubmissionOrderAndSkipsFailures(t *testing.T) {
	s := specs1080()
	results := []vo.RenditionResult{
		result(s[0], 320, 180, "00_320x180/playlist.m3u8", true),
		result(vo.RenditionSpec{VideoBitrate: 5, Width: 640}, 640, 360, "", false),
		result(s[1], 854, 480, "02_854x480/playlist.m3u8", true),
	}
	composer := NewPlaylistComposer()
	playlist, err := composer.Compose(results)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	want := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=728000,RESOLUTION=320x180\n00_320x180/playlist.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1456000,RESOLUTION=854x480\n02_854x480/playlist.m3u8\n"
	if got := playlist.Render(); got != want {
		t.Fatalf("render:\n%s\nwant:\n%s", got, want)
	}

	path, err := composer.Write(playlist, t.TempDir(), "master.m3u8")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != want {
		t.Fatalf("written = %q", data)
	}
}

func TestComposeZeroSuccesses(t *testing.T) {
	_, err := NewPlaylistComposer().Compose([]vo.RenditionResult{
		result(specs1080()[0], 320, 180, "", false),
	})
	if !errors.Is(err, vo.ErrNoSuccessfulRenditions) {
		t.Fatalf("err = %v", err)
	}
	if err.Error() != "no successful renditions" {
		t.Fatalf("message = %q", err.Error())
	}
}
