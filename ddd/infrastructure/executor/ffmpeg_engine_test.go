package executor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/pkg/config"
)

func argValue(args []string, flag string) (string, bool) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

func TestBuildEncodeArgs(t *testing.T) {
	cfg := config.FFmpegConfig{VideoCodec: "libx264", VideoPreset: "veryfast", Threads: 2}
	req := &gateway.EncodeRequest{
		SourcePath:      "/in/src.mp4",
		Width:           854,
		Height:          480,
		VideoBitrate:    1200000,
		AudioBitrate:    256000,
		SegmentDuration: 6,
		OutputDir:       "/out/01_854x480",
		ManifestName:    "playlist.m3u8",
	}
	args := BuildEncodeArgs(cfg, req, "")

	checks := map[string]string{
		"-i":                    "/in/src.mp4",
		"-vf":                   "scale=854:480,format=yuv420p",
		"-c:v":                  "libx264",
		"-preset":               "veryfast",
		"-b:v":                  "1200000",
		"-bufsize":              "2400000",
		"-c:a":                  "aac",
		"-b:a":                  "256000",
		"-threads":              "2",
		"-hls_time":             "6",
		"-force_key_frames":     "expr:gte(t,n*6)",
		"-hls_playlist_type":    "vod",
		"-hls_segment_filename": filepath.Join("/out/01_854x480", "segment_%05d.ts"),
		"-f":                    "hls",
	}
	for flag, want := range checks {
		if got, ok := argValue(args, flag); !ok || got != want {
			t.Errorf("%s = %q, want %q", flag, got, want)
		}
	}
	if last := args[len(args)-1]; last != filepath.Join("/out/01_854x480", "playlist.m3u8") {
		t.Errorf("output = %q", last)
	}
	if _, ok := argValue(args, "-hls_key_info_file"); ok {
		t.Error("unexpected key info without encryption")
	}
}

func TestBuildEncodeArgsVariants(t *testing.T) {
	req := &gateway.EncodeRequest{SourcePath: "s", Width: 320, Height: 180, VideoBitrate: 1, OutputDir: "o", ManifestName: "p.m3u8"}
	args := BuildEncodeArgs(config.FFmpegConfig{VideoCodec: "h264_nvenc", VideoPreset: "fast"}, req, "/tmp/ki.txt")

	joined := strings.Join(args, " ")
	if strings.Contains(joined, "-preset") {
		t.Error("preset must be skipped for nvenc")
	}
	if !strings.Contains(joined, " -an ") {
		t.Error("zero audio bitrate should drop audio")
	}
	if v, _ := argValue(args, "-hls_time"); v != "10" {
		t.Errorf("default segment duration = %s", v)
	}
	if v, _ := argValue(args, "-hls_key_info_file"); v != "/tmp/ki.txt" {
		t.Errorf("key info = %s", v)
	}
}

func TestParseProbeOutput(t *testing.T) {
	info, err := ParseProbeOutput([]byte(`{"streams":[{"codec_name":"h264","width":1920,"height":1080}],"format":{"duration":"12.500000"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 1920 || info.Height != 1080 || info.Codec != "h264" || info.Duration != 12.5 {
		t.Fatalf("info = %+v", info)
	}
	if _, err := ParseProbeOutput([]byte(`{"streams":[]}`)); err == nil {
		t.Fatal("expected error without video stream")
	}
	if _, err := ParseProbeOutput([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEnsureKeyCreatedOnce(t *testing.T) {
	e := NewFFmpegEngine(config.FFmpegConfig{})
	path := filepath.Join(t.TempDir(), "out", "keys")
	if err := e.ensureKey(path); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil || len(first) != keySize {
		t.Fatalf("key = %x, err = %v", first, err)
	}
	if err := e.ensureKey(path); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Fatal("key was regenerated")
	}
}

func TestWriteKeyInfo(t *testing.T) {
	path, err := writeKeyInfo(&gateway.EncryptionSpec{KeyURL: "/keys/job-1", KeyPath: "/scratch/out/keys"})
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)
	data, _ := os.ReadFile(path)
	if string(data) != "/keys/job-1\n/scratch/out/keys\n" {
		t.Fatalf("key info = %q", data)
	}
}

func TestCaptureTail(t *testing.T) {
	lines := captureTail(strings.NewReader("a\nb\nc\nd\n"), 2)
	if strings.Join(lines, ",") != "c,d" {
		t.Fatalf("tail = %v", lines)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEncodeRenditionWithScript(t *testing.T) {
	bin := writeScript(t, "for a; do last=$a; done\necho '#EXTM3U' > \"$last\"\n")
	e := NewFFmpegEngine(config.FFmpegConfig{BinaryPath: bin})
	out := filepath.Join(t.TempDir(), "00_320x180")
	manifest, err := e.EncodeRendition(context.Background(), &gateway.EncodeRequest{
		SourcePath: "src.mp4", Width: 320, Height: 180, VideoBitrate: 600000,
		OutputDir: out, ManifestName: "playlist.m3u8",
		Encryption: &gateway.EncryptionSpec{KeyPath: filepath.Join(t.TempDir(), "keys"), KeyURL: "/keys/j"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if manifest != filepath.Join(out, "playlist.m3u8") {
		t.Fatalf("manifest = %s", manifest)
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 1 {
		t.Fatalf("output dir should only hold the manifest, got %d entries", len(entries))
	}
}

func TestEncodeRenditionFailureCarriesStderr(t *testing.T) {
	bin := writeScript(t, "echo 'Invalid data found' >&2\nexit 1\n")
	e := NewFFmpegEngine(config.FFmpegConfig{BinaryPath: bin})
	_, err := e.EncodeRendition(context.Background(), &gateway.EncodeRequest{
		OutputDir: t.TempDir(), ManifestName: "playlist.m3u8",
	})
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("err = %v", err)
	}
}

func TestProbeMissingFile(t *testing.T) {
	e := NewFFmpegEngine(config.FFmpegConfig{})
	if _, err := e.Probe(context.Background(), filepath.Join(t.TempDir(), "absent.mp4")); err == nil {
		t.Fatal("expected error")
	}
}
