package executor

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
)

const (
	segmentPattern = "segment_%05d.ts"
	keySize        = 16
	stderrTailSize = 50
)

// FFmpegEngine drives ffprobe and ffmpeg as the encoding engine.
type FFmpegEngine struct {
	cfg   config.FFmpegConfig
	keyMu sync.Mutex
}

func NewFFmpegEngine(cfg config.FFmpegConfig) *FFmpegEngine {
	return &FFmpegEngine{cfg: cfg}
}

var _ gateway.EncodingEngine = (*FFmpegEngine)(nil)

type probeOutput struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the first video stream's dimensions with ffprobe.
func (e *FFmpegEngine) Probe(ctx context.Context, path string) (*gateway.VideoInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, e.probeBinary(),
		"-v", "error",
		"-probesize", "5M",
		"-analyzeduration", "5M",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height:format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return ParseProbeOutput(out)
}

// ParseProbeOutput decodes ffprobe's JSON output.
func ParseProbeOutput(data []byte) (*gateway.VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found")
	}
	s := out.Streams[0]
	info := &gateway.VideoInfo{Width: s.Width, Height: s.Height, Codec: s.CodecName}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

// EncodeRendition runs one ffmpeg invocation producing a variant manifest and its segments.
func (e *FFmpegEngine) EncodeRendition(ctx context.Context, req *gateway.EncodeRequest) (string, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create rendition dir: %w", err)
	}

	keyInfo := ""
	if req.Encryption != nil {
		if err := e.ensureKey(req.Encryption.KeyPath); err != nil {
			return "", err
		}
		path, err := writeKeyInfo(req.Encryption)
		if err != nil {
			return "", err
		}
		defer os.Remove(path)
		keyInfo = path
	}

	args := BuildEncodeArgs(e.cfg, req, keyInfo)
	logger.Debug("Executing ffmpeg", map[string]interface{}{
		"job_id":  req.JobID,
		"command": e.binary() + " " + strings.Join(args, " "),
	})
	if err := e.run(ctx, exec.CommandContext(ctx, e.binary(), args...)); err != nil {
		return "", err
	}

	manifest := filepath.Join(req.OutputDir, req.ManifestName)
	if _, err := os.Stat(manifest); err != nil {
		return "", fmt.Errorf("ffmpeg produced no manifest: %w", err)
	}
	return manifest, nil
}

// BuildEncodeArgs assembles the ffmpeg arguments for one rendition. keyInfoPath is empty
// when segments are not encrypted.
func BuildEncodeArgs(cfg config.FFmpegConfig, req *gateway.EncodeRequest, keyInfoPath string) []string {
	segment := req.SegmentDuration
	if segment <= 0 {
		segment = 10
	}
	threads := cfg.Threads
	if threads < 0 {
		threads = 0
	}

	args := []string{
		"-hide_banner", "-y",
		"-probesize", "5M",
		"-analyzeduration", "5M",
		"-i", req.SourcePath,
		"-map", "0:v:0", "-map", "0:a:0?",
		"-vf", fmt.Sprintf("scale=%d:%d,format=yuv420p", req.Width, req.Height),
		"-c:v", orDefault(cfg.VideoCodec, "libx264"),
	}
	if preset := strings.TrimSpace(cfg.VideoPreset); preset != "" && !strings.Contains(strings.ToLower(cfg.VideoCodec), "nvenc") {
		args = append(args, "-preset", preset)
	}
	args = append(args,
		"-b:v", strconv.Itoa(req.VideoBitrate),
		"-maxrate", strconv.Itoa(req.VideoBitrate),
		"-bufsize", strconv.Itoa(req.VideoBitrate*2),
	)
	if req.AudioBitrate > 0 {
		args = append(args, "-c:a", orDefault(cfg.AudioCodec, "aac"), "-b:a", strconv.Itoa(req.AudioBitrate))
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-threads", strconv.Itoa(threads),
		"-sc_threshold", "0",
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n*%d)", segment),
		"-hls_time", strconv.Itoa(segment),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(req.OutputDir, segmentPattern),
	)
	if keyInfoPath != "" {
		args = append(args, "-hls_key_info_file", keyInfoPath)
	}
	args = append(args, "-f", "hls", filepath.Join(req.OutputDir, req.ManifestName))
	return args
}

// ensureKey writes a random AES-128 key to path unless one is already there, so every
// rendition of a job shares the same key.
func (e *FFmpegEngine) ensureKey(path string) error {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	if info, err := os.Stat(path); err == nil && info.Size() == keySize {
		return nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generate encryption key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, key, 0o600)
}

// writeKeyInfo creates the key info file outside the output tree: key URI, then key path.
func writeKeyInfo(enc *gateway.EncryptionSpec) (string, error) {
	f, err := os.CreateTemp("", "keyinfo-*.txt")
	if err != nil {
		return "", err
	}
	_, err = fmt.Fprintf(f, "%s\n%s\n", enc.KeyURL, enc.KeyPath)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (e *FFmpegEngine) run(ctx context.Context, cmd *exec.Cmd) error {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	tail := make(chan []string, 1)
	go func() { tail <- captureTail(stderr, stderrTailSize) }()

	waitErr := cmd.Wait()
	lines := <-tail
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", waitErr, strings.Join(lines, "\n"))
	}
	return nil
}

// captureTail keeps the last n lines written to r.
func captureTail(r io.Reader, n int) []string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	lines := make([]string, 0, n)
	for scanner.Scan() {
		if len(lines) == n {
			lines = lines[1:]
		}
		lines = append(lines, scanner.Text())
	}
	return lines
}

func (e *FFmpegEngine) binary() string {
	return orDefault(e.cfg.BinaryPath, "ffmpeg")
}

func (e *FFmpegEngine) probeBinary() string {
	return orDefault(e.cfg.ProbePath, "ffprobe")
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
