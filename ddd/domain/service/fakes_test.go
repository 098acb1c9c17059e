package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
)

// fakeEngine writes a small HLS tree for every rendition instead of running ffmpeg.
type fakeEngine struct {
	mu        sync.Mutex
	info      *gateway.VideoInfo
	probeErr  error
	failWidth map[int]bool
	block     bool
	probes    int
	requests  []gateway.EncodeRequest
}

func newFakeEngine(width, height int) *fakeEngine {
	return &fakeEngine{info: &gateway.VideoInfo{Width: width, Height: height, Codec: "h264"}, failWidth: map[int]bool{}}
}

func (e *fakeEngine) Probe(context.Context, string) (*gateway.VideoInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.probes++
	if e.probeErr != nil {
		return nil, e.probeErr
	}
	return e.info, nil
}

func (e *fakeEngine) EncodeRendition(ctx context.Context, req *gateway.EncodeRequest) (string, error) {
	e.mu.Lock()
	e.requests = append(e.requests, *req)
	fail := e.failWidth[req.Width]
	block := e.block
	e.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fail {
		return "", errors.New("encoder exited with status 1")
	}
	if req.Encryption != nil {
		if _, err := os.Stat(req.Encryption.KeyPath); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(req.Encryption.KeyPath, []byte("0123456789abcdef"), 0o600); err != nil {
				return "", err
			}
		}
	}
	manifest := filepath.Join(req.OutputDir, req.ManifestName)
	body := fmt.Sprintf("#EXTM3U\n#EXT-X-TARGETDURATION:%d\n#EXTINF:%d,\nsegment_00000.ts\n#EXT-X-ENDLIST\n", req.SegmentDuration, req.SegmentDuration)
	if err := os.WriteFile(manifest, []byte(body), 0o644); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(req.OutputDir, "segment_00000.ts"), []byte{0x47, 0x40, 0x00}, 0o644); err != nil {
		return "", err
	}
	return manifest, nil
}

// recordingSink keeps every delivered outcome.
type recordingSink struct {
	mu       sync.Mutex
	outcomes []vo.JobOutcome
	targets  []string
	err      error
}

func (s *recordingSink) Notify(_ context.Context, target string, outcome vo.JobOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	s.targets = append(s.targets, target)
	return s.err
}

func specs1080() []vo.RenditionSpec {
	return []vo.RenditionSpec{
		{VideoBitrate: 600_000, AudioBitrate: 128_000, Width: 320, Height: -1},
		{VideoBitrate: 1_200_000, AudioBitrate: 256_000, Width: 854, Height: -1},
	}
}

type memObject struct {
	data        []byte
	contentType string
}

// memStorage is an in-memory ObjectStorage.
type memStorage struct {
	mu      sync.Mutex
	objects map[string]memObject
	putErr  error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string]memObject{}}
}

func (s *memStorage) Exists(_ context.Context, bucket, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[bucket+"/"+key]
	return ok, nil
}

func (s *memStorage) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = memObject{data: data, contentType: contentType}
	return nil
}

func (s *memStorage) Get(_ context.Context, bucket, key string) (*gateway.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, gateway.ErrObjectNotFound
	}
	return &gateway.Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(obj.data)),
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
	}, nil
}

func (s *memStorage) ListKeys(_ context.Context, bucket, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if key, ok := strings.CutPrefix(k, bucket+"/"); ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memStorage) Delete(ctx context.Context, bucket, prefix string) error {
	keys, _ := s.ListKeys(ctx, bucket, prefix)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, bucket+"/"+k)
	}
	return nil
}
