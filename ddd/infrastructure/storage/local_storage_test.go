package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/pkg/config"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLocalStoragePutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	if err := s.Put(ctx, "hls", "streams/v1/videos/master.m3u8", strings.NewReader("#EXTM3U\n"), 8, "application/vnd.apple.mpegurl"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Exists(ctx, "hls", "streams/v1/videos/master.m3u8")
	if err != nil || !ok {
		t.Fatalf("exists = %v, err = %v", ok, err)
	}
	obj, err := s.Get(ctx, "hls", "streams/v1/videos/master.m3u8")
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Close()
	data, _ := io.ReadAll(obj)
	if string(data) != "#EXTM3U\n" || obj.Size != 8 || obj.ContentType != "application/vnd.apple.mpegurl" {
		t.Fatalf("object = %q size=%d ct=%q", data, obj.Size, obj.ContentType)
	}

	if _, err := s.Get(ctx, "hls", "streams/v1/missing"); !errors.Is(err, gateway.ErrObjectNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.Get(ctx, "hls", "streams/v1"); !errors.Is(err, gateway.ErrObjectNotFound) {
		t.Fatalf("directory should read as missing, err = %v", err)
	}
	if ok, _ := s.Exists(ctx, "hls", "streams/v1"); ok {
		t.Fatal("directory reported as object")
	}
}

func TestLocalStorageShortWrite(t *testing.T) {
	s := newTestStorage(t)
	if err := s.Put(context.Background(), "hls", "a.ts", strings.NewReader("abc"), 10, ""); err == nil {
		t.Fatal("expected short write error")
	}
	if keys, _ := s.ListKeys(context.Background(), "hls", ""); len(keys) != 0 {
		t.Fatalf("partial upload left behind: %v", keys)
	}
}

func TestLocalStorageRejectsBadKeys(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	for _, key := range []string{"", "/", "a/../../etc/passwd", "a/./b"} {
		if err := s.Put(ctx, "hls", key, strings.NewReader(""), 0, ""); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
	for _, bucket := range []string{"", "a/b", ".content-type"} {
		if _, err := s.Exists(ctx, bucket, "k"); err == nil {
			t.Errorf("bucket %q accepted", bucket)
		}
	}
}

func TestLocalStorageListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	for _, key := range []string{"streams/a/1.ts", "streams/a/2.ts", "streams/b/1.ts", "other/x"} {
		if err := s.Put(ctx, "hls", key, strings.NewReader("x"), 1, "video/mp2t"); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := s.ListKeys(ctx, "hls", "streams/a/")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys, ",") != "streams/a/1.ts,streams/a/2.ts" {
		t.Fatalf("keys = %v", keys)
	}
	if keys, _ := s.ListKeys(ctx, "empty", ""); len(keys) != 0 {
		t.Fatalf("missing bucket listed %v", keys)
	}

	if err := s.Delete(ctx, "hls", "streams/"); err != nil {
		t.Fatal(err)
	}
	keys, _ = s.ListKeys(ctx, "hls", "")
	if strings.Join(keys, ",") != "other/x" {
		t.Fatalf("keys after delete = %v", keys)
	}
	if err := s.Delete(ctx, "hls", "nothing/"); err != nil {
		t.Fatalf("deleting a missing prefix: %v", err)
	}
}

func TestNewObjectStorageBackends(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = "local"
	cfg.Storage.LocalRoot = t.TempDir()
	if s, err := NewObjectStorage(cfg); err != nil {
		t.Fatal(err)
	} else if _, ok := s.(*LocalStorage); !ok {
		t.Fatalf("backend = %T", s)
	}

	cfg.Storage.Backend = "ftp"
	if _, err := NewObjectStorage(cfg); err == nil {
		t.Fatal("unknown backend accepted")
	}
}
