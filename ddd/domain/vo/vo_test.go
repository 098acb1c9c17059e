package vo

import (
	"errors"
	"fmt"
	"testing"
)

func TestMasterPlaylistRender(t *testing.T) {
	m := &MasterPlaylist{Entries: []VariantEntry{
		{Bandwidth: 728000, Resolution: "320x180", ManifestPath: "00_320x180/playlist.m3u8"},
		{Bandwidth: 1456000, Resolution: "854x480", ManifestPath: "01_854x480/playlist.m3u8"},
	}}
	want := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=728000,RESOLUTION=320x180\n00_320x180/playlist.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1456000,RESOLUTION=854x480\n01_854x480/playlist.m3u8\n"
	if got := m.Render(); got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
	if got := (&MasterPlaylist{}).Render(); got != "#EXTM3U\n" {
		t.Fatalf("empty Render() = %q", got)
	}
}

func TestJobStateTransitions(t *testing.T) {
	path := []JobState{JobStatePending, JobStateFetching, JobStateEncoding, JobStateComposing,
		JobStatePublishing, JobStateCleaning, JobStateNotified}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransitionTo(path[i+1]) {
			t.Errorf("%s -> %s should be allowed", path[i], path[i+1])
		}
	}
	for _, s := range []JobState{JobStateFetching, JobStateEncoding, JobStateComposing, JobStatePublishing} {
		if !s.CanTransitionTo(JobStateFailed) {
			t.Errorf("%s -> failed should be allowed", s)
		}
	}
	invalid := [][2]JobState{
		{JobStatePending, JobStateFailed},
		{JobStateCleaning, JobStateFailed},
		{JobStateFailed, JobStateCleaning},
		{JobStateNotified, JobStatePending},
		{JobStateEncoding, JobStatePublishing},
	}
	for _, c := range invalid {
		if c[0].CanTransitionTo(c[1]) {
			t.Errorf("%s -> %s should be rejected", c[0], c[1])
		}
	}
	if !JobStateNotified.IsTerminal() || JobStateFailed.IsTerminal() {
		t.Error("only notified is terminal")
	}
	if JobState("bogus").IsValid() {
		t.Error("unknown state reported valid")
	}
}

func TestJobOutcomeForm(t *testing.T) {
	errs := []string{"encode failed", "publish failed"}
	o := NewJobOutcome("job-1", false, errs)
	errs[0] = "mutated"

	form := o.Form()
	if form.Get("success") != "false" || form.Get("id") != "job-1" {
		t.Fatalf("form = %v", form)
	}
	if got := form["errors"]; len(got) != 2 || got[0] != "encode failed" {
		t.Fatalf("errors = %v", got)
	}

	ok := NewJobOutcome("video-42", true, nil)
	if ok.Errors == nil || len(ok.Form()["errors"]) != 0 {
		t.Fatalf("success outcome = %+v", ok)
	}
}

func TestRenditionSpec(t *testing.T) {
	s := RenditionSpec{VideoBitrate: 600000, AudioBitrate: 128000, Width: 320, Height: -1}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if !s.DerivesHeight() || s.Bandwidth() != 728000 {
		t.Fatalf("spec = %+v", s)
	}
	bad := []RenditionSpec{
		{VideoBitrate: 1, Width: 0},
		{VideoBitrate: 0, Width: 10},
		{VideoBitrate: 1, AudioBitrate: -1, Width: 10},
	}
	for _, b := range bad {
		if b.Validate() == nil {
			t.Errorf("%s should be invalid", b)
		}
	}
	if len(FallbackRenditions()) == 0 {
		t.Error("fallback table is empty")
	}
}

func TestJobErrorMatchesKind(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("wrapped: %w", NewJobError(ErrEncode, JobStateEncoding, "rendition 0 320x180", cause))
	if !errors.Is(err, ErrEncode) || errors.Is(err, ErrPublish) {
		t.Fatal("kind mismatch")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not unwrapped")
	}
	want := "encode failed (rendition 0 320x180): exit status 1"
	var jobErr *JobError
	if !errors.As(err, &jobErr) || jobErr.Error() != want {
		t.Fatalf("error = %v", jobErr)
	}
}
