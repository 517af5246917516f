package generation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avelarde/musicvideo-api/internal/media"
	"github.com/avelarde/musicvideo-api/internal/storage"
	"github.com/avelarde/musicvideo-api/internal/video"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH, skipping test")
	}
}

func createSilentAudio(t *testing.T, path string, duration float64) {
	t.Helper()
	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\noutput: %s", err, output)
	}
}

// TestGenerateEndToEnd renders a real file through ffmpeg: a three second
// silent track with no background becomes a ready solid-colour video.
func TestGenerateEndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)

	mediaRoot := t.TempDir()
	store, err := storage.NewMediaStore(mediaRoot, t.TempDir())
	if err != nil {
		t.Fatalf("create media store: %v", err)
	}

	audioRel := "audio/silence.wav"
	if err := os.MkdirAll(filepath.Dir(store.Abs(audioRel)), 0o750); err != nil {
		t.Fatalf("create audio directory: %v", err)
	}
	createSilentAudio(t, store.Abs(audioRel), 3.0)

	videos := video.NewMemoryRepository()
	tracks := video.NewMemoryTrackRepository()

	track := video.NewTrack("Silent Song", audioRel)
	track.Lyrics = "quiet verse"
	if err := tracks.Save(context.Background(), track); err != nil {
		t.Fatalf("save track: %v", err)
	}
	v := video.New(track.ID, "Silent Video")
	if err := videos.Save(context.Background(), v); err != nil {
		t.Fatalf("save video: %v", err)
	}

	composer := media.NewFFmpegComposer("", "")
	svc := NewService(videos, tracks, composer, store, nil)

	got, err := svc.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if got.Status != video.StatusReady {
		t.Fatalf("Status = %q (error %q: %s), want %q",
			got.Status, got.ErrorCode, got.ErrorMessage, video.StatusReady)
	}
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want 100", got.Progress)
	}
	if got.DurationSeconds != 3 {
		t.Errorf("DurationSeconds = %d, want 3", got.DurationSeconds)
	}
	if got.Resolution != "1280x720" {
		t.Errorf("Resolution = %q, want 1280x720", got.Resolution)
	}
	if got.AspectRatio != "16:9" {
		t.Errorf("AspectRatio = %q, want 16:9", got.AspectRatio)
	}
	if got.FileSizeBytes <= 0 {
		t.Errorf("FileSizeBytes = %d, want > 0", got.FileSizeBytes)
	}
	if !store.Exists(got.OutputPath) {
		t.Errorf("output %q does not exist under the media root", got.OutputPath)
	}

	probe, err := composer.ProbeVideo(context.Background(), store.Abs(got.OutputPath))
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	if probe.Width != 1280 || probe.Height != 720 {
		t.Errorf("output dimensions = %dx%d, want 1280x720", probe.Width, probe.Height)
	}
	if probe.DurationSec < 2.5 || probe.DurationSec > 3.5 {
		t.Errorf("output duration = %.2f, want about 3s", probe.DurationSec)
	}

	if !strings.Contains(got.GenerationLog, "Video generation completed") {
		t.Errorf("GenerationLog missing completion line:\n%s", got.GenerationLog)
	}
}

// TestGenerateEndToEnd_MissingAudio exercises the failure path with the
// real composer: a track whose audio file never existed.
func TestGenerateEndToEnd_MissingAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	store, err := storage.NewMediaStore(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("create media store: %v", err)
	}

	videos := video.NewMemoryRepository()
	tracks := video.NewMemoryTrackRepository()

	track := video.NewTrack("Ghost Song", "audio/missing.wav")
	if err := tracks.Save(context.Background(), track); err != nil {
		t.Fatalf("save track: %v", err)
	}
	v := video.New(track.ID, "Ghost Video")
	if err := videos.Save(context.Background(), v); err != nil {
		t.Fatalf("save video: %v", err)
	}

	svc := NewService(videos, tracks, media.NewFFmpegComposer("", ""), store, nil)

	got, err := svc.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Status != video.StatusFailed {
		t.Fatalf("Status = %q, want %q", got.Status, video.StatusFailed)
	}
	if got.ErrorCode != CodeAudioMissing {
		t.Errorf("ErrorCode = %q, want %q", got.ErrorCode, CodeAudioMissing)
	}
	if !strings.Contains(got.GenerationLog, "Generation failed") {
		t.Errorf("GenerationLog missing failure line:\n%s", got.GenerationLog)
	}
}
