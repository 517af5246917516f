package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/avelarde/musicvideo-api/internal/media"
	"github.com/avelarde/musicvideo-api/internal/storage"
	"github.com/avelarde/musicvideo-api/internal/video"
)

// fakeComposer is an in-memory Composer for orchestrator tests. Render
// writes a small artifact so output attachment is exercised for real.
type fakeComposer struct {
	mu sync.Mutex

	availableErr  error
	audioDur      float64
	audioErr      error
	videoProbes   map[string]media.Probe
	renderErr     error
	renderGate    chan struct{}
	renderStarted chan struct{}
	startedOnce   sync.Once
	rendered      []media.RenderSpec
}

func (c *fakeComposer) Available(_ context.Context) error {
	return c.availableErr
}

func (c *fakeComposer) ProbeAudio(_ context.Context, _ string) (float64, error) {
	return c.audioDur, c.audioErr
}

func (c *fakeComposer) ProbeVideo(_ context.Context, path string) (media.Probe, error) {
	probe, ok := c.videoProbes[path]
	if !ok {
		return media.Probe{}, fmt.Errorf("no probe for %s", path)
	}
	return probe, nil
}

func (c *fakeComposer) Render(_ context.Context, spec media.RenderSpec) error {
	if c.renderStarted != nil {
		c.startedOnce.Do(func() { close(c.renderStarted) })
	}
	if c.renderGate != nil {
		<-c.renderGate
	}
	c.mu.Lock()
	c.rendered = append(c.rendered, spec)
	c.mu.Unlock()
	if c.renderErr != nil {
		return c.renderErr
	}
	return os.WriteFile(spec.OutputPath, []byte("RENDERED"), 0o600)
}

func (c *fakeComposer) lastRender(t *testing.T) media.RenderSpec {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rendered) == 0 {
		t.Fatal("expected at least one render call")
	}
	return c.rendered[len(c.rendered)-1]
}

type testEnv struct {
	service  *Service
	videos   *video.MemoryRepository
	tracks   *video.MemoryTrackRepository
	composer *fakeComposer
	store    *storage.MediaStore
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	store, err := storage.NewMediaStore(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("create media store: %v", err)
	}

	videos := video.NewMemoryRepository()
	tracks := video.NewMemoryTrackRepository()
	composer := &fakeComposer{audioDur: 7.6}

	return &testEnv{
		service:  NewService(videos, tracks, composer, store, nil, WithOptions(opts)),
		videos:   videos,
		tracks:   tracks,
		composer: composer,
		store:    store,
	}
}

// addTrack stores a track and its audio file under the media root.
func (e *testEnv) addTrack(t *testing.T) *video.Track {
	t.Helper()

	track := video.NewTrack("Test Song", "audio/test_song.mp3")
	track.Lyrics = "la la la"
	if err := e.store.SaveNamed(context.Background(), track.AudioPath, bytes.NewReader([]byte("MP3"))); err != nil {
		t.Fatalf("save audio: %v", err)
	}
	if err := e.tracks.Save(context.Background(), track); err != nil {
		t.Fatalf("save track: %v", err)
	}
	return track
}

func (e *testEnv) addVideo(t *testing.T, trackID string) *video.Video {
	t.Helper()

	v := video.New(trackID, "Test Video")
	if err := e.videos.Save(context.Background(), v); err != nil {
		t.Fatalf("save video: %v", err)
	}
	return v
}

func (e *testEnv) stored(t *testing.T, id string) *video.Video {
	t.Helper()

	v, err := e.videos.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find video: %v", err)
	}
	return v
}

func TestGenerateAudioOnly(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got.Status != video.StatusReady {
		t.Fatalf("status = %s, want %s", got.Status, video.StatusReady)
	}
	if got.Progress != 100 {
		t.Errorf("progress = %d, want 100", got.Progress)
	}
	if got.DurationSeconds != 7 {
		t.Errorf("duration = %d, want 7", got.DurationSeconds)
	}
	if got.Resolution != "1280x720" {
		t.Errorf("resolution = %q, want 1280x720", got.Resolution)
	}
	if got.AspectRatio != "16:9" {
		t.Errorf("aspect ratio = %q, want 16:9", got.AspectRatio)
	}
	if got.OutputPath == "" || !env.store.Exists(got.OutputPath) {
		t.Errorf("output %q does not exist in store", got.OutputPath)
	}
	if got.FileSizeBytes != int64(len("RENDERED")) {
		t.Errorf("file size = %d, want %d", got.FileSizeBytes, len("RENDERED"))
	}
	if got.PromptUsed == "" || !strings.Contains(got.PromptUsed, track.Lyrics) {
		t.Errorf("prompt %q does not include lyrics", got.PromptUsed)
	}

	spec := env.composer.lastRender(t)
	if spec.BackgroundPath != "" {
		t.Errorf("audio-only render got background %q", spec.BackgroundPath)
	}
	if spec.Width != 1280 || spec.Height != 720 {
		t.Errorf("render size = %dx%d, want 1280x720", spec.Width, spec.Height)
	}
}

func TestGenerateMissingAudioFile(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	track := video.NewTrack("Ghost Song", "audio/missing.mp3")
	if err := env.tracks.Save(context.Background(), track); err != nil {
		t.Fatalf("save track: %v", err)
	}
	v := env.addVideo(t, track.ID)

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got.Status != video.StatusFailed {
		t.Fatalf("status = %s, want %s", got.Status, video.StatusFailed)
	}
	if got.ErrorCode != CodeAudioMissing {
		t.Errorf("error code = %q, want %q", got.ErrorCode, CodeAudioMissing)
	}
	if got.Progress != 0 {
		t.Errorf("progress = %d, want 0", got.Progress)
	}
	if got.OutputPath != "" {
		t.Errorf("output path = %q, want empty", got.OutputPath)
	}

	stored := env.stored(t, v.ID)
	if !strings.Contains(stored.GenerationLog, "Generation failed") {
		t.Errorf("log missing failure line:\n%s", stored.GenerationLog)
	}
}

func TestGenerateMissingTrack(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	v := env.addVideo(t, "trk-gone")

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Status != video.StatusFailed || got.ErrorCode != CodeAudioMissing {
		t.Fatalf("got %s/%s, want %s/%s", got.Status, got.ErrorCode, video.StatusFailed, CodeAudioMissing)
	}
}

func TestGenerateBackgroundTrimsToShortest(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	env.composer.audioDur = 5

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)
	v.BackgroundPath = "backgrounds/clip.mp4"
	if err := env.store.SaveNamed(context.Background(), v.BackgroundPath, bytes.NewReader([]byte("MP4"))); err != nil {
		t.Fatalf("save background: %v", err)
	}
	if err := env.videos.Save(context.Background(), v); err != nil {
		t.Fatalf("save video: %v", err)
	}
	env.composer.videoProbes = map[string]media.Probe{
		env.store.Abs(v.BackgroundPath): {DurationSec: 3, Width: 1920, Height: 1080},
	}

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got.Status != video.StatusReady {
		t.Fatalf("status = %s, want %s", got.Status, video.StatusReady)
	}
	if got.DurationSeconds != 3 {
		t.Errorf("duration = %d, want 3", got.DurationSeconds)
	}
	if got.Resolution != "1920x1080" {
		t.Errorf("resolution = %q, want 1920x1080", got.Resolution)
	}

	spec := env.composer.lastRender(t)
	if spec.DurationSec != 3 {
		t.Errorf("render duration = %v, want 3", spec.DurationSec)
	}
	if spec.BackgroundPath == "" {
		t.Error("render missing background path")
	}
}

func TestGenerateZeroDurationWithBackgroundFails(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	env.composer.audioDur = 0

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)
	v.BackgroundPath = "backgrounds/clip.mp4"
	if err := env.store.SaveNamed(context.Background(), v.BackgroundPath, bytes.NewReader([]byte("MP4"))); err != nil {
		t.Fatalf("save background: %v", err)
	}
	if err := env.videos.Save(context.Background(), v); err != nil {
		t.Fatalf("save video: %v", err)
	}
	env.composer.videoProbes = map[string]media.Probe{
		env.store.Abs(v.BackgroundPath): {DurationSec: 0, Width: 640, Height: 480},
	}

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Status != video.StatusFailed || got.ErrorCode != CodeDurationInvalid {
		t.Fatalf("got %s/%s, want %s/%s", got.Status, got.ErrorCode, video.StatusFailed, CodeDurationInvalid)
	}
}

func TestGenerateZeroAudioDurationClampsToFloor(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	env.composer.audioDur = 0

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Status != video.StatusReady {
		t.Fatalf("status = %s, want %s", got.Status, video.StatusReady)
	}
	if got.DurationSeconds != 1 {
		t.Errorf("duration = %d, want 1", got.DurationSeconds)
	}
}

func TestGenerateBackgroundRequired(t *testing.T) {
	opts := DefaultOptions()
	opts.Background = BackgroundRequired
	env := newTestEnv(t, opts)

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Status != video.StatusFailed || got.ErrorCode != CodeBackgroundMissing {
		t.Fatalf("got %s/%s, want %s/%s", got.Status, got.ErrorCode, video.StatusFailed, CodeBackgroundMissing)
	}
}

func TestGenerateBackgroundPathNotOnDisk(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)
	v.BackgroundPath = "backgrounds/gone.mp4"
	if err := env.videos.Save(context.Background(), v); err != nil {
		t.Fatalf("save video: %v", err)
	}

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Status != video.StatusFailed || got.ErrorCode != CodeBackgroundMissing {
		t.Fatalf("got %s/%s, want %s/%s", got.Status, got.ErrorCode, video.StatusFailed, CodeBackgroundMissing)
	}

	// The prompt is resolved before the background check, so the audit
	// trail survives the failure.
	stored := env.stored(t, v.ID)
	if stored.PromptUsed == "" {
		t.Error("prompt not persisted before failure")
	}
}

func TestGenerateComposerUnavailableStrict(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	env.composer.availableErr = errors.New("ffmpeg not installed")

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Status != video.StatusFailed || got.ErrorCode != CodeCompositionMissing {
		t.Fatalf("got %s/%s, want %s/%s", got.Status, got.ErrorCode, video.StatusFailed, CodeCompositionMissing)
	}
}

func TestGenerateComposerUnavailablePermissive(t *testing.T) {
	opts := DefaultOptions()
	opts.Composition = CompositionPermissive
	env := newTestEnv(t, opts)
	env.composer.availableErr = errors.New("ffmpeg not installed")

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Status != video.StatusReady {
		t.Fatalf("status = %s, want %s", got.Status, video.StatusReady)
	}
	if got.DurationSeconds != placeholderDurationSec {
		t.Errorf("duration = %d, want %d", got.DurationSeconds, placeholderDurationSec)
	}

	data, err := os.ReadFile(env.store.Abs(got.OutputPath))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(data, placeholderOutput) {
		t.Errorf("output = %q, want placeholder", data)
	}
}

func TestGenerateRenderFailure(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	env.composer.renderErr = errors.New("encoder exploded")

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Status != video.StatusFailed || got.ErrorCode != CodeGeneric {
		t.Fatalf("got %s/%s, want %s/%s", got.Status, got.ErrorCode, video.StatusFailed, CodeGeneric)
	}
	if !strings.Contains(got.ErrorMessage, "encoder exploded") {
		t.Errorf("error message %q missing cause", got.ErrorMessage)
	}
}

func TestGenerateRejectsConcurrentAttempt(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	env.composer.renderGate = make(chan struct{})
	env.composer.renderStarted = make(chan struct{})

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	done := make(chan error, 1)
	go func() {
		_, err := env.service.Generate(context.Background(), v.ID)
		done <- err
	}()

	// Wait until the first attempt is mid-render, then try again.
	<-env.composer.renderStarted
	_, second := env.service.Generate(context.Background(), v.ID)
	close(env.composer.renderGate)

	if !errors.Is(second, ErrGenerationInProgress) {
		t.Fatalf("second attempt error = %v, want ErrGenerationInProgress", second)
	}
	if err := <-done; err != nil {
		t.Fatalf("first attempt: %v", err)
	}
}

func TestGenerateUnknownVideo(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	_, err := env.service.Generate(context.Background(), "vid-nope")
	if !errors.Is(err, video.ErrVideoNotFound) {
		t.Fatalf("err = %v, want ErrVideoNotFound", err)
	}
}

func TestGenerateFromArchivedFails(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)
	v.Status = video.StatusArchived
	if err := env.videos.Save(context.Background(), v); err != nil {
		t.Fatalf("save video: %v", err)
	}

	_, err := env.service.Generate(context.Background(), v.ID)
	if !errors.Is(err, video.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestGenerateLogOrdering(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	if _, err := env.service.Generate(context.Background(), v.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	stored := env.stored(t, v.ID)
	lines := strings.Split(stored.GenerationLog, "\n")
	if len(lines) < 3 {
		t.Fatalf("expected at least 3 log lines, got %d:\n%s", len(lines), stored.GenerationLog)
	}
	if !strings.Contains(lines[0], "Starting video generation") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[len(lines)-1], "Video generation completed") {
		t.Errorf("last line = %q", lines[len(lines)-1])
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[") {
			t.Errorf("line missing timestamp prefix: %q", line)
		}
	}
}

func TestGenerateCleansScratch(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	if _, err := env.service.Generate(context.Background(), v.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	entries, err := os.ReadDir(env.store.TempDir())
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not empty: %d entries", len(entries))
	}
}

func TestGenerateRetryAfterFailure(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	env.composer.renderErr = errors.New("transient")

	track := env.addTrack(t)
	v := env.addVideo(t, track.ID)

	got, err := env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if got.Status != video.StatusFailed {
		t.Fatalf("status = %s, want %s", got.Status, video.StatusFailed)
	}

	env.composer.renderErr = nil
	got, err = env.service.Generate(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if got.Status != video.StatusReady {
		t.Fatalf("status after retry = %s, want %s", got.Status, video.StatusReady)
	}
	if got.ErrorCode != "" || got.ErrorMessage != "" {
		t.Errorf("error fields not cleared: %q %q", got.ErrorCode, got.ErrorMessage)
	}
}

func TestCreateForTrack(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	track := env.addTrack(t)

	v, err := env.service.CreateForTrack(context.Background(), track.ID, "")
	if err != nil {
		t.Fatalf("CreateForTrack: %v", err)
	}
	if v.Status != video.StatusPending {
		t.Errorf("status = %s, want %s", v.Status, video.StatusPending)
	}
	if v.TrackID != track.ID {
		t.Errorf("track id = %q, want %q", v.TrackID, track.ID)
	}
	if !strings.Contains(v.Title, track.Title) {
		t.Errorf("default title %q missing track title", v.Title)
	}

	if _, err := env.service.CreateForTrack(context.Background(), "trk-nope", ""); !errors.Is(err, video.ErrTrackNotFound) {
		t.Errorf("err = %v, want ErrTrackNotFound", err)
	}
}
