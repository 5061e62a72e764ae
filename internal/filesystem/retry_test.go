package filesystem

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingObserver) ObserveRetryAttempt(op, volume string) { r.record("attempt:" + op + ":" + volume) }
func (r *recordingObserver) ObserveRetrySuccess(op, volume string) { r.record("success:" + op + ":" + volume) }
func (r *recordingObserver) ObserveRetryFailure(op, volume string) { r.record("failure:" + op + ":" + volume) }
func (r *recordingObserver) ObserveStaleError(op, volume string)   { r.record("stale:" + op + ":" + volume) }
func (r *recordingObserver) ObserveRetryDuration(op, volume string, _ float64) {
	r.record("duration:" + op + ":" + volume)
}

func (r *recordingObserver) count(ev string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == ev {
			n++
		}
	}
	return n
}

func withObserver(t *testing.T) *recordingObserver {
	t.Helper()
	original := defaultObserver
	t.Cleanup(func() { defaultObserver = original })
	obs := &recordingObserver{}
	SetObserver(obs)
	return obs
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"source":   "/srv/media",
		"work":     "/var/tmp/pipeline",
		"output":   "/srv/derived",
		"database": "/var/lib/pipeline",
		"ignored":  "",
	})

	if len(vr.mounts) != 4 {
		t.Fatalf("Expected 4 mounts, got %d", len(vr.mounts))
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"source root", "/srv/media", "source"},
		{"source file", "/srv/media/2024/IMG_0001.jpg", "source"},
		{"work file", "/var/tmp/pipeline/transcode-123.mp4", "work"},
		{"output file", "/srv/derived/ab/abcdef.webm", "output"},
		{"database file", "/var/lib/pipeline/media.db-wal", "database"},
		{"sibling prefix is not a match", "/srv/media-old/x.jpg", "unknown"},
		{"unknown path", "/etc/hosts", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve_LongestPrefixWins(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"output":     "/srv/derived",
		"thumbnails": "/srv/derived/thumbs",
	})

	if got := vr.Resolve("/srv/derived/video.mp4"); got != "output" {
		t.Errorf("Resolve() = %q, want output", got)
	}
	if got := vr.Resolve("/srv/derived/thumbs/a.jpg"); got != "thumbnails" {
		t.Errorf("Resolve() = %q, want thumbnails", got)
	}
}

func TestVolumeResolver_Resolve_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/srv/media/test.jpg"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want %q", got, "unknown")
	}
}

func TestRetryConfig_ResolveVolume(t *testing.T) {
	original := defaultResolver
	defer func() { defaultResolver = original }()

	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"source": "/srv/media"}))

	config := fastConfig()
	if got := config.resolveVolume("/srv/media/a.jpg"); got != "source" {
		t.Errorf("resolveVolume() = %q, want source (default resolver)", got)
	}

	config.VolumeResolver = NewVolumeResolver(map[string]string{"override": "/srv/media"})
	if got := config.resolveVolume("/srv/media/a.jpg"); got != "override" {
		t.Errorf("resolveVolume() = %q, want override (config resolver)", got)
	}
}

func TestWithRetry_RetriesStaleHandle(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	got, err := withRetry("stat", "/nowhere/file", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &os.PathError{Op: "stat", Path: "/nowhere/file", Err: syscall.ESTALE}
		}
		return 7, nil
	})

	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 7 || calls != 3 {
		t.Errorf("got %d after %d calls, want 7 after 3", got, calls)
	}
	if n := obs.count("stale:stat:unknown"); n != 2 {
		t.Errorf("stale errors observed = %d, want 2", n)
	}
	if n := obs.count("success:stat:unknown"); n != 1 {
		t.Errorf("retry successes observed = %d, want 1", n)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	obs := withObserver(t)

	calls := 0
	_, err := withRetry("open", "/nowhere/file", fastConfig(), func() (int, error) {
		calls++
		return 0, syscall.ESTALE
	})

	if err != syscall.ESTALE {
		t.Errorf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + MaxRetries)", calls)
	}
	if n := obs.count("attempt:open:unknown"); n != 3 {
		t.Errorf("retry attempts observed = %d, want 3", n)
	}
	if n := obs.count("failure:open:unknown"); n != 1 {
		t.Errorf("retry failures observed = %d, want 1", n)
	}
}

func TestWithRetry_NoObserver(t *testing.T) {
	original := defaultObserver
	defer func() { defaultObserver = original }()
	SetObserver(nil)

	if _, err := withRetry("stat", "/x", fastConfig(), func() (int, error) { return 1, nil }); err != nil {
		t.Errorf("withRetry() error = %v", err)
	}
}

func TestStatWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("FileInfo.Size() = %d, want 4", info.Size())
	}

	start := time.Now()
	_, err = StatWithRetry(filepath.Join(tmpDir, "missing.txt"), DefaultRetryConfig())
	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry() error = %v, want os.IsNotExist", err)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("StatWithRetry took %v, should not retry non-NFS errors", elapsed)
	}
}

func TestOpenWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test content"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	f, err := OpenWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()

	f, err = OpenWithRetry(filepath.Join(tmpDir, "missing.txt"), fastConfig())
	if f != nil {
		f.Close()
		t.Error("OpenWithRetry() returned non-nil file for non-existent file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("OpenWithRetry() error = %v, want os.IsNotExist", err)
	}
}

func TestRenameWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "work.mp4")
	dst := filepath.Join(tmpDir, "out", "final.mp4")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RenameWithRetry(src, dst, fastConfig()); err != nil {
		t.Fatalf("RenameWithRetry() error = %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists after rename")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "video" {
		t.Errorf("destination content = %q, %v", data, err)
	}
}

func TestCopyAndRemove(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "a")
	dst := filepath.Join(tmpDir, "b")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := copyAndRemove(src, dst); err != nil {
		t.Fatalf("copyAndRemove() error = %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists")
	}
	if _, err := os.Stat(dst + ".partial"); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
}

func TestRemoveWithRetry(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "thumb.jpg")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveWithRetry(f, fastConfig()); err != nil {
		t.Fatalf("RemoveWithRetry() error = %v", err)
	}
	if err := RemoveWithRetry(f, fastConfig()); err != nil {
		t.Errorf("RemoveWithRetry() on missing file error = %v, want nil", err)
	}
}

func BenchmarkVolumeResolver_Resolve(b *testing.B) {
	vr := NewVolumeResolver(map[string]string{
		"source": "/srv/media",
		"work":   "/var/tmp/pipeline",
		"output": "/srv/derived",
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vr.Resolve("/srv/media/2024/06/IMG_0001.jpg")
	}
}

func BenchmarkStatWithRetry_Success(b *testing.B) {
	tmpDir := b.TempDir()
	testFile := filepath.Join(tmpDir, "bench.txt")
	if err := os.WriteFile(testFile, []byte("x"), 0o644); err != nil {
		b.Fatal(err)
	}
	config := DefaultRetryConfig()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = StatWithRetry(testFile, config)
	}
}
