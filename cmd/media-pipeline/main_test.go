package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	fatihcolor "github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/pipeline"
)

func init() {
	fatihcolor.NoColor = true
}

// testEnv points the configuration at a temporary tree and at tools that
// do not exist, so runs stay hermetic.
func testEnv(t *testing.T) (root string) {
	t.Helper()
	root = t.TempDir()
	t.Setenv("WORK_DIR", filepath.Join(root, "work"))
	t.Setenv("OUTPUT_DIR", filepath.Join(root, "out"))
	t.Setenv("DATABASE_PATH", filepath.Join(root, "db", "pipeline.db"))
	t.Setenv("FFPROBE_PATH", filepath.Join(root, "no-ffprobe"))
	t.Setenv("FFMPEG_PATH", filepath.Join(root, "no-ffmpeg"))
	t.Setenv("CONVERT_PATH", filepath.Join(root, "no-convert"))
	t.Setenv("USE_VIPS", "false")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("THUMBNAIL_WIDTH", "32")
	t.Setenv("THUMBNAIL_HEIGHT", "32")
	t.Setenv(configEnv, "")
	return root
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Usage: media-pipeline")

	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Commands:")
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "frobnicate;rm")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate_rm")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(stdout, "media-pipeline dev"))
}

func TestRunCommand_FlagErrors(t *testing.T) {
	testEnv(t)

	code, _, stderr := runCLI(t, "run")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "no source paths")
	assert.Contains(t, stderr, "Environment variables:")

	code, _, _ = runCLI(t, "run", "-rotate", "45", "x")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "run", "-h")
	assert.Equal(t, exitOK, code)
}

func TestRunCommand_EndToEnd(t *testing.T) {
	root := testEnv(t)
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	photo := filepath.Join(src, "photo.png")
	notes := filepath.Join(src, "notes.txt")
	writePNG(t, photo, 64, 48)
	require.NoError(t, os.WriteFile(notes, []byte("just text\n"), 0o644))

	code, stdout, stderr := runCLI(t, "run", src)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "done     "+notes+" (other)")
	assert.Contains(t, stdout, "done     "+photo+" (image, thumbnail)")

	entries, err := os.ReadDir(filepath.Join(root, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".jpg", filepath.Ext(entries[0].Name()))

	// A second run leaves the thumbnail alone.
	code, stdout, _ = runCLI(t, "run", src)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "skipped  "+photo+" (1 existing instances)")

	code, stdout, stderr = runCLI(t, "show", photo)
	require.Equal(t, exitOK, code, stderr)
	var shown storedSource
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	assert.Equal(t, photo, shown.Path)
	assert.Equal(t, mediatypes.FileTypeImage, shown.Metadata.Type)
	require.Len(t, shown.Instances, 1)
	assert.Equal(t, mediatypes.KindThumbnail, shown.Instances[0].Kind)

	code, stdout, _ = runCLI(t, "stats")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Metadata records:  2")
	assert.Contains(t, stdout, "thumbnail:")
}

func TestRunCommand_MissingSource(t *testing.T) {
	root := testEnv(t)

	code, _, _ := runCLI(t, "run", filepath.Join(root, "nowhere"))
	assert.Equal(t, exitFailed, code)
}

func TestShowCommand_NotStored(t *testing.T) {
	root := testEnv(t)

	// No database yet.
	code, _, stderr := runCLI(t, "show", filepath.Join(root, "a.jpg"))
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "Failed to open database")

	code, _, _ = runCLI(t, "show")
	assert.Equal(t, exitUsage, code)
}

func TestSanitizeCommand(t *testing.T) {
	tests := map[string]string{
		"run":         "run",
		"re-do_2":     "re-do_2",
		"a b":         "a_b",
		"\x1b[31mred": "__31mred",
		"path/../etc": "path____etc",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeCommand(in), "%q", in)
	}
}

func TestCommonDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a", "clip.mov")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.Equal(t, filepath.Join(dir, "a"), commonDir([]string{file}))
	assert.Equal(t, dir, commonDir([]string{filepath.Join(dir, "a"), filepath.Join(dir, "b", "c")}))
	assert.Equal(t, "", commonDir([]string{"/srv/media", "/home/user"}))
	assert.Equal(t, "", commonDir(nil))
}

func TestPrintSummary(t *testing.T) {
	md := &mediatypes.MediaMetadata{Type: mediatypes.FileTypeVideo}
	reports := []*pipeline.Report{
		{
			Path:     "/src/clip.mov",
			State:    pipeline.StateDone,
			Metadata: md,
			Instances: []mediatypes.DerivedInstance{
				{Kind: mediatypes.KindTranscodedVideo},
				{Kind: mediatypes.KindTranscodedVideo},
				{Kind: mediatypes.KindThumbnail},
			},
			Failures: []pipeline.StageFailure{
				{Stage: pipeline.StateInstancesGenerated, Preset: "webm", Err: errors.New("exit status 1")},
			},
		},
		{Path: "/src/old.mov", State: pipeline.StateDone, Skipped: true, Instances: make([]mediatypes.DerivedInstance, 2)},
		{Path: "/src/bad.mov", State: pipeline.StateFailed, FailedStage: pipeline.StateProbed, Err: errors.New("no such file")},
		nil,
	}

	var buf bytes.Buffer
	printSummary(&buf, reports)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, "done     /src/clip.mov (video, 2 transcoded, thumbnail)", lines[0])
	assert.Equal(t, "  warning instances_generated/webm: exit status 1", lines[1])
	assert.Equal(t, "skipped  /src/old.mov (2 existing instances)", lines[2])
	assert.Equal(t, "failed   /src/bad.mov: probed: no such file", lines[3])
	assert.Equal(t, 1, countFailures(reports))
}
