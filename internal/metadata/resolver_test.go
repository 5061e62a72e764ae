package metadata

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/probe"
)

type fakeProber struct {
	json  string
	err   error
	calls int
}

func (f *fakeProber) Probe(_ context.Context, _ string) (*probe.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return probe.ParseResult([]byte(f.json), probe.DefaultVideoMinDuration)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// binaryBlob has no magic number mimetype recognises.
func binaryBlob() []byte {
	b := make([]byte, 512)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func newResolver(p Prober) *Resolver {
	return New(Config{
		Prober:     p,
		ZoneLookup: func(lat, lon float64) string { return "" },
	})
}

func TestResolve_Images(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		data   func(t *testing.T) []byte
		mime   string
		width  int
		height int
	}{
		{"png", "a.png", func(t *testing.T) []byte { return encodePNG(t, 40, 30) }, "image/png", 40, 30},
		{"jpeg", "b.jpg", func(t *testing.T) []byte { return encodeJPEG(t, 64, 48) }, "image/jpeg", 64, 48},
		{"extension is ignored", "c.txt", func(t *testing.T) []byte { return encodePNG(t, 5, 7) }, "image/png", 5, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProber{}
			path := writeFile(t, tt.file, tt.data(t))

			md, err := newResolver(fp).Resolve(context.Background(), path)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if md.MimeType != tt.mime || md.Type != mediatypes.FileTypeImage {
				t.Errorf("mime/type = %s/%s", md.MimeType, md.Type)
			}
			if md.Width == nil || *md.Width != tt.width || md.Height == nil || *md.Height != tt.height {
				t.Errorf("dimensions = %v x %v, want %dx%d", md.Width, md.Height, tt.width, tt.height)
			}
			if md.FileSize == 0 || md.ModTime.IsZero() {
				t.Errorf("size/mtime not set: %d %v", md.FileSize, md.ModTime)
			}
			if fp.calls != 0 {
				t.Errorf("images must not be probed, got %d calls", fp.calls)
			}
		})
	}
}

func TestResolve_CorruptImageIsMinimal(t *testing.T) {
	data := encodePNG(t, 100, 100)
	path := writeFile(t, "broken.png", data[:20])

	md, err := newResolver(&fakeProber{}).Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("Resolve() error = %v, want minimal record", err)
	}
	if md.MimeType != "image/png" || md.FileSize != 20 || md.ModTime.IsZero() {
		t.Errorf("minimal fields = %q %d %v", md.MimeType, md.FileSize, md.ModTime)
	}
	if md.Width != nil || md.Height != nil || md.Geo != nil || md.CaptureTime != nil || md.Rotation != 0 {
		t.Errorf("image fields should be absent: %+v", md)
	}
}

func TestResolve_OtherTypes(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("just some text\nand more\n"))
	fp := &fakeProber{}

	md, err := newResolver(fp).Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if md.MimeType != "text/plain" {
		t.Errorf("MimeType = %q, want text/plain without parameters", md.MimeType)
	}
	if md.Type != mediatypes.FileTypeOther || fp.calls != 0 {
		t.Errorf("type = %s, probe calls = %d", md.Type, fp.calls)
	}
}

func TestResolve_Streams(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		json     string
		wantType mediatypes.FileType
		wantMime string
		check    func(t *testing.T, md *mediatypes.MediaMetadata)
	}{
		{
			name: "video",
			file: "clip.bin",
			json: `{"streams":[{"codec_type":"video","width":1280,"height":720,"duration":"8.0","avg_frame_rate":"25/1"}],
				"format":{"bit_rate":"2000000","tags":{"location":"+48.8584+002.2945/"}}}`,
			wantType: mediatypes.FileTypeVideo,
			wantMime: "application/octet-stream",
			check: func(t *testing.T, md *mediatypes.MediaMetadata) {
				if md.Width == nil || *md.Width != 1280 || md.Duration == nil || *md.Duration != 8 {
					t.Errorf("video fields = %+v", md)
				}
				if md.Framerate == nil || *md.Framerate != 25 {
					t.Errorf("Framerate = %v", md.Framerate)
				}
				if md.Geo == nil || md.Geo.Latitude != 48.8584 {
					t.Errorf("Geo = %+v", md.Geo)
				}
			},
		},
		{
			name:     "audio with mapped extension",
			file:     "memo.m4a",
			json:     `{"streams":[{"codec_type":"audio","duration":"3.5"}],"format":{"bit_rate":"64000"}}`,
			wantType: mediatypes.FileTypeAudio,
			wantMime: "audio/mp4a-latm",
			check: func(t *testing.T, md *mediatypes.MediaMetadata) {
				if md.Duration == nil || *md.Duration != 3.5 || md.Bitrate == nil || *md.Bitrate != 64000 {
					t.Errorf("audio fields = %+v", md)
				}
				if md.Width != nil {
					t.Error("audio should have no width")
				}
			},
		},
		{
			name:     "short video stream is neither",
			file:     "still.bin",
			json:     `{"streams":[{"codec_type":"video","duration":"0.04"}]}`,
			wantType: mediatypes.FileTypeOther,
			wantMime: "application/octet-stream",
			check: func(t *testing.T, md *mediatypes.MediaMetadata) {
				if md.Duration != nil || md.Width != nil {
					t.Errorf("neither should stay minimal: %+v", md)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &fakeProber{json: tt.json}
			path := writeFile(t, tt.file, binaryBlob())

			md, err := newResolver(fp).Resolve(context.Background(), path)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if fp.calls != 1 {
				t.Errorf("probe calls = %d, want 1", fp.calls)
			}
			if md.Type != tt.wantType || md.MimeType != tt.wantMime {
				t.Errorf("type/mime = %s %q, want %s %q", md.Type, md.MimeType, tt.wantType, tt.wantMime)
			}
			tt.check(t, md)
		})
	}
}

func TestResolve_ProbeErrorKeepsMinimalRecord(t *testing.T) {
	path := writeFile(t, "x.bin", binaryBlob())
	fp := &fakeProber{err: &probe.ProbeError{Kind: probe.ToolMissing, Path: path, Err: errors.New("not found")}}

	md, err := newResolver(fp).Resolve(context.Background(), path)
	if !errors.Is(err, probe.ErrToolMissing) {
		t.Fatalf("Resolve() error = %v, want ErrToolMissing", err)
	}
	if md == nil || md.FileSize != 512 || md.MimeType == "" {
		t.Errorf("minimal record missing: %+v", md)
	}
}

func TestResolve_StatErrors(t *testing.T) {
	r := newResolver(&fakeProber{})

	if _, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := r.Resolve(context.Background(), t.TempDir()); err == nil {
		t.Error("directory should fail")
	}
}

func TestResolve_Hashes(t *testing.T) {
	path := writeFile(t, "hello.txt", []byte("hello world"))
	r := New(Config{Prober: &fakeProber{}, HashFiles: true})

	md, err := r.Resolve(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if md.MD5 != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("MD5 = %s", md.MD5)
	}
	if md.SHA1 != "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed" {
		t.Errorf("SHA1 = %s", md.SHA1)
	}

	md, _ = newResolver(&fakeProber{}).Resolve(context.Background(), path)
	if md.MD5 != "" || md.SHA1 != "" {
		t.Error("hashes should be empty when disabled")
	}
}

func TestAudioMimeType(t *testing.T) {
	tests := []struct {
		path, sniffed, want string
	}{
		{"a.3gp", "video/3gpp", "audio/3gpp"},
		{"a.MP3", "audio/mpeg", "audio/mpeg"},
		{"a.mp4", "video/mp4", "audio/mp4"},
		{"a.ogg", "application/ogg", "audio/ogg"},
		{"a.bin", "application/octet-stream", "application/octet-stream"},
		{"a.flac", "audio/flac", "audio/flac"},
	}
	for _, tt := range tests {
		if got := audioMimeType(tt.path, tt.sniffed); got != tt.want {
			t.Errorf("audioMimeType(%q, %q) = %q, want %q", tt.path, tt.sniffed, got, tt.want)
		}
	}
}

func TestIsProbeCandidate(t *testing.T) {
	for mime, want := range map[string]bool{
		"video/mp4":                true,
		"audio/mpeg":               true,
		"application/octet-stream": true,
		"application/ogg":          true,
		"image/jpeg":               false,
		"application/pdf":          false,
		"text/plain":               false,
	} {
		if got := isProbeCandidate(mime); got != want {
			t.Errorf("isProbeCandidate(%q) = %v, want %v", mime, got, want)
		}
	}
}
