package startup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/ilyakaznacheev/cleanenv"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/media"
	"media-pipeline/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// ThumbnailConfig configures thumbnail rendering.
type ThumbnailConfig struct {
	Width   int           `yaml:"width" env:"THUMBNAIL_WIDTH" env-default:"1600" env-description:"thumbnail bounding box width"`
	Height  int           `yaml:"height" env:"THUMBNAIL_HEIGHT" env-default:"1600" env-description:"thumbnail bounding box height"`
	Quality int           `yaml:"quality" env:"THUMBNAIL_QUALITY" env-default:"90" env-description:"JPEG quality, 1-100"`
	Format  string        `yaml:"format" env:"THUMBNAIL_FORMAT" env-default:"jpeg" env-description:"jpeg or png"`
	Seek    time.Duration `yaml:"seek" env:"THUMBNAIL_SEEK" env-default:"1s" env-description:"offset of the video frame used for thumbnails"`
	UseVips bool          `yaml:"use_vips" env:"USE_VIPS" env-default:"true" env-description:"pre-shrink large images with libvips"`
}

// Config holds all pipeline configuration. Values come from an optional
// YAML file overlaid with environment variables.
type Config struct {
	FFprobePath string `yaml:"ffprobe_path" env:"FFPROBE_PATH" env-default:"ffprobe" env-description:"ffprobe executable"`
	FFmpegPath  string `yaml:"ffmpeg_path" env:"FFMPEG_PATH" env-default:"ffmpeg" env-description:"ffmpeg executable"`
	ConvertPath string `yaml:"convert_path" env:"CONVERT_PATH" env-default:"convert" env-description:"ImageMagick convert executable"`

	WorkDir      string `yaml:"work_dir" env:"WORK_DIR" env-description:"temporary outputs (default: <tmp>/media-pipeline)"`
	OutputDir    string `yaml:"output_dir" env:"OUTPUT_DIR" env-default:"./instances" env-description:"derived instances"`
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH" env-default:"./media-pipeline.db" env-description:"SQLite database file"`

	Thumbnail ThumbnailConfig `yaml:"thumbnail"`

	VideoMinDuration float64       `yaml:"video_min_duration" env:"VIDEO_MIN_DURATION" env-default:"1.0" env-description:"seconds a video stream must exceed to count as video"`
	Workers          int           `yaml:"workers" env:"PIPELINE_WORKERS" env-default:"0" env-description:"files processed at once, 0 sizes from CPUs"`
	Parallelism      int           `yaml:"transcode_parallelism" env:"TRANSCODE_PARALLELISM" env-default:"2" env-description:"renditions of one file transcoded at once"`
	FileTimeout      time.Duration `yaml:"file_timeout" env:"FILE_TIMEOUT" env-default:"0s" env-description:"limit for one file, 0 means none"`
	Redo             bool          `yaml:"redo" env:"REDO" env-default:"false" env-description:"regenerate existing instances"`
	HashFiles        bool          `yaml:"hash_files" env:"HASH_FILES" env-default:"false" env-description:"compute md5 and sha1 of sources"`
	AudioTags        bool          `yaml:"audio_tags" env:"AUDIO_TAGS" env-default:"true" env-description:"read title and comment tags of audio files"`

	MetricsEnabled bool   `yaml:"metrics_enabled" env:"METRICS_ENABLED" env-default:"false" env-description:"serve /metrics and /health while running"`
	MetricsPort    string `yaml:"metrics_port" env:"METRICS_PORT" env-default:"9090" env-description:"metrics server port"`
}

// ThumbnailSpec returns the configured thumbnail spec.
func (c *Config) ThumbnailSpec() (media.Spec, error) {
	format, err := media.ParseFormat(c.Thumbnail.Format)
	if err != nil {
		return media.Spec{}, err
	}
	spec := media.Spec{
		Width:   c.Thumbnail.Width,
		Height:  c.Thumbnail.Height,
		Format:  format,
		Quality: c.Thumbnail.Quality,
	}
	return spec, spec.Validate()
}

// Validate checks values cleanenv cannot.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.ThumbnailSpec(); err != nil {
		errs = append(errs, fmt.Errorf("thumbnail: %w", err))
	}
	if c.Thumbnail.Seek < 0 {
		errs = append(errs, fmt.Errorf("THUMBNAIL_SEEK must not be negative"))
	}
	if c.VideoMinDuration <= 0 {
		errs = append(errs, fmt.Errorf("VIDEO_MIN_DURATION must be positive"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("PIPELINE_WORKERS must not be negative"))
	}
	if c.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("TRANSCODE_PARALLELISM must not be negative"))
	}
	if c.FileTimeout < 0 {
		errs = append(errs, fmt.Errorf("FILE_TIMEOUT must not be negative"))
	}
	return errors.Join(errs...)
}

// ReadConfig reads configuration from the YAML file at path (if path is
// not empty) and the environment, without touching the filesystem
// otherwise.
func ReadConfig(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "media-pipeline")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Usage returns a flag.Usage replacement that lists the environment
// variables after the flag help printed by extra.
func Usage(w io.Writer, extra func()) func() {
	header := "Environment variables:"
	return cleanenv.FUsage(w, &Config{}, &header, extra)
}

// LoadConfig reads the configuration, logs every value and prepares the
// work, output and database directories.
func LoadConfig(path string) (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if path != "" {
		logging.Info("  Config file:            %s", path)
	}
	logging.Info("  FFPROBE_PATH:           %s", config.FFprobePath)
	logging.Info("  FFMPEG_PATH:            %s", config.FFmpegPath)
	logging.Info("  CONVERT_PATH:           %s", config.ConvertPath)
	logging.Info("  THUMBNAIL_WIDTH/HEIGHT: %dx%d", config.Thumbnail.Width, config.Thumbnail.Height)
	logging.Info("  THUMBNAIL_FORMAT:       %s (quality %d)", config.Thumbnail.Format, config.Thumbnail.Quality)
	logging.Info("  THUMBNAIL_SEEK:         %v", config.Thumbnail.Seek)
	logging.Info("  USE_VIPS:               %v", config.Thumbnail.UseVips)
	logging.Info("  VIDEO_MIN_DURATION:     %.2fs", config.VideoMinDuration)
	logging.Info("  PIPELINE_WORKERS:       %d", config.Workers)
	logging.Info("  TRANSCODE_PARALLELISM:  %d", config.Parallelism)
	logging.Info("  FILE_TIMEOUT:           %v", config.FileTimeout)
	logging.Info("  REDO:                   %v", config.Redo)
	logging.Info("  HASH_FILES:             %v", config.HashFiles)
	logging.Info("  AUDIO_TAGS:             %v", config.AudioTags)
	logging.Info("  METRICS_ENABLED:        %v", config.MetricsEnabled)
	logging.Info("  METRICS_PORT:           %s", config.MetricsPort)
	logging.Info("  LOG_LEVEL:              %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := prepareDirs(config); err != nil {
		return nil, err
	}
	return config, nil
}

// prepareDirs makes the configured paths absolute and checks that each
// directory exists (creating it if needed) and is writable.
func prepareDirs(config *Config) error {
	dirs := []struct {
		name string
		path *string
	}{
		{"work", &config.WorkDir},
		{"output", &config.OutputDir},
	}
	for _, d := range dirs {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s directory path: %w", d.name, err)
		}
		*d.path = abs
		logging.Info("  %-8s directory: %s", d.name, abs)
		if err := ensureDirectory(abs, d.name); err != nil {
			return fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(abs); err != nil {
			return fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
	}

	dbPath, err := filepath.Abs(config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}
	config.DatabasePath = dbPath
	dbDir := filepath.Dir(dbPath)
	logging.Info("  database file:      %s", dbPath)
	if err := ensureDirectory(dbDir, "database"); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(dbDir); err != nil {
		return fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Directories are writable")
	return nil
}

// LogMemoryConfig logs how the Go memory limit was configured.
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("  Memory:          %s", result)
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogToolsInit checks the external tools and logs their versions. Missing
// tools are warnings: only the stages that need them fail.
func LogToolsInit(config *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("EXTERNAL TOOLS")
	logging.Info("------------------------------------------------------------")

	tools := []struct {
		name, path, versionFlag, impact string
	}{
		{"ffprobe", config.FFprobePath, "-version", "audio and video metadata will be missing"},
		{"ffmpeg", config.FFmpegPath, "-version", "no transcoding or video thumbnails"},
		{"convert", config.ConvertPath, "-version", "no PDF thumbnails"},
	}
	for _, tool := range tools {
		version, err := checkTool(tool.path, tool.versionFlag)
		if err != nil {
			logging.Warn("  %s check failed: %v", tool.name, err)
			logging.Warn("    %s", tool.impact)
			continue
		}
		logging.Info("  [OK] %-8s %s", tool.name, version)
	}
}

// LogVipsInit logs whether libvips is used for large images.
func LogVipsInit(enabled bool) {
	if enabled {
		logging.Info("  [OK] libvips pre-shrink enabled")
		return
	}
	logging.Info("  libvips disabled, images are decoded at full size")
}

// LogRunStarted logs the size of a batch.
func LogRunStarted(files int, redo bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PIPELINE RUN")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Source files: %d", files)
	if redo {
		logging.Info("  Redo: existing instances will be regenerated")
	}
}

// RunSummary holds the counts logged at the end of a run.
type RunSummary struct {
	Done     int
	Skipped  int
	Failed   int
	Failures int
	Duration time.Duration
}

// LogRunComplete logs the outcome of a batch.
func LogRunComplete(s RunSummary) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("RUN COMPLETE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Done:            %d", s.Done)
	logging.Info("  Skipped:         %d", s.Skipped)
	logging.Info("  Failed:          %d", s.Failed)
	logging.Info("  Asset failures:  %d", s.Failures)
	logging.Info("  Duration:        %v", s.Duration.Round(time.Millisecond))
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogMetricsServer logs the metrics server address and, at debug level,
// its routes.
func LogMetricsServer(router *mux.Router, port string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("METRICS SERVER")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Listening on http://0.0.0.0:%s", port)

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
                    _ _                    _            _ _
  _ __ ___   ___  __| (_) __ _      _ __ (_)_ __   ___| (_)_ __   ___
 | '_ ' _ \ / _ \/ _' | |/ _' |____| '_ \| | '_ \ / _ \ | | '_ \ / _ \
 | | | | | |  __/ (_| | | (_| |____| |_) | | |_) |  __/ | | | | |  __/
 |_| |_| |_|\___|\__,_|_|\__,_|    | .__/|_| .__/ \___|_|_|_| |_|\___|
                                   |_|     |_|
------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// checkTool resolves path and returns the first line of its version
// output.
func checkTool(path, versionFlag string) (string, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%s not found", path)
	}
	logging.Debug("  %s resolved to %s", path, resolved)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, resolved, versionFlag).Output()
	if err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}
