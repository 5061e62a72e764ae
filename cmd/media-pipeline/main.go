package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"media-pipeline/internal/database"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/media"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/memory"
	"media-pipeline/internal/metadata"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/pipeline"
	"media-pipeline/internal/probe"
	"media-pipeline/internal/server"
	"media-pipeline/internal/startup"
	"media-pipeline/internal/transcoder"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

const (
	configEnv = "PIPELINE_CONFIG"
	// Default timeout for the database reads of show and stats
	dbTimeout = 30 * time.Second
	// How often store counts are refreshed while the status server runs
	collectInterval = 15 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "run":
		return runCommand(ctx, args[1:], stdout, stderr)
	case "show":
		return showCommand(ctx, args[1:], stdout, stderr)
	case "stats":
		return statsCommand(ctx, args[1:], stdout, stderr)
	case "version":
		info := startup.GetBuildInfo()
		fmt.Fprintf(stdout, "media-pipeline %s (commit %s, built %s, %s %s/%s)\n",
			info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		return exitOK
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(args[0]))
		printUsage(stderr)
		return exitUsage
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display: anything outside [a-zA-Z0-9_-] becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Media Pipeline")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: media-pipeline <command> [flags] [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run <path>...  - Extract metadata and generate derived instances")
	fmt.Fprintln(w, "  show <path>    - Print the stored metadata and instances of a source file")
	fmt.Fprintln(w, "  stats          - Print instance store counts")
	fmt.Fprintln(w, "  version        - Print build information")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'media-pipeline run -h' for flags and environment variables.")
}

// newFlagSet returns a flag set with the shared -config flag.
func newFlagSet(name, synopsis string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv(configEnv), "YAML configuration file (env "+configEnv+")")
	fs.Usage = startup.Usage(stderr, func() {
		fmt.Fprintf(stderr, "Usage: media-pipeline %s [flags] %s\n\nFlags:\n", name, synopsis)
		fs.PrintDefaults()
	})
	return fs, configPath
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return exitOK, true
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	memResult := memory.ConfigureFromEnv()

	fs, configPath := newFlagSet("run", "<path>...", stderr)
	redo := fs.Bool("redo", false, "regenerate existing instances (overrides REDO)")
	rotate := fs.Int("rotate", 0, "thumbnail rotation overriding the orientation tag: 0, 90, 180 or 270")
	workers := fs.Int("workers", -1, "files processed at once (overrides PIPELINE_WORKERS)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: no source paths given")
		fs.Usage()
		return exitUsage
	}
	rotation, err := mediatypes.ParseRotation(*rotate)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg, err := startup.LoadConfig(*configPath)
	if err != nil {
		logging.Error("Configuration error: %v", err)
		return exitFailed
	}
	startup.LogMemoryConfig(memResult)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "redo":
			cfg.Redo = *redo
		case "workers":
			cfg.Workers = *workers
		}
	})

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	retry := filesystem.DefaultRetryConfig()
	retry.VolumeResolver = filesystem.NewVolumeResolver(map[string]string{
		"source":   commonDir(fs.Args()),
		"work":     cfg.WorkDir,
		"output":   cfg.OutputDir,
		"database": filepath.Dir(cfg.DatabasePath),
	})

	startup.LogToolsInit(cfg)
	useVips := cfg.Thumbnail.UseVips
	if useVips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable: %v", err)
			useVips = false
		} else {
			defer media.ShutdownVips()
		}
	}
	startup.LogVipsInit(useVips)

	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		logging.Error("Failed to initialize database: %v", err)
		return exitFailed
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn("failed to close database: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	prober := probe.New(probe.Config{BinaryPath: cfg.FFprobePath, VideoMinDuration: cfg.VideoMinDuration})
	trans := transcoder.New(transcoder.Config{FFmpegPath: cfg.FFmpegPath, WorkDir: cfg.WorkDir})
	if freed, err := trans.ClearStale(); err != nil {
		logging.Warn("failed to clear stale transcoder outputs: %v", err)
	} else if freed > 0 {
		logging.Info("Removed %d bytes of stale transcoder outputs", freed)
	}
	defer trans.Cleanup()

	spec, err := cfg.ThumbnailSpec()
	if err != nil {
		logging.Error("Configuration error: %v", err)
		return exitFailed
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start(ctx)
	progress := server.NewProgress()

	coord, err := pipeline.New(pipeline.Config{
		Resolver: metadata.New(metadata.Config{
			Prober:    prober,
			HashFiles: cfg.HashFiles,
			AudioTags: cfg.AudioTags,
			Retry:     retry,
		}),
		Transcoder: trans,
		Prober:     prober,
		Thumbnailer: media.NewThumbnailGenerator(media.Config{
			FFmpegPath:  cfg.FFmpegPath,
			ConvertPath: cfg.ConvertPath,
			WorkDir:     cfg.WorkDir,
			Seek:        cfg.Thumbnail.Seek,
			Retry:       retry,
		}),
		Store:         db,
		OutputDir:     cfg.OutputDir,
		ThumbnailSpec: spec,
		Parallelism:   cfg.Parallelism,
		Workers:       cfg.Workers,
		FileTimeout:   cfg.FileTimeout,
		Retry:         retry,
		Gate:          monitor,
		OnReport:      progress.Record,
	})
	if err != nil {
		logging.Error("Failed to create pipeline: %v", err)
		return exitFailed
	}

	if cfg.MetricsEnabled {
		router := server.NewRouter(progress)
		srv := server.New(cfg.MetricsPort, router)
		srv.Start()
		startup.LogMetricsServer(router, cfg.MetricsPort)

		collector := metrics.NewCollector(db, collectInterval)
		collector.Start()
		defer func() {
			startup.LogShutdownStep("Stopping status server")
			collector.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Warn("status server shutdown error: %v", err)
			} else {
				startup.LogShutdownStepComplete("Status server stopped")
			}
		}()
	}

	paths, err := media.NewScanner(retry, cfg.OutputDir, cfg.WorkDir).Scan(ctx, fs.Args())
	if err != nil {
		logging.Error("Failed to scan sources: %v", err)
		return exitFailed
	}

	startup.LogRunStarted(len(paths), cfg.Redo)
	progress.Begin(len(paths))
	start := time.Now()
	reports := coord.Run(ctx, paths, pipeline.Options{Redo: cfg.Redo, Rotation: rotation})
	progress.End()

	if ctx.Err() != nil {
		startup.LogShutdownInitiated("interrupt")
	}

	printSummary(stdout, reports)
	totals := pipeline.Tally(reports)
	startup.LogRunComplete(startup.RunSummary{
		Done:     totals.Done,
		Skipped:  totals.Skipped,
		Failed:   totals.Failed,
		Failures: countFailures(reports),
		Duration: time.Since(start),
	})

	if totals.Failed > 0 {
		return exitFailed
	}
	return exitOK
}

// commonDir returns the deepest directory containing every root, or "" if
// the roots share nothing but the filesystem root.
func commonDir(roots []string) string {
	var common []string
	for i, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return ""
		}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			abs = filepath.Dir(abs)
		}
		parts := strings.Split(strings.Trim(abs, string(filepath.Separator)), string(filepath.Separator))
		if i == 0 {
			common = parts
			continue
		}
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	if len(common) == 0 || common[0] == "" {
		return ""
	}
	return string(filepath.Separator) + filepath.Join(common...)
}

func countFailures(reports []*pipeline.Report) int {
	n := 0
	for _, r := range reports {
		if r != nil {
			n += len(r.Failures)
		}
	}
	return n
}

var (
	doneLabel    = color.New(color.FgGreen).SprintFunc()
	skippedLabel = color.New(color.FgCyan).SprintFunc()
	failedLabel  = color.New(color.FgRed, color.Bold).SprintFunc()
	warnLabel    = color.New(color.FgYellow).SprintFunc()
)

// printSummary writes one line per source file, followed by its failures.
func printSummary(w io.Writer, reports []*pipeline.Report) {
	for _, r := range reports {
		if r == nil {
			continue
		}
		switch r.Outcome() {
		case "failed":
			fmt.Fprintf(w, "%-8s %s: %s: %v\n", failedLabel("failed"), r.Path, r.FailedStage, r.Err)
		case "skipped":
			fmt.Fprintf(w, "%-8s %s (%d existing instances)\n", skippedLabel("skipped"), r.Path, len(r.Instances))
		default:
			fmt.Fprintf(w, "%-8s %s%s\n", doneLabel("done"), r.Path, describe(r))
		}
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  %s %s\n", warnLabel("warning"), f)
		}
	}
}

func describe(r *pipeline.Report) string {
	var parts []string
	if r.Metadata != nil {
		parts = append(parts, string(r.Metadata.Type))
	}
	counts := map[mediatypes.InstanceKind]int{}
	for _, inst := range r.Instances {
		counts[inst.Kind]++
	}
	if n := counts[mediatypes.KindTranscodedVideo] + counts[mediatypes.KindTranscodedAudio]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d transcoded", n))
	}
	if counts[mediatypes.KindThumbnail] > 0 {
		parts = append(parts, "thumbnail")
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// openStore reads the configuration without the startup banner and opens
// the existing database.
func openStore(ctx context.Context, configPath string) (*database.Database, error) {
	cfg, err := startup.ReadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("database %s: %w", cfg.DatabasePath, err)
	}
	return database.New(ctx, cfg.DatabasePath)
}

// storedSource is the JSON printed by show.
type storedSource struct {
	Path      string                       `json:"path"`
	Metadata  *mediatypes.MediaMetadata    `json:"metadata"`
	Instances []mediatypes.DerivedInstance `json:"instances"`
}

func showCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("show", "<path>", stderr)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	src, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	db, err := openStore(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to open database: %v\n", err)
		return exitFailed
	}
	defer db.Close()

	md, err := db.GetMetadata(ctx, src)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			fmt.Fprintf(stderr, "No metadata stored for %s\n", src)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitFailed
	}
	instances, err := db.ListInstances(ctx, src)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	if instances == nil {
		instances = []mediatypes.DerivedInstance{}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(storedSource{Path: src, Metadata: md, Instances: instances}); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	return exitOK
}

func statsCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("stats", "", stderr)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	db, err := openStore(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to open database: %v\n", err)
		return exitFailed
	}
	defer db.Close()

	stats, err := db.GetStats(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailed
	}
	fmt.Fprintf(stdout, "Metadata records:  %d\n", stats.TotalMetadata)
	for _, kind := range []mediatypes.InstanceKind{mediatypes.KindTranscodedVideo, mediatypes.KindTranscodedAudio, mediatypes.KindThumbnail} {
		fmt.Fprintf(stdout, "%-18s %d\n", string(kind)+":", stats.InstancesByKind[string(kind)])
	}
	return exitOK
}
