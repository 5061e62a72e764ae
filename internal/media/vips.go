package media

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so it follows LOG_LEVEL.
	vipsLogLevel, forwardUpTo := vipsLogLevels(logging.GetLevel())
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		// glib levels grow as severity drops
		if level > forwardUpTo {
			return
		}
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			log.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			log.Warn("[%s] %s", domain, msg)
		default:
			log.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// Start vips with conservative memory settings
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,                // Process one image at a time to control memory
		MaxCacheMem:      50 * 1024 * 1024, // 50MB cache
		MaxCacheSize:     100,              // Max 100 operations cached
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	log.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// vipsLogLevels maps the application level to the libvips level and the
// least severe message level forwarded to our logger.
func vipsLogLevels(level logging.LogLevel) (vips.LogLevel, vips.LogLevel) {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, vips.LogLevelDebug
	case logging.LevelInfo:
		return vips.LogLevelWarning, vips.LogLevelWarning
	default:
		return vips.LogLevelCritical, vips.LogLevelCritical
	}
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		log.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// loadImageWithVips decodes path with decode-time shrinking so the shorter
// side ends up at least box pixels. Orientation tags are not applied.
func loadImageWithVips(path string, width, height, box int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	importParams := vips.NewImportParams()
	importParams.AutoRotate.Set(false)
	ref, err := vips.LoadImageFromFile(path, importParams)
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	// One extra pixel absorbs rounding inside vips.
	targetWidth, targetHeight := coverSize(width, height, box+1)
	log.Debug("Vips loaded %s: %dx%d, shrinking to %dx%d",
		filepath.Base(path), ref.Width(), ref.Height(), targetWidth, targetHeight)

	if err := ref.Thumbnail(targetWidth, targetHeight, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	imgBytes, _, err := ref.ExportPng(&vips.PngExportParams{StripMetadata: true, Compression: 1})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes), imaging.AutoOrientation(false))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	if minSide(img.Bounds().Dx(), img.Bounds().Dy()) < box {
		return nil, fmt.Errorf("vips output %dx%d smaller than box %d", img.Bounds().Dx(), img.Bounds().Dy(), box)
	}

	metrics.ThumbnailVipsShrinkTotal.Inc()
	return img, nil
}
