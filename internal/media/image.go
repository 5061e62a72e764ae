package media

import (
	"fmt"
	"image"
	"math"
	"os"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support

	"media-pipeline/internal/mediatypes"
)

// vipsShrinkFactor is how much larger than the box an image must be before
// the libvips pre-shrink is worth it.
const vipsShrinkFactor = 2

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// loadImage decodes path without applying EXIF orientation. Images much
// larger than the box are pre-shrunk with libvips when it is available;
// the shrunk image still covers the box in both dimensions.
func loadImage(path string, box int) (image.Image, error) {
	if IsVipsAvailable() {
		if dims, err := GetImageDimensions(path); err == nil && minSide(dims.Width, dims.Height) > box*vipsShrinkFactor {
			img, err := loadImageWithVips(path, dims.Width, dims.Height, box)
			if err == nil {
				return img, nil
			}
			log.Debug("vips pre-shrink failed for %s: %v, decoding in full", path, err)
		}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(false))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return img, nil
}

// coverSize scales w x h so the shorter side equals box, rounding up.
func coverSize(w, h, box int) (int, int) {
	scale := float64(box) / float64(minSide(w, h))
	return int(math.Ceil(float64(w) * scale)), int(math.Ceil(float64(h) * scale))
}

func minSide(w, h int) int {
	if w < h {
		return w
	}
	return h
}

// toRGB returns gray and RGB images as they are. Anything else (paletted,
// CMYK, images with alpha) becomes opaque NRGBA with the alpha channel
// dropped rather than composited.
func toRGB(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.YCbCr:
		return img
	case *image.RGBA:
		if img.(*image.RGBA).Opaque() {
			return img
		}
	case *image.NRGBA:
		if img.(*image.NRGBA).Opaque() {
			return img
		}
	}

	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// rotate turns img clockwise by r. imaging rotates counter-clockwise, so
// the table pairs each clockwise angle with its inverse.
func rotate(img image.Image, r mediatypes.Rotation) image.Image {
	switch r {
	case mediatypes.Rotate90:
		return imaging.Rotate270(img)
	case mediatypes.Rotate180:
		return imaging.Rotate180(img)
	case mediatypes.Rotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// fitSize returns the largest size with the aspect ratio of w x h that fits
// in boxW x boxH. Smaller sources are scaled up.
func fitSize(w, h, boxW, boxH int) (int, int) {
	ratio := math.Min(float64(boxW)/float64(w), float64(boxH)/float64(h))
	fw := int(math.Round(float64(w) * ratio))
	fh := int(math.Round(float64(h) * ratio))
	if fw < 1 {
		fw = 1
	}
	if fh < 1 {
		fh = 1
	}
	return fw, fh
}

// fit resizes img into the box with Lanczos resampling.
func fit(img image.Image, boxW, boxH int) image.Image {
	b := img.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), boxW, boxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}
