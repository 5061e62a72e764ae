// Package media generates thumbnails for images, videos and PDF documents
// and finds the source files a pipeline run works on.
//
// Image thumbnails are decoded, normalized to RGB, rotated by a fixed
// table and resized with Lanczos to fit the requested box (upscaling
// included). Videos and PDFs are first rendered to a still with ffmpeg or
// ImageMagick's convert; that still then goes through the image path.
//
// When libvips is initialised (InitVips), very large images are shrunk at
// decode time before the imaging pipeline runs.
package media
