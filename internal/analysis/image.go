package analysis

import (
	"errors"
	"image"
	_ "image/gif"  // register GIF decoding
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"safereport/internal/models"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoding
)

const (
	// Images at or above this many pixels get the full size factor
	fullSizePixels = 1000 * 1000
	// Statistics are computed on a copy no larger than this on either side
	sampleEdge = 256
	// Score for media that exists but cannot be decoded as an image
	unreadableMediaScore = 1.0
)

// ErrOutsideMediaRoot is returned for paths the analyzer is not allowed to open
var ErrOutsideMediaRoot = errors.New("media path outside the configured root")

// ImageAnalyzer scores attached images from 0 to 10 using size and red intensity
type ImageAnalyzer struct {
	root string
}

// NewImageAnalyzer creates an analyzer that only opens files under root. An empty root allows any local path.
func NewImageAnalyzer(root string) *ImageAnalyzer {
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	return &ImageAnalyzer{root: root}
}

// AnalyzeBatch returns the highest score across all files, 0 when there are none
func (a *ImageAnalyzer) AnalyzeBatch(paths []string) float64 {
	best := 0.0
	for _, p := range paths {
		best = max(best, a.Analyze(p))
	}
	return best
}

// Analyze scores one file. Missing files score 0; files that are not decodable images score 1.
func (a *ImageAnalyzer) Analyze(path string) float64 {
	img, err := a.load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrOutsideMediaRoot):
		return 0
	case err != nil:
		return unreadableMediaScore
	}
	return scoreImage(img)
}

func (a *ImageAnalyzer) load(path string) (image.Image, error) {
	// Remote objects are not fetched by the reference oracle
	if strings.Contains(path, "://") {
		return nil, errors.New("remote media not supported")
	}
	clean, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if a.root != "" {
		rel, err := filepath.Rel(a.root, clean)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, ErrOutsideMediaRoot
		}
	}

	f, err := os.Open(clean)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	return img, err
}

func scoreImage(img image.Image) float64 {
	bounds := img.Bounds()
	sizeFactor := min(float64(bounds.Dx()*bounds.Dy())/fullSizePixels, 1)

	// Grayscale sources expand to equal channels, so the red mean is their intensity
	intensity := meanRed(downsample(img))
	if isGray(img) {
		return min(sizeFactor*3+intensity*5, models.MaxSeverityScore)
	}
	return min(sizeFactor*3+intensity*7, models.MaxSeverityScore)
}

// downsample shrinks large images so the channel means stay cheap to compute
func downsample(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > sampleEdge || h > sampleEdge {
		if w >= h {
			h = max(1, h*sampleEdge/w)
			w = sampleEdge
		} else {
			w = max(1, w*sampleEdge/h)
			h = sampleEdge
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

func meanRed(img *image.RGBA) float64 {
	var sum, n float64
	for i := 0; i+3 < len(img.Pix); i += 4 {
		sum += float64(img.Pix[i])
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n / 255
}
