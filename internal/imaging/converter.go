// Package imaging validates uploaded image bytes and flattens them to a
// single-frame, fully opaque RGB image re-encoded in one canonical format.
package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	// Registered so rejected BMP uploads can be named instead of failing
	// as unreadable bytes.
	_ "golang.org/x/image/bmp"
)

// Format names as reported to users.
const (
	FormatPNG  = "PNG"
	FormatJPEG = "JPEG"
	FormatMPO  = "MPO"
	FormatHEIC = "HEIC"
	FormatHEIF = "HEIF"
)

// canonicalFormat is the single encoding every upload is normalized to,
// fixed per deployment. JPEG matches what the trained model saw; switch to
// FormatPNG for a lossless pipeline.
const canonicalFormat = FormatJPEG

// Normalized is a single-frame, fully opaque, three-channel image re-encoded
// in the canonical format. It is never mutated after Process returns it.
type Normalized struct {
	Image          image.Image
	OriginalFormat string
	Format         string
	Converted      bool
}

// Converter validates and normalizes uploads. The supported-format set is
// computed once at construction, depending on whether the HEIC/HEIF decoder
// was built in, and never changes afterwards.
type Converter struct {
	canonical string
	supported map[string]bool
	logger    *zap.Logger
}

func NewConverter(logger *zap.Logger) *Converter {
	c := &Converter{
		canonical: canonicalFormat,
		supported: map[string]bool{FormatPNG: true, FormatJPEG: true, FormatMPO: true},
		logger:    logger,
	}
	if heifSupported {
		c.supported[FormatHEIC] = true
		c.supported[FormatHEIF] = true
		logger.Info("HEIC/HEIF support enabled for iPhone images")
	} else {
		logger.Warn("HEIC/HEIF decoder not built in; iPhone HEIC/HEIF uploads will be rejected")
	}
	return c
}

// SupportedFormats returns the human-readable list of accepted formats.
func (c *Converter) SupportedFormats() string {
	if c.supported[FormatHEIC] {
		return "PNG, JPEG, HEIC/HEIF (iPhone photos)"
	}
	return "PNG, JPEG"
}

// Process validates data as a supported image and returns it flattened to a
// single opaque RGB frame in the canonical encoding. Multi-frame MPO uploads
// keep frame 0 only; frame selection happens before color normalization.
func (c *Converter) Process(data []byte) (*Normalized, error) {
	cfg, sniffed, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		c.logger.Error("image decode failed", zap.Int("size_bytes", len(data)), zap.Error(err))
		return nil, &DecodeError{Cause: err}
	}

	format := formatName(sniffed)
	frame := data
	frameCount := 1
	if format == FormatJPEG {
		if frames, isMPO := detectMPO(data); isMPO {
			format = FormatMPO
			frame = frames[0]
			frameCount = len(frames)
		}
	}
	c.logger.Info("detected image format",
		zap.String("format", format),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("size_bytes", len(data)))

	if !c.supported[format] {
		c.logger.Error("unsupported image format",
			zap.String("format", format),
			zap.Int("size_bytes", len(data)))
		return nil, &UnsupportedFormatError{Format: format, Supported: c.SupportedFormats()}
	}
	if frameCount > 1 {
		c.logger.Info("multi-frame MPO upload, using first frame", zap.Int("frames", frameCount))
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		c.logger.Error("image decode failed",
			zap.String("format", format),
			zap.Int("size_bytes", len(data)),
			zap.Error(err))
		return nil, &DecodeError{Cause: err}
	}

	final, err := c.reencode(ensureOpaqueRGB(img))
	if err != nil {
		return nil, errors.Wrapf(err, "re-encoding %s image to %s", format, c.canonical)
	}

	n := &Normalized{
		Image:          final,
		OriginalFormat: format,
		Format:         c.canonical,
		Converted:      format != c.canonical,
	}
	c.logger.Info("image processed",
		zap.String("original_format", format),
		zap.String("format", n.Format),
		zap.Bool("converted", n.Converted))
	return n, nil
}

// reencode writes img in the canonical format and decodes the buffer back, so
// the returned handle is exactly what a consumer of that format would see and
// a corrupted encode cannot slip through.
func (c *Converter) reencode(img image.Image) (image.Image, error) {
	var buf bytes.Buffer
	var err error
	switch c.canonical {
	case FormatPNG:
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		return nil, err
	}
	out, _, err := image.Decode(&buf)
	return out, err
}

// formatName maps Go decoder format tags onto the names users see.
func formatName(goFormat string) string {
	return strings.ToUpper(goFormat)
}
