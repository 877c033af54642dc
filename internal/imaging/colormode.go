package imaging

import (
	"image"
	"image/color"
	"image/draw"
)

// ColorMode classifies a decoded image by how its pixels must be flattened
// to opaque RGB.
type ColorMode int

const (
	// ModeRGB is a three-channel image with no usable alpha; it passes
	// through unchanged.
	ModeRGB ColorMode = iota
	// ModeRGBA carries an alpha channel and is composited onto white
	// using that channel as the blend mask.
	ModeRGBA
	// ModeLA is a grayscale-with-alpha representation with no separable
	// mask; it overwrites the white background wholesale.
	ModeLA
	// ModePaletted is indexed color, expanded to an alpha-carrying
	// representation before compositing.
	ModePaletted
	// ModeOther covers everything else (plain grayscale, CMYK, ...) and
	// converts channel-for-channel with no compositing.
	ModeOther
)

func (m ColorMode) String() string {
	switch m {
	case ModeRGB:
		return "RGB"
	case ModeRGBA:
		return "RGBA"
	case ModeLA:
		return "LA"
	case ModePaletted:
		return "P"
	default:
		return "other"
	}
}

// classifyMode maps a decoded image onto the flattening rule it needs.
// Alpha-capable images that are fully opaque need no compositing and count
// as plain RGB.
func classifyMode(img image.Image) ColorMode {
	switch img.(type) {
	case *image.Paletted:
		return ModePaletted
	case *image.YCbCr:
		return ModeRGB
	case *image.Alpha, *image.Alpha16:
		return ModeLA
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.NYCbCrA:
		if op, ok := img.(interface{ Opaque() bool }); ok && op.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	default:
		return ModeOther
	}
}

// ensureOpaqueRGB flattens img to a single fully opaque three-channel image.
// The rule applied depends on the color mode; the input is never mutated.
func ensureOpaqueRGB(img image.Image) image.Image {
	switch classifyMode(img) {
	case ModeRGB:
		return img
	case ModePaletted:
		return compositeWhite(expandPalette(img.(*image.Paletted)))
	case ModeRGBA:
		return compositeWhite(img)
	case ModeLA:
		return overwriteWhite(img)
	default:
		return flattenRGB(img)
	}
}

// compositeWhite blends src onto an opaque white background of identical
// pixel dimensions, using the alpha channel as the blend mask. Fully
// transparent regions come out pure white.
func compositeWhite(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// overwriteWhite pastes src onto a white background with no mask: source
// pixels replace the background wholesale and the result is forced opaque.
func overwriteWhite(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xFF
	}
	return dst
}

// flattenRGB force-converts src by direct channel reinterpretation, with no
// alpha compositing.
func flattenRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// expandPalette converts indexed color to NRGBA so palette entries with
// transparency participate in compositing.
func expandPalette(src *image.Paletted) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
