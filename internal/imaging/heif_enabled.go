//go:build heic

package imaging

// Importing goheif registers HEIC/HEIF decoders with image.Decode; building
// with the heic tag therefore widens the supported-format set at startup.
import _ "github.com/jdeng/goheif"

const heifSupported = true
