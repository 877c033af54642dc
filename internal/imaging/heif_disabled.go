//go:build !heic

package imaging

const heifSupported = false
