package imaging

// Info describes a processed upload for API responses.
type Info struct {
	OriginalFormat  string `json:"original_format"`
	ProcessedFormat string `json:"processed_format"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Mode            string `json:"mode"`
	FileSizeBytes   int    `json:"file_size_bytes"`
	Converted       bool   `json:"converted"`
	SourceType      string `json:"source_type"`
}

// sourceTypes labels the phone-camera containers by where they come from.
var sourceTypes = map[string]string{
	FormatMPO:  "iPhone MPO",
	FormatHEIC: "iPhone HEIC",
	FormatHEIF: "iPhone HEIF",
}

// Describe summarizes a normalized image together with the upload it came
// from.
func Describe(n *Normalized, fileSize int) Info {
	source, ok := sourceTypes[n.OriginalFormat]
	if !ok {
		source = n.OriginalFormat
	}
	b := n.Image.Bounds()
	return Info{
		OriginalFormat:  n.OriginalFormat,
		ProcessedFormat: n.Format,
		Width:           b.Dx(),
		Height:          b.Dy(),
		Mode:            classifyMode(n.Image).String(),
		FileSizeBytes:   fileSize,
		Converted:       n.Converted,
		SourceType:      source,
	}
}
