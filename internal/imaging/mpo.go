package imaging

import "bytes"

// JPEG marker bytes relevant to walking a Multi-Picture Object container.
// An MPO file is a sequence of complete JPEG streams; the first one carries
// an APP2 segment with the CIPA "MPF" identifier.
const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
	markerSOS    = 0xDA
	markerTEM    = 0x01
	markerAPP2   = 0xE2
)

var mpfHeader = []byte("MPF\x00")

// detectMPO reports whether data is a Multi-Picture Object container and, if
// so, returns its frames as independent JPEG byte slices. Detection requires
// the MPF marker or more than one complete JPEG stream; thumbnails embedded
// inside APP segment payloads never count because payloads are skipped
// wholesale by length.
func detectMPO(data []byte) (frames [][]byte, isMPO bool) {
	frames, mpf := splitFrames(data)
	if len(frames) == 0 {
		return nil, false
	}
	return frames, mpf || len(frames) > 1
}

// splitFrames walks the marker stream in data and returns the byte range of
// every complete JPEG it contains, plus whether any of them declares the MPF
// extension. A plain JPEG yields one frame and no MPF flag.
func splitFrames(data []byte) (frames [][]byte, mpf bool) {
	pos := 0
	for pos+1 < len(data) && data[pos] == markerPrefix && data[pos+1] == markerSOI {
		end, hasMPF, ok := scanFrame(data, pos)
		if !ok {
			break
		}
		frames = append(frames, data[pos:end])
		mpf = mpf || hasMPF
		pos = end
	}
	return frames, mpf
}

// scanFrame walks one JPEG stream starting at the SOI marker at pos and
// returns the offset just past its EOI marker.
func scanFrame(data []byte, pos int) (end int, mpf bool, ok bool) {
	pos += 2
	for pos+1 < len(data) {
		if data[pos] != markerPrefix {
			return 0, false, false
		}
		marker := data[pos+1]
		switch {
		case marker == markerPrefix:
			// fill byte before the real marker
			pos++
		case marker == markerEOI:
			return pos + 2, mpf, true
		case marker == markerTEM || (marker >= 0xD0 && marker <= 0xD7):
			// standalone markers carry no length field
			pos += 2
		case marker == markerSOS:
			next, scanned := skipEntropy(data, pos)
			if !scanned {
				return 0, false, false
			}
			pos = next
		default:
			if pos+3 >= len(data) {
				return 0, false, false
			}
			segLen := int(data[pos+2])<<8 | int(data[pos+3])
			if segLen < 2 || pos+2+segLen > len(data) {
				return 0, false, false
			}
			if marker == markerAPP2 && bytes.HasPrefix(data[pos+4:pos+2+segLen], mpfHeader) {
				mpf = true
			}
			pos += 2 + segLen
		}
	}
	return 0, false, false
}

// skipEntropy advances past a start-of-scan header and the entropy-coded data
// that follows it, stopping at the next real marker. Stuffed 0xFF00 bytes and
// restart markers belong to the scan data.
func skipEntropy(data []byte, pos int) (int, bool) {
	if pos+3 >= len(data) {
		return 0, false
	}
	segLen := int(data[pos+2])<<8 | int(data[pos+3])
	if segLen < 2 || pos+2+segLen > len(data) {
		return 0, false
	}
	pos += 2 + segLen
	for pos+1 < len(data) {
		if data[pos] != markerPrefix {
			pos++
			continue
		}
		next := data[pos+1]
		if next == markerPrefix {
			pos++
			continue
		}
		if next == 0x00 || (next >= 0xD0 && next <= 0xD7) {
			pos += 2
			continue
		}
		return pos, true
	}
	return 0, false
}
