package aac

// Canned single-frame silent AAC-LC payloads, keyed by channel count.
// These are the fixed raw-AAC byte sequences flv.js ships for gap
// filling (mono/stereo only); other channel counts have no canned
// frame: the remuxer's drift fill then reuses the current frame's
// payload, and its prefix-silent-frame path inserts nothing.
var silentFrames = map[int][]byte{
	1: {0x01, 0x40, 0x20, 0x0c, 0x00, 0x00, 0x00, 0x00, 0x00},
	2: {0x21, 0x00, 0x49, 0x90, 0x02, 0x19, 0x00, 0x23, 0x80},
}

// SilentFrame returns a canned silent-AAC raw frame for the given
// channel count, or nil if none exists for that configuration.
func SilentFrame(channelCount int) []byte {
	f, ok := silentFrames[channelCount]
	if !ok {
		return nil
	}
	return append([]byte{}, f...)
}
