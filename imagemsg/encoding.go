package imagemsg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Pixel encodings understood by the decoder.
const (
	RGB8        = "rgb8"
	BGR8        = "bgr8"
	RGBA8       = "rgba8"
	BGRA8       = "bgra8"
	Mono8       = "mono8"
	Passthrough = "passthrough"
)

// ErrUnsupportedEncoding is returned for encodings that are not 8-bit.
var ErrUnsupportedEncoding = errors.New("imagemsg: unsupported encoding")

// ErrIncompatibleEncoding is returned when no conversion exists between two encodings.
var ErrIncompatibleEncoding = errors.New("imagemsg: incompatible encodings")

// channel roles of color/mono encodings
const (
	roleR = iota
	roleG
	roleB
	roleA
	roleY
)

// colorLayouts lists the channel roles of every named 8-bit encoding.
var colorLayouts = map[string][]int{
	RGB8:  {roleR, roleG, roleB},
	BGR8:  {roleB, roleG, roleR},
	RGBA8: {roleR, roleG, roleB, roleA},
	BGRA8: {roleB, roleG, roleR, roleA},
	Mono8: {roleY},
}

// Channels returns the number of 8-bit channels per pixel of enc.
//
// Named encodings and the generic "8UC<n>" form are accepted.
func Channels(enc string) (int, error) {
	if layout, ok := colorLayouts[enc]; ok {
		return len(layout), nil
	}
	if n, ok := genericChannels(enc); ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, enc)
}

// maxChannels bounds the generic form, as OpenCV's CV_CN_MAX does.
const maxChannels = 512

// genericChannels parses "8UC<n>" (8UC1, 8UC3, 8UC12, ...).
func genericChannels(enc string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.ToUpper(enc), "8UC")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.Trim(rest, "()"))
	if err != nil || n < 1 || n > maxChannels {
		return 0, false
	}
	return n, true
}

// convertPixels rewrites packed pixels (no row padding) from src layout to dst layout.
func convertPixels(pix []byte, src, dst string) ([]byte, error) {
	srcLayout, srcColor := colorLayouts[src]
	dstLayout, dstColor := colorLayouts[dst]

	srcN, err := Channels(src)
	if err != nil {
		return nil, err
	}
	dstN, err := Channels(dst)
	if err != nil {
		return nil, err
	}

	// Generic layouts carry no channel meaning: only a relabel of equal width.
	if !srcColor || !dstColor {
		if srcN != dstN {
			return nil, fmt.Errorf("%w: %s (%d channels) to %s (%d channels)",
				ErrIncompatibleEncoding, src, srcN, dst, dstN)
		}
		return pix, nil
	}

	count := len(pix) / srcN
	out := make([]byte, count*dstN)

	var roles [5]byte
	for p := 0; p < count; p++ {
		in := pix[p*srcN : p*srcN+srcN]
		for c, role := range srcLayout {
			roles[role] = in[c]
		}
		if src == Mono8 {
			roles[roleR], roles[roleG], roles[roleB] = in[0], in[0], in[0]
		} else {
			roles[roleY] = luma(roles[roleR], roles[roleG], roles[roleB])
		}
		if len(srcLayout) < 4 {
			roles[roleA] = 255
		}

		o := out[p*dstN : p*dstN+dstN]
		for c, role := range dstLayout {
			o[c] = roles[role]
		}
	}
	return out, nil
}

// luma uses the fixed-point BT.601 weights (14-bit shift) of the usual
// RGB to gray conversion.
func luma(r, g, b byte) byte {
	return byte((uint32(r)*4899 + uint32(g)*9617 + uint32(b)*1868 + 1<<13) >> 14)
}
