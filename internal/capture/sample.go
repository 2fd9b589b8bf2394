package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/e7canasta/sequoia-bands/imagemsg"
)

// ErrUnsupportedFormat is returned for raw video formats with no 8-bit encoding.
var ErrUnsupportedFormat = errors.New("capture: unsupported video format")

// gstFormats maps GStreamer raw video formats to message encodings.
// Padding bytes (x) are carried as alpha.
var gstFormats = map[string]string{
	"RGB":   imagemsg.RGB8,
	"BGR":   imagemsg.BGR8,
	"RGBA":  imagemsg.RGBA8,
	"RGBX":  imagemsg.RGBA8,
	"BGRA":  imagemsg.BGRA8,
	"BGRX":  imagemsg.BGRA8,
	"GRAY8": imagemsg.Mono8,
}

// EncodingFor returns the message encoding of a GStreamer raw video format.
func EncodingFor(format string) (string, error) {
	enc, ok := gstFormats[strings.ToUpper(format)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return enc, nil
}

// ImageFromSample wraps one raw video buffer as an image message.
//
// GStreamer pads rows (4-byte alignment by default), so the step is derived
// from the buffer size rather than from width.
func ImageFromSample(format string, width, height int, data []byte) (*imagemsg.Image, error) {
	enc, err := EncodingFor(format)
	if err != nil {
		return nil, err
	}
	channels, err := imagemsg.Channels(enc)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("capture: invalid dimensions %dx%d", width, height)
	}

	step := len(data) / height
	if step < width*channels {
		return nil, fmt.Errorf("capture: buffer %d bytes too small for %dx%d %s",
			len(data), width, height, format)
	}

	return &imagemsg.Image{
		Height:   uint32(height),
		Width:    uint32(width),
		Encoding: enc,
		Step:     uint32(step),
		Data:     data,
	}, nil
}
