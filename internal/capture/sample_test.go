package capture

import (
	"bytes"
	"errors"
	"testing"

	"github.com/e7canasta/sequoia-bands/imagemsg"
	"github.com/e7canasta/sequoia-bands/internal/config"
)

func TestEncodingFor(t *testing.T) {
	tests := map[string]string{
		"BGR":   imagemsg.BGR8,
		"BGRx":  imagemsg.BGRA8,
		"RGBA":  imagemsg.RGBA8,
		"GRAY8": imagemsg.Mono8,
	}
	for format, want := range tests {
		got, err := EncodingFor(format)
		if err != nil {
			t.Errorf("EncodingFor(%q) failed: %v", format, err)
			continue
		}
		if got != want {
			t.Errorf("EncodingFor(%q) = %q, want %q", format, got, want)
		}
	}

	if _, err := EncodingFor("I420"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("EncodingFor(I420) error = %v, want ErrUnsupportedFormat", err)
	}
}

// 3x2 BGR rows are padded from 9 to 12 bytes by GStreamer.
func TestImageFromSamplePaddedRows(t *testing.T) {
	data := []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 0, 0,
		10, 11, 12, 13, 14, 15, 16, 17, 18, 0, 0, 0,
	}

	img, err := ImageFromSample("BGR", 3, 2, data)
	if err != nil {
		t.Fatalf("ImageFromSample failed: %v", err)
	}
	if img.Step != 12 || img.Encoding != imagemsg.BGR8 {
		t.Fatalf("Step=%d Encoding=%q, want 12 bgr8", img.Step, img.Encoding)
	}

	frame, err := imagemsg.ToFrame(img, imagemsg.Passthrough)
	if err != nil {
		t.Fatalf("ToFrame failed: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}
	if !bytes.Equal(frame.Pix, want) {
		t.Errorf("Pix = %v, want %v", frame.Pix, want)
	}
}

func TestImageFromSampleErrors(t *testing.T) {
	if _, err := ImageFromSample("BGRx", 2, 2, make([]byte, 8)); err == nil {
		t.Error("short buffer accepted")
	}
	if _, err := ImageFromSample("BGRx", 0, 2, make([]byte, 8)); err == nil {
		t.Error("zero width accepted")
	}
	if _, err := ImageFromSample("NV12", 2, 2, make([]byte, 6)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("NV12 error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNewSourceStopWithoutStart(t *testing.T) {
	s := NewSource(config.GStreamerConfig{Pipeline: "videotestsrc ! appsink name=sink"}, imagemsg.Msgpack{})
	if err := s.Stop(); err != nil {
		t.Errorf("Stop without Start = %v", err)
	}
	if s.Name() != "gstreamer" {
		t.Errorf("Name() = %q", s.Name())
	}
}
