package imagemsg

import (
	"errors"
	"fmt"

	"github.com/e7canasta/sequoia-bands/receiver"
)

// ErrMalformedImage is returned when the message dimensions disagree with its data.
var ErrMalformedImage = errors.New("imagemsg: malformed image")

// Decoder unmarshals wire bytes with Codec and converts the image to Encoding.
// It implements receiver.Decoder.
type Decoder struct {
	Codec Codec

	// Encoding is the desired frame encoding. Empty or "passthrough" keeps
	// the message encoding.
	Encoding string
}

// Decode implements receiver.Decoder.
func (d Decoder) Decode(msg []byte) (*receiver.Frame, error) {
	var img Image
	if err := d.Codec.Unmarshal(msg, &img); err != nil {
		return nil, err
	}
	return ToFrame(&img, d.Encoding)
}

// ToFrame converts img into a frame in the desired encoding.
//
// Row padding (Step beyond Width*channels) is dropped, so the frame is always
// tightly packed HWC. The frame never aliases img.Data.
func ToFrame(img *Image, encoding string) (*receiver.Frame, error) {
	srcN, err := Channels(img.Encoding)
	if err != nil {
		return nil, err
	}

	// Dimensions come off the wire: size checks run in uint64 so no product
	// of two uint32 fields can wrap. Once need fits in Data every int below
	// is bounded by len(img.Data).
	rowLen64 := uint64(img.Width) * uint64(srcN)
	if uint64(img.Step) < rowLen64 {
		return nil, fmt.Errorf("%w: step %d < width %d * %d channels",
			ErrMalformedImage, img.Step, img.Width, srcN)
	}
	if need := uint64(img.Step) * uint64(img.Height); need > uint64(len(img.Data)) {
		return nil, fmt.Errorf("%w: data %d bytes, need %d",
			ErrMalformedImage, len(img.Data), need)
	}

	width, height := int(img.Width), int(img.Height)
	rowLen, step := int(rowLen64), int(img.Step)

	pix := make([]byte, rowLen*height)
	for y := 0; rowLen > 0 && y < height; y++ {
		copy(pix[y*rowLen:(y+1)*rowLen], img.Data[y*step:y*step+rowLen])
	}

	dst := encoding
	if dst == "" || dst == Passthrough || dst == img.Encoding {
		dst = img.Encoding
	} else {
		pix, err = convertPixels(pix, img.Encoding, dst)
		if err != nil {
			return nil, err
		}
	}

	dstN, err := Channels(dst)
	if err != nil {
		return nil, err
	}

	return &receiver.Frame{
		Pix:       pix,
		Width:     width,
		Height:    height,
		Channels:  dstN,
		Encoding:  dst,
		FrameID:   img.Header.FrameID,
		Timestamp: img.Header.Stamp(),
	}, nil
}

// FromPixels builds a tightly packed image message from raw pixels.
func FromPixels(width, height int, encoding string, pix []byte) (*Image, error) {
	n, err := Channels(encoding)
	if err != nil {
		return nil, err
	}
	if len(pix) != width*height*n {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d %s",
			ErrMalformedImage, len(pix), width, height, encoding)
	}
	return &Image{
		Height:   uint32(height),
		Width:    uint32(width),
		Encoding: encoding,
		Step:     uint32(width * n),
		Data:     pix,
	}, nil
}
