// Package imagemsg models the camera driver's image message (the
// sensor_msgs/Image layout), its wire codecs, and the conversion of a message
// into a receiver.Frame in a requested pixel encoding.
package imagemsg

import "time"

// Header mirrors std_msgs/Header.
type Header struct {
	Seq     uint32 `msgpack:"seq"`
	Secs    uint32 `msgpack:"secs"`
	Nsecs   uint32 `msgpack:"nsecs"`
	FrameID string `msgpack:"frame_id"`
}

// Stamp returns the header time, or the zero time when unset.
func (h Header) Stamp() time.Time {
	if h.Secs == 0 && h.Nsecs == 0 {
		return time.Time{}
	}
	return time.Unix(int64(h.Secs), int64(h.Nsecs))
}

// SetStamp stores t in the header.
func (h *Header) SetStamp(t time.Time) {
	h.Secs = uint32(t.Unix())
	h.Nsecs = uint32(t.Nanosecond())
}

// Image is one uncompressed image message.
//
// Data holds Height rows of Step bytes each; only the first
// Width*channels(Encoding) bytes of every row are pixels.
type Image struct {
	Header      Header `msgpack:"header"`
	Height      uint32 `msgpack:"height"`
	Width       uint32 `msgpack:"width"`
	Encoding    string `msgpack:"encoding"`
	IsBigEndian uint8  `msgpack:"is_bigendian"`
	Step        uint32 `msgpack:"step"`
	Data        []byte `msgpack:"data"`
}
