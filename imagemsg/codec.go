package imagemsg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownCodec is returned by CodecByName for an unregistered name.
var ErrUnknownCodec = errors.New("imagemsg: unknown codec")

// Codec converts between Image and its wire bytes.
type Codec interface {
	Name() string
	Marshal(img *Image) ([]byte, error)
	Unmarshal(data []byte, img *Image) error
}

// CodecByName returns the codec registered under name ("ros1" or "msgpack").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "ros1":
		return ROS1{}, nil
	case "msgpack":
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// Msgpack encodes images as msgpack maps keyed by the message field names.
type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }

func (Msgpack) Marshal(img *Image) ([]byte, error) {
	data, err := msgpack.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("imagemsg: msgpack marshal: %w", err)
	}
	return data, nil
}

func (Msgpack) Unmarshal(data []byte, img *Image) error {
	if err := msgpack.Unmarshal(data, img); err != nil {
		return fmt.Errorf("imagemsg: msgpack unmarshal: %w", err)
	}
	return nil
}

// ROS1 is the ROS1 serialization of sensor_msgs/Image: little-endian fixed
// width integers, strings and byte arrays prefixed with a uint32 length.
type ROS1 struct{}

func (ROS1) Name() string { return "ros1" }

func (ROS1) Marshal(img *Image) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64 + len(img.Header.FrameID) + len(img.Encoding) + len(img.Data))

	w := ros1Writer{buf: &buf}
	w.uint32(img.Header.Seq)
	w.uint32(img.Header.Secs)
	w.uint32(img.Header.Nsecs)
	w.bytes([]byte(img.Header.FrameID))
	w.uint32(img.Height)
	w.uint32(img.Width)
	w.bytes([]byte(img.Encoding))
	buf.WriteByte(img.IsBigEndian)
	w.uint32(img.Step)
	w.bytes(img.Data)

	return buf.Bytes(), nil
}

func (ROS1) Unmarshal(data []byte, img *Image) error {
	r := ros1Reader{data: data}

	img.Header.Seq = r.uint32()
	img.Header.Secs = r.uint32()
	img.Header.Nsecs = r.uint32()
	img.Header.FrameID = string(r.bytes())
	img.Height = r.uint32()
	img.Width = r.uint32()
	img.Encoding = string(r.bytes())
	img.IsBigEndian = r.uint8()
	img.Step = r.uint32()
	img.Data = r.bytes()

	if r.err != nil {
		return fmt.Errorf("imagemsg: ros1 unmarshal: %w", r.err)
	}
	return nil
}

type ros1Writer struct {
	buf *bytes.Buffer
}

func (w ros1Writer) uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w ros1Writer) bytes(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf.Write(b)
}

// ros1Reader keeps the first error; later reads return zero values.
type ros1Reader struct {
	data []byte
	off  int
	err  error
}

func (r *ros1Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *ros1Reader) uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *ros1Reader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *ros1Reader) bytes() []byte {
	n := r.uint32()
	if r.err != nil {
		return nil
	}
	if uint64(n) > uint64(len(r.data)-r.off) {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	return r.take(int(n))
}
