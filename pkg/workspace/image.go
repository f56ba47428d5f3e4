package workspace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/zurustar/padscript/pkg/bytecode"
)

// Magic starts every image.
const Magic = 0xCAFE

var (
	// ErrBadMagic is returned when an image does not start with Magic.
	ErrBadMagic = errors.New("bad image magic")

	// ErrTruncated is returned when an image ends early.
	ErrTruncated = errors.New("truncated image")
)

// Image is a set of configurations ready to be instantiated.
//
// The encoded form is little-endian: the magic, then for each
// configuration its length in bytes followed by its actions, each as a
// length and the action's bytecode. A zero configuration length ends
// the image. Names are not encoded.
type Image struct {
	Configurations []Configuration
}

// Configuration is an ordered list of actions.
type Configuration struct {
	Name    string
	Actions []Action
}

// Action is a compiled action. Bytecode starts with the stack-size
// header.
type Action struct {
	Name     string
	Bytecode []byte
}

// StackSize returns the stack size from the action's header.
func (a Action) StackSize() (int, error) {
	size, _, err := bytecode.ParseHeader(a.Bytecode)
	return size, err
}

func (c Configuration) encodedLen() int {
	n := 0
	for _, a := range c.Actions {
		n += 2 + len(a.Bytecode)
	}
	return n
}

// Encode returns the binary form of the image.
func (img *Image) Encode() ([]byte, error) {
	buf := binary.LittleEndian.AppendUint16(nil, Magic)
	for _, c := range img.Configurations {
		if len(c.Actions) == 0 {
			return nil, fmt.Errorf("configuration %q has no actions", c.Name)
		}
		n := c.encodedLen()
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("configuration %q is %d bytes, more than %d", c.Name, n, math.MaxUint16)
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(n))
		for _, a := range c.Actions {
			if len(a.Bytecode) < bytecode.HeaderSize {
				return nil, fmt.Errorf("action %q has no stack-size header", a.Name)
			}
			buf = binary.LittleEndian.AppendUint16(buf, uint16(len(a.Bytecode)))
			buf = append(buf, a.Bytecode...)
		}
	}
	return binary.LittleEndian.AppendUint16(buf, 0), nil
}

// Size returns the length of the encoded image.
func (img *Image) Size() int {
	n := 4
	for _, c := range img.Configurations {
		n += 2 + c.encodedLen()
	}
	return n
}

// DecodeImage parses an encoded image. Bytes after the terminator are an
// error.
func DecodeImage(data []byte) (*Image, error) {
	r := reader{data: data}
	magic, ok := r.u16()
	if !ok {
		return nil, ErrTruncated
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: 0x%04X", ErrBadMagic, magic)
	}

	img := &Image{}
	for {
		conflen, ok := r.u16()
		if !ok {
			return nil, fmt.Errorf("%w: missing terminator", ErrTruncated)
		}
		if conflen == 0 {
			break
		}

		var c Configuration
		for remaining := int(conflen); remaining > 0; {
			at := r.off
			actionlen, ok := r.u16()
			if !ok {
				return nil, fmt.Errorf("%w: action length at 0x%04X", ErrTruncated, at)
			}
			if int(actionlen) < bytecode.HeaderSize || int(actionlen)+2 > remaining {
				return nil, fmt.Errorf("invalid action length %d at 0x%04X", actionlen, at)
			}
			code, ok := r.bytes(int(actionlen))
			if !ok {
				return nil, fmt.Errorf("%w: action at 0x%04X", ErrTruncated, at)
			}
			c.Actions = append(c.Actions, Action{Bytecode: code})
			remaining -= int(actionlen) + 2
		}
		img.Configurations = append(img.Configurations, c)
	}

	if r.off != len(data) {
		return nil, fmt.Errorf("%d bytes after terminator", len(data)-r.off)
	}
	return img, nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) u16() (uint16, bool) {
	if r.off+2 > len(r.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, true
}

func (r *reader) bytes(n int) ([]byte, bool) {
	if r.off+n > len(r.data) {
		return nil, false
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:])
	r.off += n
	return b, true
}
