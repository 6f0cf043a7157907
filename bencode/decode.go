package bencode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// The two classes every parse failure falls into. Use errors.Is to test a returned error against them.
var (
	// More input was needed to continue and none was available.
	ErrUnexpectedEnd = errors.New("bencode: unexpected end of input")
	// The input is present but is not a canonical bencode encoding.
	ErrInvalid = errors.New("bencode: invalid data")
)

// Maximum number of nested lists and dictionaries accepted by default.
const DefaultMaxDepth = 512

// Byte strings up to this length are read into a buffer allocated up front. Longer ones grow as bytes arrive
// so an untrusted length prefix cannot force a large allocation.
const maxPreallocLength = 64 * 1024

type DecodeError struct {
	// Either ErrUnexpectedEnd or ErrInvalid.
	Class error
	// Number of bytes consumed when the error was detected.
	Offset int64
	msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Class, e.Offset, e.msg)
}

func (e *DecodeError) Unwrap() error {
	return e.Class
}

type DecoderOption func(*Decoder)

// Limit nesting of lists and dictionaries to n levels. Deeper input is rejected as ErrInvalid. Values below 1
// select DefaultMaxDepth.
func WithMaxDepth(n int) DecoderOption {
	return func(d *Decoder) {
		if n < 1 {
			n = DefaultMaxDepth
		}
		d.maxDepth = n
	}
}

// Permit bytes after a complete top-level value. Each call to Decode then returns the next value in the stream.
func WithStream() DecoderOption {
	return func(d *Decoder) {
		d.stream = true
	}
}

type byteReader interface {
	io.Reader
	io.ByteScanner
}

// Reads bencode values from an input stream.
type Decoder struct {
	r        byteReader
	pos      int64
	maxDepth int
	stream   bool
}

// Returns a decoder reading from r. When r is not an io.ByteScanner it is wrapped in a bufio.Reader, and the
// decoder may read beyond the last value it returns.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	d := &Decoder{
		r:        br,
		maxDepth: DefaultMaxDepth,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Parse decodes exactly one value occupying the whole of buf.
func Parse(buf []byte, opts ...DecoderOption) (Value, error) {
	return NewDecoder(bytes.NewReader(buf), opts...).Decode()
}

// Decode reads the next value. Unless the decoder was created WithStream, the input must end right after it.
// On failure no partial value is returned.
func (d *Decoder) Decode() (Value, error) {
	v, err := d.readValue(0)
	if err != nil {
		return nil, err
	}
	if d.stream {
		return v, nil
	}
	more, err := d.More()
	if err != nil {
		return nil, err
	}
	if more {
		return nil, d.invalid("unexpected data after value")
	}
	return v, nil
}

// Reports whether any input remains.
func (d *Decoder) More() (bool, error) {
	if _, err := d.r.ReadByte(); err != nil {
		if isEOF(err) {
			return false, nil
		}
		return false, d.readError(err)
	}
	if err := d.r.UnreadByte(); err != nil {
		return false, d.readError(err)
	}
	return true, nil
}

// Number of bytes consumed so far.
func (d *Decoder) InputOffset() int64 {
	return d.pos
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (d *Decoder) invalid(msg string, vars ...interface{}) *DecodeError {
	return &DecodeError{Class: ErrInvalid, Offset: d.pos, msg: fmt.Sprintf(msg, vars...)}
}

func (d *Decoder) unexpectedEnd(msg string, vars ...interface{}) *DecodeError {
	return &DecodeError{Class: ErrUnexpectedEnd, Offset: d.pos, msg: fmt.Sprintf(msg, vars...)}
}

func (d *Decoder) readError(err error) error {
	return fmt.Errorf("bencode: read failed at offset %d: %w", d.pos, err)
}

// Reads one byte. what names the expected input for the end-of-input message.
func (d *Decoder) readByte(what string) (byte, error) {
	c, err := d.r.ReadByte()
	if err != nil {
		if isEOF(err) {
			return 0, d.unexpectedEnd("expected %s, but no more bytes left", what)
		}
		return 0, d.readError(err)
	}
	d.pos++
	return c, nil
}

func (d *Decoder) peekByte(what string) (byte, error) {
	c, err := d.r.ReadByte()
	if err != nil {
		if isEOF(err) {
			return 0, d.unexpectedEnd("expected %s, but no more bytes left", what)
		}
		return 0, d.readError(err)
	}
	if err := d.r.UnreadByte(); err != nil {
		return 0, d.readError(err)
	}
	return c, nil
}

func (d *Decoder) expectByte(b byte) error {
	c, err := d.readByte(fmt.Sprintf("0x%x", b))
	if err != nil {
		return err
	}
	if c != b {
		return d.invalid("expected 0x%x got 0x%x", b, c)
	}
	return nil
}

func (d *Decoder) readValue(depth int) (Value, error) {
	c, err := d.peekByte("value")
	if err != nil {
		return nil, err
	}
	switch {
	case c == numberStart:
		n, err := d.readInt()
		if err != nil {
			return nil, err
		}
		return Integer(n), nil
	case isDigit(c):
		b, err := d.readBytes()
		if err != nil {
			return nil, err
		}
		return ByteString(b), nil
	case c == listStart:
		return d.readList(depth)
	case c == dictStart:
		return d.readDict(depth)
	default:
		return nil, d.invalid("unexpected 0x%x at start of value", c)
	}
}

func (d *Decoder) readInt() (int64, error) {
	if err := d.expectByte(numberStart); err != nil {
		return 0, err
	}
	c, err := d.readByte("digit or 0x2d")
	if err != nil {
		return 0, err
	}
	neg := false
	if c == minusSign {
		neg = true
		if c, err = d.readByte("digit"); err != nil {
			return 0, err
		}
	}
	if !isDigit(c) {
		return 0, d.invalid("expected digit in integer, got 0x%x", c)
	}
	if c == digitZero {
		if neg {
			return 0, d.invalid("negative zero not allowed")
		}
		if c, err = d.readByte("0x65"); err != nil {
			return 0, err
		}
		if c != bencodeEnd {
			return 0, d.invalid("leading zero in integer")
		}
		return 0, nil
	}

	limit := uint64(math.MaxInt64)
	if neg {
		limit++
	}
	n := uint64(c - digitZero)
	for {
		if c, err = d.readByte("digit or 0x65"); err != nil {
			return 0, err
		}
		if c == bencodeEnd {
			break
		}
		if !isDigit(c) {
			return 0, d.invalid("expected digit in integer, got 0x%x", c)
		}
		digit := uint64(c - digitZero)
		if n > (limit-digit)/10 {
			return 0, d.invalid("integer out of range")
		}
		n = n*10 + digit
	}
	if neg {
		return int64(-n), nil
	}
	return int64(n), nil
}

func (d *Decoder) readLength() (int64, error) {
	c, err := d.readByte("byte string length")
	if err != nil {
		return 0, err
	}
	if !isDigit(c) {
		return 0, d.invalid("expected byte string length, got 0x%x", c)
	}
	if c == digitZero {
		if c, err = d.readByte("0x3a"); err != nil {
			return 0, err
		}
		if c != bytesLengthSep {
			return 0, d.invalid("leading zero in byte string length")
		}
		return 0, nil
	}

	n := int64(c - digitZero)
	for {
		if c, err = d.readByte("digit or 0x3a"); err != nil {
			return 0, err
		}
		if c == bytesLengthSep {
			return n, nil
		}
		if !isDigit(c) {
			return 0, d.invalid("expected digit in byte string length, got 0x%x", c)
		}
		digit := int64(c - digitZero)
		if n > (math.MaxInt64-digit)/10 {
			return 0, d.invalid("byte string length out of range")
		}
		n = n*10 + digit
	}
}

func (d *Decoder) readBytes() ([]byte, error) {
	l, err := d.readLength()
	if err != nil {
		return nil, err
	}
	if l <= maxPreallocLength {
		b := make([]byte, l)
		n, err := io.ReadFull(d.r, b)
		d.pos += int64(n)
		if err != nil {
			return nil, d.payloadError(err, l, int64(n))
		}
		return b, nil
	}
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, d.r, l)
	d.pos += n
	if err != nil {
		return nil, d.payloadError(err, l, n)
	}
	return buf.Bytes(), nil
}

func (d *Decoder) payloadError(err error, want, got int64) error {
	if isEOF(err) {
		return d.unexpectedEnd("byte string declares %d bytes, only %d available", want, got)
	}
	return d.readError(err)
}

func (d *Decoder) enter(depth int) error {
	if depth >= d.maxDepth {
		return d.invalid("nesting deeper than %d", d.maxDepth)
	}
	return nil
}

func (d *Decoder) readList(depth int) (List, error) {
	if err := d.enter(depth); err != nil {
		return nil, err
	}
	if err := d.expectByte(listStart); err != nil {
		return nil, err
	}
	l := List{}
	for {
		c, err := d.peekByte("list element or 0x65")
		if err != nil {
			return nil, err
		}
		if c == bencodeEnd {
			if _, err := d.readByte("0x65"); err != nil {
				return nil, err
			}
			return l, nil
		}
		v, err := d.readValue(depth + 1)
		if err != nil {
			return nil, err
		}
		l = append(l, v)
	}
}

func (d *Decoder) readDict(depth int) (Dictionary, error) {
	if err := d.enter(depth); err != nil {
		return nil, err
	}
	if err := d.expectByte(dictStart); err != nil {
		return nil, err
	}
	dict := Dictionary{}
	var prev string
	for {
		c, err := d.peekByte("dictionary key or 0x65")
		if err != nil {
			return nil, err
		}
		if c == bencodeEnd {
			if _, err := d.readByte("0x65"); err != nil {
				return nil, err
			}
			return dict, nil
		}
		b, err := d.readBytes()
		if err != nil {
			return nil, err
		}
		key := string(b)
		if len(dict) > 0 {
			if key == prev {
				return nil, d.invalid("duplicate dictionary key %q", key)
			}
			if key < prev {
				return nil, d.invalid("dictionary key %q out of order after %q", key, prev)
			}
		}
		v, err := d.readValue(depth + 1)
		if err != nil {
			return nil, err
		}
		dict[key] = v
		prev = key
	}
}
