package bencode

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
)

// Serialize returns the canonical encoding of v. It cannot fail for any value built from the four variants.
func Serialize(v Value) []byte {
	var buf bytes.Buffer
	w := newWriter(&buf)
	if err := w.writeValue(v); err != nil {
		// bytes.Buffer only fails by panicking with ErrTooLarge
		panic(err)
	}
	return buf.Bytes()
}

// Encode writes the canonical encoding of v to out. The only errors returned come from out itself.
func Encode(out io.Writer, v Value) error {
	bw := bufio.NewWriter(out)
	w := newWriter(bw)
	if err := w.writeValue(v); err != nil {
		return err
	}
	return bw.Flush()
}

type byteWriter interface {
	io.Writer
	io.ByteWriter
	io.StringWriter
}

type writer struct {
	out byteWriter
}

func newWriter(out byteWriter) writer {
	return writer{out: out}
}

func (w *writer) writeByte(b byte) error {
	return w.out.WriteByte(b)
}

func (w *writer) writeBytes(b []byte) error {
	if _, err := w.out.WriteString(strconv.Itoa(len(b))); err != nil {
		return err
	}
	if err := w.out.WriteByte(bytesLengthSep); err != nil {
		return err
	}
	if _, err := w.out.Write(b); err != nil {
		return err
	}
	return nil
}

func (w *writer) writeKey(k string) error {
	if _, err := w.out.WriteString(strconv.Itoa(len(k))); err != nil {
		return err
	}
	if err := w.out.WriteByte(bytesLengthSep); err != nil {
		return err
	}
	_, err := w.out.WriteString(k)
	return err
}

func (w *writer) writeSignedNumber(n int64) error {
	if err := w.out.WriteByte(numberStart); err != nil {
		return err
	}
	if _, err := w.out.WriteString(strconv.FormatInt(n, 10)); err != nil {
		return err
	}
	return w.writeByte(bencodeEnd)
}

func (w *writer) writeValue(v Value) error {
	switch v := v.(type) {
	case Integer:
		return w.writeSignedNumber(int64(v))
	case ByteString:
		return w.writeBytes(v)
	case List:
		if err := w.writeByte(listStart); err != nil {
			return err
		}
		for _, e := range v {
			if err := w.writeValue(e); err != nil {
				return err
			}
		}
		return w.writeByte(bencodeEnd)
	case Dictionary:
		if err := w.writeByte(dictStart); err != nil {
			return err
		}
		for _, k := range v.SortedKeys() {
			if err := w.writeKey(k); err != nil {
				return err
			}
			if err := w.writeValue(v[k]); err != nil {
				return err
			}
		}
		return w.writeByte(bencodeEnd)
	default:
		panic(unknownValue(v))
	}
}
