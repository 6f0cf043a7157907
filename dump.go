package bencodetools

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/meow-io/go-bencodetools/bencode"
)

const dumpIndent = "  "

// Dump writes an indented, human readable rendering of v to w. Byte strings made only of printable ASCII are
// quoted, anything else is shown as hex.
func Dump(w io.Writer, v bencode.Value) error {
	var buf bytes.Buffer
	dumpValue(&buf, v, 0)
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func (c *Codec) Dump(w io.Writer, v bencode.Value) error {
	return Dump(w, v)
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

func formatBytes(b []byte) string {
	if printable(b) {
		return strconv.Quote(string(b))
	}
	return "0x" + hex.EncodeToString(b)
}

func dumpValue(buf *bytes.Buffer, v bencode.Value, depth int) {
	pad := strings.Repeat(dumpIndent, depth+1)
	switch v := v.(type) {
	case bencode.Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case bencode.ByteString:
		buf.WriteString(formatBytes(v))
	case bencode.List:
		if len(v) == 0 {
			buf.WriteString("[]")
			return
		}
		buf.WriteString("[\n")
		for _, e := range v {
			buf.WriteString(pad)
			dumpValue(buf, e, depth+1)
			buf.WriteByte('\n')
		}
		buf.WriteString(strings.Repeat(dumpIndent, depth))
		buf.WriteByte(']')
	case bencode.Dictionary:
		if len(v) == 0 {
			buf.WriteString("{}")
			return
		}
		buf.WriteString("{\n")
		for _, k := range v.SortedKeys() {
			buf.WriteString(pad)
			buf.WriteString(formatBytes([]byte(k)))
			buf.WriteString(": ")
			dumpValue(buf, v[k], depth+1)
			buf.WriteByte('\n')
		}
		buf.WriteString(strings.Repeat(dumpIndent, depth))
		buf.WriteByte('}')
	default:
		panic(fmt.Sprintf("unknown bencode value %T", v))
	}
}
