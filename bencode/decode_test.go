package bencode

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireParseError(t *testing.T, class error, cases ...string) {
	t.Helper()
	for _, c := range cases {
		v, err := Parse([]byte(c))
		require.Nil(t, v, "input %q", c)
		require.ErrorIs(t, err, class, "input %q", c)
		var de *DecodeError
		require.True(t, errors.As(err, &de), "input %q", c)
	}
}

func requireParse(t *testing.T, expected Value, input string) {
	t.Helper()
	v, err := Parse([]byte(input))
	require.Nil(t, err, "input %q", input)
	require.True(t, Equal(expected, v), "input %q parsed as %#v", input, v)
	require.Equal(t, []byte(input), Serialize(v), "input %q", input)
}

func TestParseEmpty(t *testing.T) {
	requireParseError(t, ErrUnexpectedEnd, "")
}

func TestParseTrailingData(t *testing.T) {
	requireParseError(t, ErrInvalid,
		"i0ei1e",
		"1:a2:bc3:def",
		"le0:de",
	)
}

func TestParseInteger(t *testing.T) {
	requireParse(t, Integer(0), "i0e")
	requireParse(t, Integer(11), "i11e")
	requireParse(t, Integer(-749), "i-749e")
	requireParse(t, Integer(9223372036854775807), "i9223372036854775807e")
	requireParse(t, Integer(-9223372036854775808), "i-9223372036854775808e")
}

func TestParseIntegerEOF(t *testing.T) {
	requireParseError(t, ErrUnexpectedEnd,
		"i",
		"i0",
		"i1248",
		"i-",
	)
}

func TestParseIntegerInvalid(t *testing.T) {
	requireParseError(t, ErrInvalid,
		"ie",
		"i00",
		"i00e",
		"i019",
		"i0199e",
		"i-e",
		"i-0",
		"i-0e",
		"i-026e",
		"i-B",
		"iA",
		"iAe",
		"i01Ce",
		"i+5e",
		"i4.0e",
		"i9E9e",
		"i--5e",
	)
}

func TestParseIntegerOutOfRange(t *testing.T) {
	requireParseError(t, ErrInvalid,
		"i9223372036854775808e",
		"i-9223372036854775809e",
		"i18446744073709551616e",
		"i99999999999999999999999999e",
	)
}

func TestParseByteString(t *testing.T) {
	requireParse(t, ByteString(""), "0:")
	requireParse(t, ByteString("&"), "1:&")
	requireParse(t, ByteString("abcdefghijklm"), "13:abcdefghijklm")
	requireParse(t, ByteString("\x00\xff:e"), "4:\x00\xff:e")
}

func TestParseByteStringEOF(t *testing.T) {
	requireParseError(t, ErrUnexpectedEnd,
		"0",
		"1",
		"843",
		"1:",
		"2:",
		"2:q",
		"d",
		"d3:$",
		"999999999999:abc",
	)
}

func TestParseByteStringInvalid(t *testing.T) {
	requireParseError(t, ErrInvalid,
		"00",
		"01",
		"00:",
		"01:",
		"-",
		"-0",
		"-1:",
		"1a:b",
		"99999999999999999999:",
	)
}

func TestParseList(t *testing.T) {
	requireParse(t, List{}, "le")
	requireParse(t, List{Integer(-6)}, "li-6ee")
	requireParse(t, List{ByteString("00"), Integer(55)}, "l2:00i55ee")
	requireParse(t, List{List{}, List{}}, "llelee")
	requireParse(t, List{Integer(-88), List{}, ByteString("X")}, "li-88ele1:Xe")
}

func TestParseListEOF(t *testing.T) {
	requireParseError(t, ErrUnexpectedEnd,
		"l",
		"li0e",
		"llleleel",
	)
}

func TestParseListInvalid(t *testing.T) {
	requireParseError(t, ErrInvalid,
		"lxe",
		"l-e",
		"li01ee",
	)
}

func TestParseDictionary(t *testing.T) {
	requireParse(t, Dictionary{}, "de")
	requireParse(t, Dictionary{"-": Integer(404)}, "d1:-i404ee")
	requireParse(t, Dictionary{"010": ByteString("101"), "yU": List{}}, "d3:0103:1012:yUlee")
	requireParse(t, Dictionary{"AAA": ByteString("-14142"), "ZZ": Integer(768)}, "d3:AAA6:-141422:ZZi768ee")
	requireParse(t, Dictionary{"\x03": List{}, "\x08": Dictionary{}}, "d1:\x03le1:\x08dee")
}

func TestParseDictionaryEOF(t *testing.T) {
	requireParseError(t, ErrUnexpectedEnd,
		"d",
		"d1::",
		"d2:  0:",
		"d0:d",
	)
}

func TestParseDictionaryInvalid(t *testing.T) {
	requireParseError(t, ErrInvalid,
		"d:",
		"d-",
		"die",
		"dle",
		"d1:A0:1:A1:.",
		"d1:B0:1:A1:.",
		"d1:B0:1:D0:1:C0:",
		"d1:E0:1:F0:1:E0:",
		"d2:gg0:1:g0:",
	)
}

func TestParseDictionaryKeyErrorsBeforeValue(t *testing.T) {
	require := require.New(t)

	// The value after the repeated key is truncated, but the key itself is already wrong.
	_, err := Parse([]byte("d1:A0:1:A"))
	require.ErrorIs(err, ErrInvalid)
	require.Contains(err.Error(), "duplicate dictionary key")

	_, err = Parse([]byte("d1:B0:1:A"))
	require.ErrorIs(err, ErrInvalid)
	require.Contains(err.Error(), "out of order")
}

func TestParseErrorOffset(t *testing.T) {
	require := require.New(t)

	_, err := Parse([]byte("li1ei01ee"))
	var de *DecodeError
	require.True(errors.As(err, &de))
	require.Equal(ErrInvalid, de.Class)
	require.Equal(int64(7), de.Offset)
	require.Equal("bencode: invalid data at offset 7: leading zero in integer", de.Error())
}

func TestParseMaxDepth(t *testing.T) {
	require := require.New(t)

	nested := func(n int) []byte {
		return []byte(strings.Repeat("l", n) + strings.Repeat("e", n))
	}

	_, err := Parse(nested(DefaultMaxDepth))
	require.Nil(err)
	_, err = Parse(nested(DefaultMaxDepth + 1))
	require.ErrorIs(err, ErrInvalid)

	_, err = Parse(nested(3), WithMaxDepth(3))
	require.Nil(err)
	_, err = Parse(nested(4), WithMaxDepth(3))
	require.ErrorIs(err, ErrInvalid)
	_, err = Parse([]byte("d1:ad1:bd1:cdeeee"), WithMaxDepth(3))
	require.ErrorIs(err, ErrInvalid)

	// Unterminated and deeper than allowed reports the depth violation first.
	_, err = Parse([]byte(strings.Repeat("l", 100000)))
	require.ErrorIs(err, ErrInvalid)
}

func TestParseLargeByteString(t *testing.T) {
	require := require.New(t)

	payload := bytes.Repeat([]byte{0xab}, maxPreallocLength*3+7)
	input := append([]byte("196615:"), payload...)
	v, err := Parse(input)
	require.Nil(err)
	require.Equal(ByteString(payload), v)

	_, err = Parse(input[:len(input)-1])
	require.ErrorIs(err, ErrUnexpectedEnd)
}

func TestDecoderStream(t *testing.T) {
	require := require.New(t)

	d := NewDecoder(strings.NewReader("i0ei1e3:abcle"), WithStream())
	var got []Value
	for {
		more, err := d.More()
		require.Nil(err)
		if !more {
			break
		}
		v, err := d.Decode()
		require.Nil(err)
		got = append(got, v)
	}
	require.Equal([]Value{Integer(0), Integer(1), ByteString("abc"), List{}}, got)
	require.Equal(int64(13), d.InputOffset())

	_, err := d.Decode()
	require.ErrorIs(err, ErrUnexpectedEnd)
}

func TestDecoderStreamStopsAtFirstError(t *testing.T) {
	require := require.New(t)

	d := NewDecoder(strings.NewReader("i1ei01e"), WithStream())
	v, err := d.Decode()
	require.Nil(err)
	require.Equal(Integer(1), v)
	_, err = d.Decode()
	require.ErrorIs(err, ErrInvalid)
}

type onlyReader struct {
	r io.Reader
}

func (o onlyReader) Read(p []byte) (int, error) {
	return o.r.Read(p)
}

func TestDecoderPlainReader(t *testing.T) {
	require := require.New(t)

	v, err := NewDecoder(onlyReader{strings.NewReader("d1:ai1ee")}).Decode()
	require.Nil(err)
	require.Equal(Dictionary{"a": Integer(1)}, v)

	_, err = NewDecoder(onlyReader{strings.NewReader("d1:ai1eei2e")}).Decode()
	require.ErrorIs(err, ErrInvalid)
}

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestDecoderReadErrorIsNotClassified(t *testing.T) {
	require := require.New(t)

	_, err := NewDecoder(brokenReader{}).Decode()
	require.NotNil(err)
	require.False(errors.Is(err, ErrInvalid))
	require.False(errors.Is(err, ErrUnexpectedEnd))
	require.Contains(err.Error(), "connection reset")
}

func TestRoundTrip(t *testing.T) {
	require := require.New(t)

	values := []Value{
		Integer(0),
		Integer(-1),
		ByteString{},
		ByteString("\x00\x01\x02"),
		List{List{List{}}, Dictionary{}},
		Dictionary{
			"announce": ByteString("http://example.com/announce"),
			"info": Dictionary{
				"length":       Integer(1 << 40),
				"name":         ByteString("file.bin"),
				"piece length": Integer(262144),
				"pieces":       ByteString(bytes.Repeat([]byte{0x13}, 40)),
			},
			"url-list": List{ByteString("a"), ByteString("b")},
		},
	}
	for _, v := range values {
		buf := Serialize(v)
		out, err := Parse(buf)
		require.Nil(err)
		require.True(Equal(v, out), "value %#v", v)
		require.Equal(buf, Serialize(out))
	}
}
