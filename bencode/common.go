// This package implements the bencode serialization format used by BitTorrent. Values are represented by
// a closed set of four types (Integer, ByteString, List and Dictionary) which always serialize to exactly one
// canonical byte sequence. The parser is strict: any input which is not already in canonical form is rejected
// with an error classified as either ErrUnexpectedEnd or ErrInvalid.
//
// As well, the package can map tagged Go structs to and from values. Struct fields are annotated with
// `bencode:".."` tags naming the dictionary key they are stored under.
package bencode

const (
	numberStart    = 0x69
	dictStart      = 0x64
	listStart      = 0x6c
	bencodeEnd     = 0x65
	bytesLengthSep = 0x3a
	minusSign      = 0x2d
	digitZero      = 0x30
	digitNine      = 0x39
)

func isDigit(c byte) bool {
	return c >= digitZero && c <= digitNine
}
