package bencode

import (
	"bytes"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Kind int

const (
	KindInteger Kind = iota
	KindByteString
	KindList
	KindDictionary
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindByteString:
		return "byte string"
	case KindList:
		return "list"
	case KindDictionary:
		return "dictionary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// A bencode value. The only implementations are Integer, ByteString, List and Dictionary.
type Value interface {
	Kind() Kind
	isValue()
}

type Integer int64

type ByteString []byte

type List []Value

// Dictionary keys are arbitrary byte sequences held in a string.
type Dictionary map[string]Value

func (Integer) Kind() Kind    { return KindInteger }
func (ByteString) Kind() Kind { return KindByteString }
func (List) Kind() Kind       { return KindList }
func (Dictionary) Kind() Kind { return KindDictionary }

func (Integer) isValue()    {}
func (ByteString) isValue() {}
func (List) isValue()       {}
func (Dictionary) isValue() {}

// Returns the keys of the dictionary in canonical order, which is strictly ascending by byte value.
func (d Dictionary) SortedKeys() []string {
	keys := maps.Keys(d)
	slices.Sort(keys)
	return keys
}

func unknownValue(v Value) string {
	return fmt.Sprintf("unknown bencode value %T", v)
}

// Reports whether a and b are the same variant with recursively identical contents.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Integer:
		bv, ok := b.(Integer)
		return ok && av == bv
	case ByteString:
		bv, ok := b.(ByteString)
		return ok && bytes.Equal(av, bv)
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Dictionary:
		bv, ok := b.(Dictionary)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !Equal(ae, be) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		panic(unknownValue(a))
	}
}
