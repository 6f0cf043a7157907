// This package provides a high-level interface to the bencode codec. A Codec ties parsing and serialization to a
// config, logs what it accepts and rejects, and adds helpers for files, canonical checks, fingerprints and dumps.
package bencodetools

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/meow-io/go-bencodetools/bencode"
	"github.com/meow-io/go-bencodetools/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

type Codec struct {
	config *config.Config
	log    *zap.SugaredLogger
}

func NewCodec(c *config.Config) *Codec {
	return &Codec{
		config: c,
		log:    c.Logger("codec"),
	}
}

// Parse decodes a single value occupying the whole of buf, regardless of the stream setting.
func (c *Codec) Parse(buf []byte) (bencode.Value, error) {
	v, err := bencode.Parse(buf, bencode.WithMaxDepth(c.config.MaxDepth))
	if err != nil {
		c.log.Warnf("rejected %d byte input: %v", len(buf), err)
		return nil, err
	}
	c.log.Debugf("parsed %s from %d bytes", v.Kind(), len(buf))
	return v, nil
}

// Decode reads r to the end. With a streaming config it returns every concatenated value, possibly none;
// otherwise r must hold exactly one value.
func (c *Codec) Decode(r io.Reader) ([]bencode.Value, error) {
	d := bencode.NewDecoder(r, c.config.DecoderOptions()...)
	if !c.config.Stream {
		v, err := d.Decode()
		if err != nil {
			c.log.Warnf("rejected input: %v", err)
			return nil, err
		}
		c.log.Debugf("decoded %s from %d bytes", v.Kind(), d.InputOffset())
		return []bencode.Value{v}, nil
	}

	values := []bencode.Value{}
	for {
		more, err := d.More()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		v, err := d.Decode()
		if err != nil {
			c.log.Warnf("rejected value %d of stream: %v", len(values), err)
			return nil, err
		}
		values = append(values, v)
	}
	c.log.Debugf("decoded %d values from %d bytes", len(values), d.InputOffset())
	return values, nil
}

func (c *Codec) Serialize(v bencode.Value) []byte {
	buf := bencode.Serialize(v)
	c.log.Debugf("serialized %s into %d bytes", v.Kind(), len(buf))
	return buf
}

func (c *Codec) Encode(w io.Writer, v bencode.Value) error {
	if err := bencode.Encode(w, v); err != nil {
		c.log.Errorf("error while encoding %s: %v", v.Kind(), err)
		return err
	}
	return nil
}

// Reads and parses the file at path, which must hold exactly one value.
func (c *Codec) ReadFile(path string) (bencode.Value, error) {
	buf, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	v, err := c.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// Writes the canonical encoding of v to path. The data goes to a temporary file in the same directory which is
// renamed over path once complete.
func (c *Codec) WriteFile(path string, v bencode.Value) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".bencode-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := c.writeAndClose(f, v); err != nil {
		if err := os.Remove(tmp); err != nil {
			c.log.Errorf("error while removing %s: %v", tmp, err)
		}
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	c.log.Debugf("wrote %s to %s", v.Kind(), path)
	return nil
}

func (c *Codec) writeAndClose(f *os.File, v bencode.Value) error {
	if err := c.Encode(f, v); err != nil {
		if err := f.Close(); err != nil {
			c.log.Errorf("error while closing %s: %v", f.Name(), err)
		}
		return err
	}
	if err := f.Sync(); err != nil {
		if err := f.Close(); err != nil {
			c.log.Errorf("error while closing %s: %v", f.Name(), err)
		}
		return err
	}
	return f.Close()
}

// Check reports whether buf is the canonical encoding of exactly one value.
func (c *Codec) Check(buf []byte) error {
	v, err := c.Parse(buf)
	if err != nil {
		return err
	}
	if out := bencode.Serialize(v); !bytes.Equal(out, buf) {
		return fmt.Errorf("input is not canonical: re-encodes to %d bytes instead of %d", len(out), len(buf))
	}
	return nil
}

// Fingerprint returns the BLAKE2b-256 digest of the canonical encoding of v. Equal values always have equal
// fingerprints.
func (c *Codec) Fingerprint(v bencode.Value) [32]byte {
	return blake2b.Sum256(bencode.Serialize(v))
}
