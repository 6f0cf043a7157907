package test

import (
	"bytes"
	crypto_rand "crypto/rand"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/meow-io/go-bencodetools/config"
)

type ID [8]byte

func newID() ID {
	var id [8]byte
	_, err := io.ReadFull(crypto_rand.Reader, id[:])
	if err != nil {
		panic("short read from random source")
	}
	return id
}

func DeleteAll(glob string) {
	files, err := filepath.Glob(glob)
	if err != nil {
		panic(err)
	}
	for _, f := range files {
		fileInfo, err := os.Stat(f)
		if err != nil {
			panic(err)
		}

		if fileInfo.IsDir() {
			DeleteAll(path.Join(f, "*"))
			if err := os.Remove(f); err != nil {
				panic(err)
			}
		} else {
			if err := os.Remove(f); err != nil {
				panic(err)
			}
		}
	}
}

// Runs the tests and removes every fixture they left behind.
func Cleanup(run func() int) int {
	c := run()
	testCleanup()
	return c
}

func testCleanup() {
	DeleteAll("test-*")
}

// Returns a config whose log goes to the returned buffer instead of a file.
func NewTestConfig(opts ...config.Option) (*config.Config, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	opts = append([]config.Option{config.WithLogWriter(buf), config.WithLoggingPrefix("test")}, opts...)
	return config.NewConfig(opts...), buf
}

// Returns an unused fixture path in the working directory.
func FixturePath(ext string) string {
	id := newID()
	return fmt.Sprintf("test-%x%s", id[:], ext)
}

// Writes b to a new fixture file and returns its path.
func WriteFixture(b []byte) string {
	p := FixturePath(".bencode")
	if err := os.WriteFile(p, b, 0o600); err != nil {
		panic(err)
	}
	return p
}
