// Command bencode checks, dumps and fingerprints bencode files.
//
//	bencode [flags] check|dump|fingerprint FILE...
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	bencodetools "github.com/meow-io/go-bencodetools"
	"github.com/meow-io/go-bencodetools/bencode"
	"github.com/meow-io/go-bencodetools/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(fs *flag.FlagSet, stderr io.Writer) {
	fmt.Fprintf(stderr, "usage: bencode [flags] check|dump|fingerprint FILE...\n")
	fs.PrintDefaults()
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bencode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	debug := fs.Bool("debug", os.Getenv("DEBUG") == "1", "enable debug logging")
	stream := fs.Bool("stream", false, "accept several concatenated values per file")
	maxDepth := fs.Int("max-depth", bencode.DefaultMaxDepth, "maximum nesting of lists and dictionaries")
	logDir := fs.String("log-dir", os.TempDir(), "directory for the log file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		usage(fs, stderr)
		return 2
	}

	c := config.NewConfig(
		config.WithDebug(*debug),
		config.WithStream(*stream),
		config.WithMaxDepth(*maxDepth),
		config.WithRootDir(*logDir),
		config.WithLoggingPrefix("cli"),
	)
	codec := bencodetools.NewCodec(c)

	var each func(name string, i int, v bencode.Value) error
	switch fs.Arg(0) {
	case "check":
		each = func(name string, i int, v bencode.Value) error {
			fmt.Fprintf(stdout, "%s[%d]: ok %s\n", name, i, v.Kind())
			return nil
		}
	case "dump":
		each = func(name string, i int, v bencode.Value) error {
			fmt.Fprintf(stdout, "%s[%d]:\n", name, i)
			return codec.Dump(stdout, v)
		}
	case "fingerprint":
		each = func(name string, i int, v bencode.Value) error {
			fp := codec.Fingerprint(v)
			fmt.Fprintf(stdout, "%s  %s[%d]\n", hex.EncodeToString(fp[:]), name, i)
			return nil
		}
	default:
		usage(fs, stderr)
		return 2
	}

	status := 0
	for _, name := range fs.Args()[1:] {
		if err := processFile(codec, name, each); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
			status = 1
		}
	}
	return status
}

func processFile(codec *bencodetools.Codec, name string, each func(string, int, bencode.Value) error) error {
	f, err := os.Open(name) // #nosec G304
	if err != nil {
		return err
	}
	defer f.Close()

	values, err := codec.Decode(f)
	if err != nil {
		return err
	}
	for i, v := range values {
		if err := each(name, i, v); err != nil {
			return err
		}
	}
	return nil
}
