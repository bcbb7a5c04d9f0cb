// Package ingest turns command-line arguments and uploaded files into raw
// text for the dispatcher.
package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrFileNotFound is returned for an argument that looks like a path but
	// does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrNotAFile is returned for a path that exists but is not a regular file.
	ErrNotAFile = errors.New("path exists but is not a file")
)

// Input is one piece of content to process.
type Input struct {
	// Source is the file path, or "literal" for inline content.
	Source  string
	Content string
}

// LiteralSource is the Source of inputs given inline.
const LiteralSource = "literal"

// fileLikeSuffixes mark a missing argument as a mistyped path rather than
// literal content.
var fileLikeSuffixes = []string{".pdf", "txt", "json", "eml"}

// Load resolves arg as a file path when it names an existing file and as
// literal content otherwise. PDF files are converted to text, HTML files are
// stripped to their visible text and anything else is read as is.
func Load(arg string) (Input, error) {
	info, err := os.Stat(arg)
	if err != nil {
		if looksLikePath(arg) {
			return Input{}, errors.Wrapf(ErrFileNotFound, "%s", arg)
		}
		return Input{Source: LiteralSource, Content: arg}, nil
	}
	if !info.Mode().IsRegular() {
		return Input{}, errors.Wrapf(ErrNotAFile, "%s", arg)
	}

	content, err := readFile(arg)
	if err != nil {
		return Input{}, err
	}
	return Input{Source: arg, Content: content}, nil
}

// LoadAll loads every argument, stopping at the first error.
func LoadAll(args []string) ([]Input, error) {
	inputs := make([]Input, 0, len(args))
	for _, a := range args {
		in, err := Load(a)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func looksLikePath(arg string) bool {
	if strings.ContainsRune(arg, os.PathSeparator) {
		return true
	}
	for _, s := range fileLikeSuffixes {
		if strings.HasSuffix(arg, s) {
			return true
		}
	}
	return false
}

func readFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDFText(path)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", errors.Wrapf(err, "opening %s", path)
		}
		defer f.Close()
		return HTMLText(f)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "reading %s", path)
		}
		return string(b), nil
	}
}
