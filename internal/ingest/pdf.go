package ingest

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/ledongthuc/pdf"
)

// PDFText returns the plain text of every page of the PDF at path.
func PDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening PDF %s", path)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrapf(err, "extracting text from %s", path)
	}
	b, err := io.ReadAll(text)
	if err != nil {
		return "", errors.Wrapf(err, "reading text from %s", path)
	}
	return string(b), nil
}
