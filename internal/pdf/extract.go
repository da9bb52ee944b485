// Package pdf splits a PDF into per-page text for the page pipeline.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/Lee-Hyeong-Jin/multimodal-preprocessing-api/internal/apperr"
)

// Page is the text of one page. Number is 1-based.
type Page struct {
	Number   int
	Text     string
	HasImage bool
}

const maxFileSize = 200 << 20

// ExtractFile reads the PDF at path.
func ExtractFile(path string) ([]Page, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", apperr.ErrInvalidInput, path, err)
	}
	if stat.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", apperr.ErrInvalidInput, path, maxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Extract(bytes.NewReader(content), int64(len(content)))
}

// Extract returns every page in order. A page whose text cannot be decoded
// is returned with empty Text rather than failing the document.
func Extract(r io.ReaderAt, size int64) ([]Page, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable PDF: %v", apperr.ErrInvalidInput, err)
	}

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		page := Page{Number: i}
		if p.V.IsNull() {
			pages = append(pages, page)
			continue
		}

		// nil fonts: the page's own font resources are loaded.
		if text, err := p.GetPlainText(nil); err == nil {
			page.Text = text
		}
		page.HasImage = hasImage(p)
		pages = append(pages, page)
	}
	return pages, nil
}

// hasImage reports whether the page's resources reference an image XObject.
func hasImage(p pdf.Page) bool {
	xobjects := p.Resources().Key("XObject")
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}
