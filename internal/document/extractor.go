package document

import (
	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/pkg/textextract"
)

// Extractor turns uploaded bytes into chunks.
type Extractor interface {
	Supported(mimeType string) bool
	// Validate fails with apperr.ErrCorruptDocument when the bytes cannot be
	// opened as mimeType.
	Validate(data []byte, mimeType string) error
	Chunks(data []byte, mimeType string, size int) ([]string, error)
	PageCount(data []byte, mimeType string) int
}

type textExtractor struct{}

func NewTextExtractor() Extractor {
	return textExtractor{}
}

func (textExtractor) Supported(mimeType string) bool {
	return textextract.Supported(mimeType)
}

func (textExtractor) Validate(data []byte, mimeType string) error {
	if err := textextract.Validate(data, mimeType); err != nil {
		return apperr.Corrupt(err)
	}
	return nil
}

func (textExtractor) Chunks(data []byte, mimeType string, size int) ([]string, error) {
	return textextract.Extract(data, mimeType, size)
}

func (textExtractor) PageCount(data []byte, mimeType string) int {
	return textextract.PageCount(data, mimeType)
}
