package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/ayurlekha/processing-engine/internal/domain/entities"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Formats the vision model accepts as-is. Anything else is re-encoded to PNG.
var passthroughFormats = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

// DocumentLoader reads a cached document and prepares it for extraction
type DocumentLoader struct{}

// NewDocumentLoader creates a new document loader
func NewDocumentLoader() *DocumentLoader {
	return &DocumentLoader{}
}

// Load reads and decodes the image at path.
func (l *DocumentLoader) Load(path string) (*entities.DocumentImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewDocumentLoadError("failed to read "+path, err)
	}
	return l.Decode(filepath.Base(path), data)
}

// Decode validates data as an image and converts it to a format the
// extraction model accepts.
func (l *DocumentLoader) Decode(fileName string, data []byte) (*entities.DocumentImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDocumentLoadError(fmt.Sprintf("failed to decode %s", fileName), err)
	}

	bounds := img.Bounds()
	doc := &entities.DocumentImage{
		FileName: fileName,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}

	if mimeType, ok := passthroughFormats[format]; ok {
		doc.MIMEType = mimeType
		doc.Data = data
		return doc, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.NewDocumentLoadError(fmt.Sprintf("failed to convert %s (%s) to png", fileName, format), err)
	}
	doc.MIMEType = "image/png"
	doc.Data = buf.Bytes()
	return doc, nil
}
