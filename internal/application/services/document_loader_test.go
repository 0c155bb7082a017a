package services_test

import (
	"bytes"
	"image"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayurlekha/processing-engine/internal/application/services"
	apperrors "github.com/ayurlekha/processing-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestDocumentLoader_PNGPassthrough(t *testing.T) {
	data := pngBytes(t)
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	doc, err := services.NewDocumentLoader().Load(path)

	require.NoError(t, err)
	assert.Equal(t, "scan.png", doc.FileName)
	assert.Equal(t, "image/png", doc.MIMEType)
	assert.Equal(t, data, doc.Data)
	assert.Equal(t, 4, doc.Width)
	assert.Equal(t, 3, doc.Height)
}

func TestDocumentLoader_ConvertsToPNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 5, 2))

	var bmpBuf, gifBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, src))
	require.NoError(t, gif.Encode(&gifBuf, src, nil))

	for name, data := range map[string][]byte{"scan.bmp": bmpBuf.Bytes(), "scan.gif": gifBuf.Bytes()} {
		t.Run(name, func(t *testing.T) {
			doc, err := services.NewDocumentLoader().Decode(name, data)
			require.NoError(t, err)
			assert.Equal(t, "image/png", doc.MIMEType)

			decoded, err := png.Decode(bytes.NewReader(doc.Data))
			require.NoError(t, err)
			assert.Equal(t, 5, decoded.Bounds().Dx())
		})
	}
}

func TestDocumentLoader_Undecodable(t *testing.T) {
	_, err := services.NewDocumentLoader().Decode("notes.txt", []byte("plain text"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDocumentLoad))

	_, err = services.NewDocumentLoader().Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDocumentLoad))
}
