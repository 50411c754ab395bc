package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yatube/internal/media/mediatest"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	format, err := DecodeImage(pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, 1, 1), color.Palette{color.Black}), nil))
	format, err = DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "gif", format)
}

func TestDecodeImageRejectsNonImages(t *testing.T) {
	cases := map[string][]byte{
		"empty":     nil,
		"text":      []byte("just some text, not a picture"),
		"truncated": pngBytes(t)[:30],
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeImage(data)
			assert.ErrorIs(t, err, ErrNotImage)
		})
	}
}

func TestDecodeImageChecksDimensionsFirst(t *testing.T) {
	_, err := DecodeImage(mediatest.PNGHeader(20000, 20000))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = DecodeImage(mediatest.PNGHeader(1<<20, 1<<20))
	assert.ErrorIs(t, err, ErrImageTooLarge)

	// Within bounds the header passes and the missing pixels are caught.
	_, err = DecodeImage(mediatest.PNGHeader(100, 100))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocalStore(root)

	data := pngBytes(t)
	name, err := s.Save(ctx, data, "png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "posts/"))
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Equal(t, "/media/"+name, s.URL(name))

	got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, s.Delete(ctx, name))
	require.NoError(t, s.Delete(ctx, name))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(name)))
	assert.True(t, os.IsNotExist(err))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".jpg", extension("jpeg"))
	assert.Equal(t, ".webp", extension("webp"))
}
