package attach_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/attach"
)

func TestEncodeKeepsDeclaredType(t *testing.T) {
	enc := attach.DataURLEncoder{}
	got, err := enc.Encode(context.Background(), attach.Upload{
		Name:        "notes.txt",
		ContentType: "text/plain",
		Content:     strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", got.Type)
	assert.Equal(t, "data:text/plain;base64,aGVsbG8=", got.URL)
}

func TestEncodeSniffsMissingType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	got, err := attach.DataURLEncoder{}.Encode(context.Background(), attach.Upload{
		Name:    "shot.png",
		Content: bytes.NewReader(png),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.Type)
	assert.True(t, strings.HasPrefix(got.URL, "data:image/png;base64,"))
}

func TestEncodeRejectsOversized(t *testing.T) {
	_, err := attach.DataURLEncoder{MaxSize: 4}.Encode(context.Background(), attach.Upload{
		Name:    "big.bin",
		Content: strings.NewReader("12345"),
	})
	require.ErrorIs(t, err, attach.ErrTooLarge)
}

func TestEncodeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := attach.DataURLEncoder{}.Encode(ctx, attach.Upload{Name: "a", Content: strings.NewReader("x")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeDataURL(t *testing.T) {
	ct, data, err := attach.DecodeDataURL(attach.DataURL("application/pdf", []byte("%PDF-1.4")))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", ct)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	_, _, err = attach.DecodeDataURL("https://example.com/x")
	assert.Error(t, err)
}
