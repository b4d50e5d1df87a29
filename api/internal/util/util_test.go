package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("  {\"a\":1} "))
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":{"b":2}}`, ExtractJSONObject(`Here you go: {"a":{"b":2}} thanks`))
	assert.Equal(t, "no json", ExtractJSONObject(" no json "))
	assert.Equal(t, "} {", ExtractJSONObject("} {"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "₹12", Truncate("₹1234", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestDecodeBase64MaybeDataURL(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF}
	enc := base64.StdEncoding.EncodeToString(raw)

	b, mime, err := DecodeBase64MaybeDataURL("data:image/png;base64," + enc)
	require.NoError(t, err)
	assert.Equal(t, raw, b)
	assert.Equal(t, "image/png", mime)

	b, mime, err = DecodeBase64MaybeDataURL(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, b)
	assert.Empty(t, mime)

	_, _, err = DecodeBase64MaybeDataURL("%%%")
	assert.Error(t, err)
}

func TestSniffAndPickMIME(t *testing.T) {
	assert.Equal(t, "JPEG", SniffMimeForOCR([]byte{0xFF, 0xD8}))
	assert.Equal(t, "PDF", SniffMimeForOCR([]byte("%PDF-1.7")))
	assert.Equal(t, "", SniffMimeForOCR([]byte("GIF89a")))

	assert.Equal(t, "image/webp", PickMIME(" image/webp ", "image/png", nil))
	assert.Equal(t, "image/png", PickMIME("", "image/png", nil))
	assert.Equal(t, "image/jpeg", PickMIME("", "", nil))
	assert.Equal(t, "image/jpeg", PickMIME("", "", []byte{0xFF, 0xD8, 0xFF, 0xE0}))
}
