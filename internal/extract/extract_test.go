package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryExtractsPlainText(t *testing.T) {
	registry := NewRegistry()

	text, err := registry.Extract("text/plain; charset=utf-8", []byte("\xEF\xBB\xBFstart if loop end return"))
	require.NoError(t, err)
	require.Equal(t, "start if loop end return", text)
}

func TestRegistryStripsHTML(t *testing.T) {
	registry := NewRegistry()

	doc := []byte("<html><body><h1>Start</h1><p>if x &amp; y then <b>loop</b></p><script>alert(1)</script></body></html>")
	text, err := registry.Extract("text/html", doc)
	require.NoError(t, err)
	require.Contains(t, text, "Start")
	require.Contains(t, text, "if x & y then loop")
	require.NotContains(t, text, "<b>")
	require.NotContains(t, text, "alert")
}

func TestRegistryDetectsTypeWhenMissing(t *testing.T) {
	registry := NewRegistry()

	require.Equal(t, "text/plain", registry.Detect([]byte("function main: return 0")))
	require.Equal(t, "text/html", registry.Detect([]byte("<!DOCTYPE html><html><body>hi</body></html>")))

	text, err := registry.Extract("", []byte("while true: process"))
	require.NoError(t, err)
	require.Equal(t, "while true: process", text)
}

func TestRegistryRejectsUnsupportedAndBinary(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Extract("application/pdf", []byte("%PDF-1.7"))
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
	require.False(t, registry.Supports("application/pdf"))
	require.True(t, registry.Supports("TEXT/PLAIN"))

	_, err = registry.Extract("text/plain", []byte{0xff, 0xfe, 0xfd})
	require.True(t, errors.Is(err, ErrInvalidEncoding))
}

func TestRegistryRegisterOverrides(t *testing.T) {
	registry := NewRegistry()
	registry.Register("application/pdf", ExtractorFunc(func([]byte) (string, error) {
		return "converted", nil
	}))

	text, err := registry.Extract("application/pdf", nil)
	require.NoError(t, err)
	require.Equal(t, "converted", text)
}
