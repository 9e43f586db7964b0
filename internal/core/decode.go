package core

// decode.go turns an uploaded clash report into parser-ready text.
//
// Navisworks exports written on Windows often start with a UTF-8 BOM and may
// carry stray Latin-1 bytes in element names. Both are handled here so the
// parser only ever sees clean UTF-8.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// DefaultMaxImportSize is the default upload limit for a clash report.
const DefaultMaxImportSize int64 = 10 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader drops a leading UTF-8 BOM.
type bomSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r so a leading UTF-8 BOM is not returned.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	return &bomSkippingReader{r: bufio.NewReader(r)}
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, _ := b.r.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
			b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// ReadImport reads at most limit bytes from r and returns the text with any
// BOM removed and invalid UTF-8 replaced by U+FFFD. A non-positive limit uses
// DefaultMaxImportSize. Larger inputs fail with ErrFileTooLarge.
func ReadImport(r io.Reader, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxImportSize
	}

	data, err := io.ReadAll(io.LimitReader(NewBOMSkippingReader(r), limit+1))
	if err != nil {
		return "", fmt.Errorf("read import: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, limit)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// CheckImportName rejects file names that are not .csv exports.
func CheckImportName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return fmt.Errorf("%w (got %q)", ErrNotCSV, filepath.Ext(name))
	}
	return nil
}
