package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("clash name,distance")...),
			expected: "clash name,distance",
		},
		{
			name:     "file without BOM",
			input:    []byte("clash name,distance"),
			expected: "clash name,distance",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestReadImport(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		limit   int64
		want    string
		wantErr error
	}{
		{
			name:  "plain text",
			input: []byte("a,b\n1,2"),
			limit: 100,
			want:  "a,b\n1,2",
		},
		{
			name:  "BOM stripped",
			input: append([]byte{0xEF, 0xBB, 0xBF}, "a,b"...),
			limit: 100,
			want:  "a,b",
		},
		{
			name:  "invalid utf8 replaced",
			input: []byte("Duct\xffA"),
			limit: 100,
			want:  "Duct\uFFFDA",
		},
		{
			name:  "exactly at limit",
			input: []byte("12345"),
			limit: 5,
			want:  "12345",
		},
		{
			name:    "over limit",
			input:   []byte("123456"),
			limit:   5,
			wantErr: ErrFileTooLarge,
		},
		{
			name:  "BOM does not count toward limit",
			input: append([]byte{0xEF, 0xBB, 0xBF}, "12345"...),
			limit: 5,
			want:  "12345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadImport(bytes.NewReader(tt.input), tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadImport_DefaultLimit(t *testing.T) {
	big := strings.Repeat("x", int(DefaultMaxImportSize)+1)
	if _, err := ReadImport(strings.NewReader(big), 0); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestCheckImportName(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr error
	}{
		{"csv", "clashes.csv", nil},
		{"upper case extension", "CLASHES.CSV", nil},
		{"empty", "", ErrNoFile},
		{"xml report", "clashes.xml", ErrNotCSV},
		{"no extension", "clashes", ErrNotCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckImportName(tt.file)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckImportName(%q) = %v, want %v", tt.file, err, tt.wantErr)
			}
		})
	}
}
