package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		expected string
	}{
		{"Zero bytes", 0, "0 B"},
		{"Max bytes", 1023, "1023 B"},
		{"Exact 1 KB", 1024, "1 KB"},
		{"Just over 1 KB", 1025, "1 KB"},
		{"1.5 KB", 1536, "1.5 KB"},
		{"1.25 KB", 1280, "1.25 KB"},
		{"1.125 KB", 1152, "1.125 KB"},
		{"Max KB", 1048575, "1023.999 KB"},
		{"Exact 4 MB", 4 * 1024 * 1024, "4 MB"},
		{"Just over 4 MB", 4*1024*1024 + 1000, "4 MB"},
		{"Exact 1 GB", 1073741824, "1 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatSize(tt.size))
		})
	}
}
