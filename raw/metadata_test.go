package raw

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataSummary(t *testing.T) {
	tests := []struct {
		name     string
		meta     Metadata
		expected string
	}{
		{
			name:     "All fields",
			meta:     Metadata{Exposure: "1/250", ISO: 100, FNumber: "4/1", Make: "NIKON", Model: "D750"},
			expected: "Exposure: 1/250 s | ISO: 100 | FNumber: f/4/1 | Camera: NIKON D750",
		},
		{
			name:     "Camera only",
			meta:     Metadata{Make: "SONY"},
			expected: "Camera: SONY",
		},
		{
			name:     "Exposure and ISO",
			meta:     Metadata{Exposure: "1/60", ISO: 800},
			expected: "Exposure: 1/60 s | ISO: 800",
		},
		{
			name:     "Nothing",
			meta:     Metadata{},
			expected: "No EXIF found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.meta.Summary())
		})
	}
}

func TestFormatRational(t *testing.T) {
	assert.Equal(t, "1/250", formatRational(1, 250))
	assert.Equal(t, "28/10", formatRational(28, 10))
	assert.Equal(t, "3", formatRational(3, 0))
}

func TestSummaryStringBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dng")
	require.NoError(t, os.WriteFile(path, []byte("definitely not exif"), 0644))

	s := SummaryString(path)
	assert.Contains(t, s, "Metadata error:")
}

func TestCaptureTimeFallsBackToModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.dng")
	require.NoError(t, os.WriteFile(path, []byte("no exif here"), 0644))

	info, err := os.Stat(path)
	require.NoError(t, err)

	got := CaptureTime(path)
	assert.WithinDuration(t, info.ModTime(), got, time.Second)
}

func TestCaptureTimeMissingFile(t *testing.T) {
	got := CaptureTime(filepath.Join(t.TempDir(), "gone.dng"))
	assert.True(t, got.IsZero())
}
