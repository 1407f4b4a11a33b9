package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Size
		wantErr bool
	}{
		{"bare number", "1024", 1024, false},
		{"bytes", "12B", 12, false},
		{"kilobytes", "500KB", 500 * KB, false},
		{"short megabytes", "5m", 5 * MB, false},
		{"binary gigabytes", "2GiB", 2 * GB, false},
		{"fractional with space", "1.5 GB", Size(1.5 * float64(GB)), false},
		{"terabytes", "1tb", TB, false},
		{"empty", "", 0, true},
		{"unknown unit", "5XB", 0, true},
		{"negative", "-5MB", 0, true},
		{"garbage", "lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		input Size
		want  string
	}{
		{0, "0B"},
		{512, "512B"},
		{KB, "1KB"},
		{1536, "1.5KB"},
		{512 * MB, "512MB"},
		{GB + 256*MB, "1.25GB"},
		{-2 * MB, "-2MB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.input))
			assert.Equal(t, tt.want, tt.input.String())
		})
	}
}

func TestSize_TextRoundTrip(t *testing.T) {
	var s Size
	require.NoError(t, s.UnmarshalText([]byte("64MB")))
	assert.Equal(t, int64(64*1024*1024), s.Bytes())

	text, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "64MB", string(text))

	assert.Error(t, s.UnmarshalText([]byte("nope")))
	assert.Equal(t, 64*MB, s, "failed unmarshal leaves value untouched")
}
