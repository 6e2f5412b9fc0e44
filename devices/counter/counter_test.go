package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ParsesHex(t *testing.T) {
	tests := []struct {
		name string
		args string
		want uint32
	}{
		{"plain", "2a", 0x2a},
		{"prefixed", "0x2A", 0x2a},
		{"full width", "ffffffff", 0xffffffff},
		{"empty", "", DefaultValue},
		{"not hex", "zz", DefaultValue},
		{"too wide", "100000000", DefaultValue},
		{"replacement char", "2�a", DefaultValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.args).Value())
		})
	}
}

func TestDevice_Load(t *testing.T) {
	d := New("2a")

	tests := []struct {
		name   string
		offset uint64
		size   int
		want   []byte
	}{
		{"word", 0, 4, []byte{0x2a, 0, 0, 0}},
		{"any offset", 0xdead_beef, 4, []byte{0x2a, 0, 0, 0}},
		{"byte", 0, 1, []byte{0x2a}},
		{"half", 2, 2, []byte{0x2a, 0}},
		{"double", 0, 8, []byte{0x2a, 0, 0, 0, 0, 0, 0, 0}},
		{"empty", 0, 0, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.size)
			for i := range buf {
				buf[i] = 0xee
			}
			require.True(t, d.Load(tt.offset, buf))
			assert.Equal(t, tt.want, buf)
		})
	}
}

func TestDevice_StoreIgnored(t *testing.T) {
	d := New("12345678")

	assert.True(t, d.Store(0, []byte{0, 0, 0, 0}))
	assert.True(t, d.Store(4, nil))

	buf := make([]byte, 4)
	require.True(t, d.Load(0, buf))
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, buf)
}
