package solana

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendShortvec(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, appendShortvec(nil, tc.n), "n=%d", tc.n)
	}
}

func TestAppendShortvec_AppendsToPrefix(t *testing.T) {
	buf := appendShortvec([]byte{0xff}, 128)
	require.Equal(t, []byte{0xff, 0x80, 0x01}, buf)
}
