package client

import "testing"

func TestTrailingPartialRune(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"ascii", "hello", 0},
		{"complete two byte", "h\xc3\xa9", 0},
		{"torn two byte", "h\xc3", 1},
		{"torn three byte one in", "a\xe4", 1},
		{"torn three byte two in", "a\xe4\xb8", 2},
		{"complete three byte", "a\xe4\xb8\xad", 0},
		{"torn four byte three in", "\xf0\x9f\x98", 3},
		{"lone continuation byte", "a\xa9", 0},
		{"empty", "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := trailingPartialRune([]byte(tc.data)); got != tc.want {
				t.Errorf("trailingPartialRune(%q) = %d, want %d", tc.data, got, tc.want)
			}
		})
	}
}
