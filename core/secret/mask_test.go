package secret

import "testing"

func TestMask(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"abc", "***"},
		{"abcde", "*****"},
		{"abcdef", "a****f"},
		{"token-1234567890", "t**************0"},
		{"a-very-long-status-token-value", "a-v**************************e"},
	}
	for _, c := range cases {
		if got := Mask(c.in); got != c.want {
			t.Fatalf("Mask(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
