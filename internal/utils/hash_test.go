package utils

import "testing"

func TestHashString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HashString(tt.input); got != tt.want {
				t.Errorf("HashString(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestHashStringDistinguishesInputs(t *testing.T) {
	pairs := [][2]string{
		{"alice", "Alice"},
		{"user-1", "user-1 "},
	}
	for _, p := range pairs {
		if HashString(p[0]) == HashString(p[1]) {
			t.Errorf("HashString() collision for %q and %q", p[0], p[1])
		}
	}
}
