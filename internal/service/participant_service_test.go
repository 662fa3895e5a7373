package service

import (
	"strings"
	"testing"
)

func TestUsernameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"budi.santoso@example.com", "budi.santoso"},
		{"Ani_Wijaya+to@sekolah.sch.id", "aniwijayato"},
		{"x@y.z", "x"},
		{"@example.com", "peserta"},
		{"___@example.com", "peserta"},
	}
	for _, tt := range tests {
		if got := usernameFromEmail(tt.email); got != tt.want {
			t.Errorf("usernameFromEmail(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		pw, err := generatePassword()
		if err != nil {
			t.Fatalf("generatePassword: %v", err)
		}
		if len(pw) != passwordLength {
			t.Fatalf("len = %d, want %d", len(pw), passwordLength)
		}
		for _, r := range pw {
			if !strings.ContainsRune(passwordAlphabet, r) {
				t.Fatalf("password %q contains %q outside the alphabet", pw, r)
			}
		}
		seen[pw] = true
	}
	if len(seen) < 2 {
		t.Fatal("passwords are not random")
	}
}
