package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	phenology "github.com/arborlab/phenotrack/internal"
)

func TestGuard_DisabledAllowsAll(t *testing.T) {
	t.Parallel()

	g := NewGuard("")
	if g.Enabled() {
		t.Fatal("empty key should disable the guard")
	}
	r := httptest.NewRequest("POST", "/phenology/point", nil)
	if err := g.Authenticate(r); err != nil {
		t.Errorf("disabled guard rejected request: %v", err)
	}
}

func TestGuard_Authenticate(t *testing.T) {
	t.Parallel()

	g := NewGuard("phn_s3cret")

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"valid key", "Bearer phn_s3cret", true},
		{"missing header", "", false},
		{"not bearer", "Basic phn_s3cret", false},
		{"empty token", "Bearer ", false},
		{"wrong prefix", "Bearer gnd_s3cret", false},
		{"wrong key", "Bearer phn_other", false},
		{"key with trailing junk", "Bearer phn_s3cret ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("POST", "/phenology/point", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			err := g.Authenticate(r)
			if tt.ok && err != nil {
				t.Errorf("Authenticate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, phenology.ErrUnauthorized) {
				t.Errorf("Authenticate() = %v, want ErrUnauthorized", err)
			}
		})
	}
}
