package identity

import (
	"context"
	"errors"
	"testing"
)

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]Identity{
		"tok-sam": {ID: "u-sam", Email: "sam@example.com", Name: "Sam"},
	})

	id, err := v.Verify(context.Background(), "tok-sam")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.ID != "u-sam" || id.Name != "Sam" {
		t.Errorf("identity = %+v", id)
	}

	for _, token := range []string{"tok-unknown", ""} {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrUnverified) {
			t.Errorf("Verify(%q) = %v, want ErrUnverified", token, err)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{"explicit name", Identity{ID: "u1", Email: "sam@example.com", Name: "Sam"}, "Sam"},
		{"email local part", Identity{ID: "u1", Email: "sam@example.com"}, "sam"},
		{"bare id", Identity{ID: "u1"}, "u1"},
		{"malformed email", Identity{ID: "u1", Email: "@example.com"}, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.DisplayName(); got != tt.want {
				t.Errorf("DisplayName = %q, want %q", got, tt.want)
			}
		})
	}
}
