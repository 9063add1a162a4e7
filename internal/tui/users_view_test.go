package tui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/reconsole/internal/users"
)

func TestParseNewUser(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		input   string
		want    users.CreateUserRequest
		wantErr bool
	}{
		"minimal": {
			input: "a@b.com password1 Ana",
			want:  users.CreateUserRequest{Email: "a@b.com", Password: "password1", Name: "Ana"},
		},
		"multi-word name stays a name": {
			input: "a@b.com password1 John Smith",
			want:  users.CreateUserRequest{Email: "a@b.com", Password: "password1", Name: "John Smith"},
		},
		"explicit role marker": {
			input: "a@b.com password1 John Smith role=admin",
			want:  users.CreateUserRequest{Email: "a@b.com", Password: "password1", Name: "John Smith", Role: "admin"},
		},
		"role marker with single-word name": {
			input: "a@b.com password1 Ana role=viewer",
			want:  users.CreateUserRequest{Email: "a@b.com", Password: "password1", Name: "Ana", Role: "viewer"},
		},
		"too few tokens": {
			input:   "a@b.com password1",
			wantErr: true,
		},
		"role marker but no name": {
			input:   "a@b.com password1 role=admin",
			wantErr: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := parseNewUser(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
