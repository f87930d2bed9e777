package protocol_test

import (
	"testing"

	"github.com/nanogit-labs/protocore/protocol"
	"github.com/stretchr/testify/require"
)

func TestParseRefNameHEAD(t *testing.T) {
	rn, err := protocol.ParseRefName("HEAD")
	require.NoError(t, err)
	require.Equal(t, protocol.HEAD, rn)
}

func TestParseRefNameValid(t *testing.T) {
	cases := []struct {
		in       string
		category string
		location string
	}{
		{"refs/heads/main", "heads", "main"},
		{"refs/heads/feature/login", "heads", "feature/login"},
		{"refs/tags/v1.2.3", "tags", "v1.2.3"},
		{"refs/remotes/origin/main", "remotes", "origin/main"},
		{"refs/heads/with@at", "heads", "with@at"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			rn, err := protocol.ParseRefName(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.in, rn.FullName)
			require.Equal(t, tc.category, rn.Category)
			require.Equal(t, tc.location, rn.Location)
		})
	}
}

func TestParseRefNameInvalid(t *testing.T) {
	cases := []string{
		"main",                     // no refs/ prefix
		"refs/main",                // no category
		"refs/heads/a..b",          // consecutive dots
		"refs/heads/a//b",          // empty component
		"refs/heads/.hidden",       // component starts with dot
		"refs/heads/branch.lock",   // .lock suffix
		"refs/heads/branch.",       // trailing dot
		"refs/heads/br anch",       // space
		"refs/heads/br~anch",       // revision syntax
		"refs/heads/br^anch",       // revision syntax
		"refs/heads/br:anch",       // colon
		"refs/heads/br?anch",       // glob
		"refs/heads/br*anch",       // glob
		"refs/heads/br[anch",       // glob
		"refs/heads/br\\anch",      // backslash
		"refs/heads/a@{b}",         // reflog syntax
		"refs/heads/@",             // bare @
		"refs/heads/",              // trailing slash
		"refs/heads/ctl\x01char",   // control byte
	}
	for _, in := range cases {
		t.Run(in, func(t *testing.T) {
			_, err := protocol.ParseRefName(in)
			require.Error(t, err)
		})
	}
}
