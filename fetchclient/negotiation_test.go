package fetchclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildFetchRequestShape(t *testing.T) {
	body, err := BuildFetchRequest(NegotiationOptions{
		Want:  []string{"refs/heads/master"},
		Depth: 1,
	})
	require.NoError(t, err)

	text := string(body)
	require.True(t, strings.HasPrefix(text, "0012command=fetch\n"))
	require.Contains(t, text, "side-band-64k\n")
	require.Contains(t, text, "multi_ack_detailed\n")
	require.Contains(t, text, "no-done\n")
	require.Contains(t, text, "thin-pack\n")
	require.Contains(t, text, "ofs-delta\n")
	require.Contains(t, text, "agent=git/2.28.0\n")
	require.Contains(t, text, "want refs/heads/master\n")
	require.Contains(t, text, "deepen 1\n")
	require.Contains(t, text, "done\n")
	require.True(t, strings.HasSuffix(text, "0000"))

	// want must precede the delim-pkt, which must precede done/flush.
	wantIdx := strings.Index(text, "want refs/heads/master")
	delimIdx := strings.Index(text, "0001")
	doneIdx := strings.Index(text, "0009done\n")
	require.True(t, wantIdx < delimIdx)
	require.True(t, delimIdx < doneIdx)
}

func TestBuildFetchRequestHaves(t *testing.T) {
	haves := make([]string, 30)
	for i := range haves {
		haves[i] = strings.Repeat("a", 40)
	}

	body, err := BuildFetchRequest(NegotiationOptions{
		Want:  []string{strings.Repeat("b", 40)},
		Haves: haves,
	})
	require.NoError(t, err)

	count := strings.Count(string(body), "have "+strings.Repeat("a", 40))
	require.Equal(t, DefaultHaveLookback, count)
}

func TestBuildFetchRequestHaveLookbackOverride(t *testing.T) {
	haves := []string{strings.Repeat("a", 40), strings.Repeat("b", 40), strings.Repeat("c", 40)}

	body, err := BuildFetchRequest(NegotiationOptions{
		Want:         []string{strings.Repeat("d", 40)},
		Haves:        haves,
		HaveLookback: 2,
	})
	require.NoError(t, err)

	text := string(body)
	require.Contains(t, text, "have "+strings.Repeat("a", 40))
	require.Contains(t, text, "have "+strings.Repeat("b", 40))
	require.NotContains(t, text, "have "+strings.Repeat("c", 40))
}

func TestResolveWant(t *testing.T) {
	sha1 := strings.Repeat("f", 40)

	got, err := resolveWant(sha1)
	require.NoError(t, err)
	require.Equal(t, sha1, got)

	got, err = resolveWant("refs/heads/master")
	require.NoError(t, err)
	require.Equal(t, "refs/heads/master", got)

	got, err = resolveWant("master")
	require.NoError(t, err)
	require.Equal(t, "refs/heads/master", got)

	got, err = resolveWant("HEAD")
	require.NoError(t, err)
	require.Equal(t, "HEAD", got)
}

func TestResolveWantRejectsMalformedRef(t *testing.T) {
	_, err := resolveWant("bad..name")
	require.Error(t, err)

	_, err = resolveWant("refs/heads/spaced name")
	require.Error(t, err)
}

func TestBuildFetchRequestRejectsMalformedWant(t *testing.T) {
	_, err := BuildFetchRequest(NegotiationOptions{Want: []string{"a..b"}})
	require.Error(t, err)
}

func TestUploadPackHandshake(t *testing.T) {
	pkt, err := UploadPackHandshake("/repo.git", "example.com")
	require.NoError(t, err)
	require.Equal(t, "002fgit-upload-pack /repo.git\x00host=example.com\x00", string(pkt))
}
