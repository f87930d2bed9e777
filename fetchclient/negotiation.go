package fetchclient

import (
	"fmt"
	"strings"

	"github.com/nanogit-labs/protocore/protocol"
)

// DefaultHaveLookback is the number of most-recent local commits offered
// as "have" lines when the caller does not override it. Only the bounded
// lookback is implemented; there is no send-the-whole-history mode.
const DefaultHaveLookback = 20

// capabilities is the fixed set of capability advertisements sent with
// every fetch request.
var capabilities = []string{
	"multi_ack_detailed",
	"no-done",
	"side-band-64k",
	"thin-pack",
	"ofs-delta",
	"agent=git/2.28.0",
}

// NegotiationOptions parameterizes one fetch-pack negotiation.
type NegotiationOptions struct {
	// Want is a 40-char hex sha1, a "refs/..." ref name, "HEAD", or a bare
	// branch name (resolved to refs/heads/<name>).
	Want []string
	// Depth requests a shallow clone truncated to this many commits from
	// each want. Zero means unbounded history.
	Depth int
	// Haves lists local commit sha1s offered to let the server compute a
	// minimal pack. Only the first HaveLookback entries are sent.
	Haves []string
	// HaveLookback caps how many entries of Haves are sent. Zero uses
	// DefaultHaveLookback.
	HaveLookback int
}

func (o NegotiationOptions) haveLookback() int {
	if o.HaveLookback > 0 {
		return o.HaveLookback
	}
	return DefaultHaveLookback
}

// resolveWant classifies a want token: a 40-char hex string passes
// through as a commit sha1, anything else is a ref name ("refs/..." and
// "HEAD" kept as given, a bare name expanded to refs/heads/<name>) and must survive
// protocol.ParseRefName before it goes on the wire.
func resolveWant(token string) (string, error) {
	if len(token) == 40 && isHex(token) {
		return token, nil
	}
	name := token
	if !strings.HasPrefix(token, "refs/") && token != "HEAD" {
		name = "refs/heads/" + token
	}
	if _, err := protocol.ParseRefName(name); err != nil {
		return "", fmt.Errorf("fetchclient: want %q: %w", token, err)
	}
	return name, nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// BuildFetchRequest constructs the pkt-line body of a protocol-v2 "fetch"
// command: command line, capability advertisements, per-want "want"
// lines, an optional "deepen" line, a delim-pkt, bounded "have" lines,
// "done", and a final flush-pkt.
func BuildFetchRequest(opts NegotiationOptions) ([]byte, error) {
	packs := []protocol.Pack{
		protocol.PackLine("command=fetch\n"),
	}
	for _, capability := range capabilities {
		packs = append(packs, protocol.PackLine(capability+"\n"))
	}

	for _, want := range opts.Want {
		resolved, err := resolveWant(want)
		if err != nil {
			return nil, err
		}
		packs = append(packs, protocol.PackLine(fmt.Sprintf("want %s\n", resolved)))
	}

	if opts.Depth > 0 {
		packs = append(packs, protocol.PackLine(fmt.Sprintf("deepen %d\n", opts.Depth)))
	}

	packs = append(packs, protocol.DelimPacket)

	lookback := opts.haveLookback()
	haves := opts.Haves
	if lookback < len(haves) {
		haves = haves[:lookback]
	}
	for _, have := range haves {
		packs = append(packs, protocol.PackLine(fmt.Sprintf("have %s\n", have)))
	}

	packs = append(packs, protocol.PackLine("done\n"))
	packs = append(packs, protocol.FlushPacket)

	return protocol.FormatPacks(packs...)
}

// UploadPackHandshake builds the single pkt-line that opens a git://
// (not HTTP) upload-pack session:
// "git-upload-pack <path>\0host=<host>\0".
func UploadPackHandshake(path, host string) ([]byte, error) {
	line := fmt.Sprintf("git-upload-pack %s\x00host=%s\x00", path, host)
	return protocol.PackLine(line).Marshal()
}
