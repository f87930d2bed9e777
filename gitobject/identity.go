package gitobject

import (
	"fmt"
	"strconv"
	"strings"
)

// parseIdentity parses a commit/tag signature line of the shape
// "<name> <email> <unix-seconds> <±HHMM>", e.g.
// "Jane Doe <jane@example.com> 1700000000 -0700".
func parseIdentity(line string) (Identity, error) {
	openAngle := strings.IndexByte(line, '<')
	closeAngle := strings.IndexByte(line, '>')
	if openAngle < 0 || closeAngle < openAngle {
		return Identity{}, fmt.Errorf("identity missing <email>: %q", line)
	}

	name := strings.TrimSpace(line[:openAngle])
	email := line[openAngle+1 : closeAngle]

	rest := strings.TrimSpace(line[closeAngle+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Identity{}, fmt.Errorf("identity missing timestamp/timezone: %q", line)
	}

	seconds, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("identity timestamp not numeric: %q", fields[0])
	}

	tz, err := parseTZOffset(fields[1])
	if err != nil {
		return Identity{}, err
	}

	return Identity{Name: name, Email: email, Seconds: seconds, TZOffset: tz}, nil
}

// parseTZOffset parses a "+HHMM"/"-HHMM" timezone offset into signed
// seconds east of UTC.
func parseTZOffset(s string) (int, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("identity timezone malformed: %q", s)
	}
	hh, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, fmt.Errorf("identity timezone hours invalid: %q", s)
	}
	mm, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("identity timezone minutes invalid: %q", s)
	}
	offset := hh*3600 + mm*60
	if s[0] == '-' {
		offset = -offset
	}
	return offset, nil
}

// UTCSeconds returns the identity's timestamp adjusted to be UTC-relative,
// per this codebase's convention of adding the signed timezone offset to
// the raw epoch value while preserving the original offset separately.
func (id Identity) UTCSeconds() int64 {
	return id.Seconds + int64(id.TZOffset)
}
