package vfs

import (
	"path/filepath"
	"strings"
)

// escapeChar escapes a literal slash (or itself) inside a virtual path segment.
const escapeChar = '\\'

// Clean normalizes p relative to the virtual directory cwd.
//
// The result is absolute, has no "." or ".." segments, no repeated slashes and
// no trailing slash (except for the root "/"). ".." never ascends above the
// root. A segment ending in an odd number of backslashes escapes the slash
// that follows it, so both halves form a single name.
//
// Clean returns ErrNoPath if p is empty or only whitespace.
func Clean(cwd, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errorf(ErrNoPath, "No path given.")
	}
	if !strings.HasPrefix(p, "/") {
		p = cwd + "/" + p
	}

	out := make([]string, 0, 8)
	for _, seg := range splitEscaped(p) {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, seg)
	}
	return "/" + strings.Join(out, "/"), nil
}

// Segments returns the names making up the normalized virtual path v.
// Escaped slashes stay inside their segment.
func Segments(v string) []string {
	var segs []string
	for _, seg := range splitEscaped(v) {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

// splitEscaped splits p on slashes that are not escaped.
func splitEscaped(p string) []string {
	parts := strings.Split(p, "/")
	segs := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		seg := parts[i]
		for escapesSlash(seg) && i+1 < len(parts) {
			i++
			seg += "/" + parts[i]
		}
		segs = append(segs, seg)
	}
	return segs
}

// escapesSlash reports whether seg ends in an odd number of escape characters.
func escapesSlash(seg string) bool {
	n := 0
	for i := len(seg) - 1; i >= 0 && seg[i] == escapeChar; i-- {
		n++
	}
	return n%2 == 1
}

// escapeName turns a native file name into a virtual path segment.
func escapeName(name string) string {
	if !strings.ContainsAny(name, `\/`) {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == escapeChar || name[i] == '/' {
			b.WriteByte(escapeChar)
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

// unescapeName is the inverse of escapeName. A backslash that does not
// precede another backslash or a slash is kept as a literal character.
// Names that would contain a native separator are rejected.
func unescapeName(seg string) (string, error) {
	name := seg
	if strings.IndexByte(seg, escapeChar) >= 0 {
		var b strings.Builder
		for i := 0; i < len(seg); i++ {
			c := seg[i]
			if c == escapeChar && i+1 < len(seg) && (seg[i+1] == escapeChar || seg[i+1] == '/') {
				i++
				c = seg[i]
			}
			b.WriteByte(c)
		}
		name = b.String()
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		return "", errorf(ErrInvalidName, "Invalid file name.")
	}
	return name, nil
}
