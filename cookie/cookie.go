// Package cookie implements strict RFC-6265 cookie parsing and
// Set-Cookie formatting per spec §4.8.
package cookie

import (
	"bytes"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SameSite is the sameSite attribute vocabulary for Set-Cookie.
type SameSite string

const (
	SameSiteStrict SameSite = "strict"
	SameSiteLax    SameSite = "lax"
	SameSiteNone   SameSite = "none"
)

// Cookie is one parsed request cookie.
type Cookie struct {
	Name  string
	Value string
}

// Parse parses a Cookie request header value into its constituent
// name/value pairs. Parsing is lenient about inter-cookie delimiters and
// tolerant of percent-encoded values; a cookie whose value fails to
// percent-decode is skipped, but parsing continues with the rest of the
// header (spec §4.8).
func Parse(header string) []Cookie {
	var out []Cookie

	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}

		name := strings.TrimSpace(part[:eq])
		rawValue := strings.TrimSpace(part[eq+1:])

		if !validToken(name) {
			continue
		}

		value, ok := unwrapValue(rawValue)
		if !ok {
			continue
		}

		decoded, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}

		out = append(out, Cookie{Name: name, Value: decoded})
	}

	return out
}

// unwrapValue strips a double-quoted cookie-value's surrounding quotes,
// if present, and reports whether the raw value was well-formed.
func unwrapValue(raw string) (string, bool) {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1], true
	}
	if strings.ContainsAny(raw, `"`) {
		return "", false
	}
	return raw, true
}

func validToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x20 || c >= 0x7f {
			return false
		}
		if strings.IndexByte(`()<>@,;:\"/[]?={} `, c) >= 0 {
			return false
		}
	}
	return true
}

// SetCookie describes one Set-Cookie response header to format.
type SetCookie struct {
	Name        string
	Value       string
	HTTPOnly    bool
	Partitioned bool
	Secure      bool
	Domain      string
	Path        string
	Expires     time.Time
	MaxAge      time.Duration
	SameSite    SameSite
}

// String renders sc as a Set-Cookie header value. An invalid name yields
// an empty string, mirroring the teacher's Cookie.String contract.
func (sc SetCookie) String() string {
	if !validToken(sc.Name) {
		return ""
	}

	var buf bytes.Buffer

	buf.WriteString(sc.Name)
	buf.WriteByte('=')
	buf.WriteString(url.QueryEscape(sc.Value))

	if sc.Path != "" {
		buf.WriteString("; Path=")
		buf.WriteString(sc.Path)
	}

	if validDomain(sc.Domain) {
		d := sc.Domain
		if d[0] == '.' {
			d = d[1:]
		}
		buf.WriteString("; Domain=")
		buf.WriteString(d)
	}

	if !sc.Expires.IsZero() {
		buf.WriteString("; Expires=")
		buf.WriteString(sc.Expires.UTC().Format(time.RFC1123))
	}

	if sc.MaxAge != 0 {
		buf.WriteString("; Max-Age=")
		buf.WriteString(strconv.FormatInt(int64(sc.MaxAge.Seconds()), 10))
	}

	switch sc.SameSite {
	case SameSiteStrict:
		buf.WriteString("; SameSite=Strict")
	case SameSiteLax:
		buf.WriteString("; SameSite=Lax")
	case SameSiteNone:
		buf.WriteString("; SameSite=None")
	}

	if sc.HTTPOnly {
		buf.WriteString("; HttpOnly")
	}

	if sc.Partitioned {
		buf.WriteString("; Partitioned")
	}

	if sc.Secure {
		buf.WriteString("; Secure")
	}

	return buf.String()
}

func validDomain(d string) bool {
	if l := len(d); l == 0 || l > 255 {
		return false
	}

	if net.ParseIP(d) != nil && !strings.Contains(d, ":") {
		return true
	}

	if d[0] == '.' {
		d = d[1:]
	}

	ok := false
	last := byte('.')
	partLen := 0
	for i := 0; i < len(d); i++ {
		c := d[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
			ok = true
			partLen++
		case '0' <= c && c <= '9':
			partLen++
		case c == '-':
			if last == '.' {
				return false
			}
			partLen++
		case c == '.':
			if last == '.' || last == '-' {
				return false
			}
			if partLen > 63 || partLen == 0 {
				return false
			}
			partLen = 0
		default:
			return false
		}
		last = c
	}

	if last == '-' || partLen > 63 {
		return false
	}

	return ok
}
