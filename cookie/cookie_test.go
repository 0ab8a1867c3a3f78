package cookie_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lactoserv/lactoserv/cookie"
)

func TestParseBasic(t *testing.T) {
	cookies := cookie.Parse("a=1; b=2")
	assert.Equal(t, []cookie.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}, cookies)
}

func TestParseQuotedValue(t *testing.T) {
	cookies := cookie.Parse(`a="hello world"`)
	assert.Equal(t, []cookie.Cookie{{Name: "a", Value: "hello world"}}, cookies)
}

func TestParsePercentEncodedValue(t *testing.T) {
	cookies := cookie.Parse("a=hello%20world")
	assert.Equal(t, []cookie.Cookie{{Name: "a", Value: "hello world"}}, cookies)
}

func TestParseSkipsUndecodableValueButContinues(t *testing.T) {
	cookies := cookie.Parse("a=%zz; b=2")
	assert.Equal(t, []cookie.Cookie{{Name: "b", Value: "2"}}, cookies)
}

func TestParseSkipsInvalidName(t *testing.T) {
	cookies := cookie.Parse("=1; b=2")
	assert.Equal(t, []cookie.Cookie{{Name: "b", Value: "2"}}, cookies)
}

func TestParseLenientDelimiters(t *testing.T) {
	cookies := cookie.Parse("  a=1 ;;b=2 ")
	assert.Len(t, cookies, 2)
}

func TestSetCookieStringBasic(t *testing.T) {
	sc := cookie.SetCookie{Name: "session", Value: "abc", Path: "/", HTTPOnly: true, Secure: true}
	assert.Equal(t, "session=abc; Path=/; HttpOnly; Secure", sc.String())
}

func TestSetCookieStringInvalidNameYieldsEmpty(t *testing.T) {
	sc := cookie.SetCookie{Name: "", Value: "x"}
	assert.Empty(t, sc.String())
}

func TestSetCookieStringSameSiteAndMaxAge(t *testing.T) {
	sc := cookie.SetCookie{
		Name: "a", Value: "b", MaxAge: 30 * time.Second, SameSite: cookie.SameSiteLax,
	}
	s := sc.String()
	assert.Contains(t, s, "Max-Age=30")
	assert.Contains(t, s, "SameSite=Lax")
}

func TestSetCookieStringPartitioned(t *testing.T) {
	sc := cookie.SetCookie{Name: "a", Value: "b", Partitioned: true, Secure: true}
	s := sc.String()
	assert.Contains(t, s, "Partitioned")
}

func TestSetCookieStringDomainStripsLeadingDot(t *testing.T) {
	sc := cookie.SetCookie{Name: "a", Value: "b", Domain: ".example.com"}
	assert.Contains(t, sc.String(), "Domain=example.com")
}
