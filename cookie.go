package resourcez

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// CookieJar is the cookie storage a CookieStore writes through.
type CookieJar interface {
	// Cookie returns the live cookie called name.
	Cookie(name string) (*http.Cookie, bool)

	// SetCookie stores c, replacing or expiring any cookie with the same name.
	SetCookie(c *http.Cookie)
}

// CookieStore persists sessions as cookies named session.<name>.id.
// Durable for as long as the jar keeps its cookies, bounded by the optional
// max age.
type CookieStore struct {
	jar    CookieJar
	clock  clockz.Clock
	maxAge time.Duration
}

// NewCookieStore creates a store writing session cookies to jar.
func NewCookieStore(jar CookieJar) *CookieStore {
	return &CookieStore{
		jar:   jar,
		clock: clockz.RealClock,
	}
}

// WithMaxAge returns a copy of the store that sets Max-Age on saved cookies.
// Values under one second are ignored.
func (c *CookieStore) WithMaxAge(maxAge time.Duration) *CookieStore {
	out := *c
	out.maxAge = maxAge
	return &out
}

// WithClock returns a copy of the store using clock for expiry timestamps.
func (c *CookieStore) WithClock(clock clockz.Clock) *CookieStore {
	out := *c
	out.clock = clock
	return &out
}

// MaxAge returns the configured retention window.
func (c *CookieStore) MaxAge() time.Duration {
	return c.maxAge
}

// Save writes session.<name>.id=<id>.
func (c *CookieStore) Save(name string, s Session) {
	cookie := &http.Cookie{
		Name:  SessionKey(name),
		Value: s.ID(),
		Path:  "/",
	}
	if secs := int(c.maxAge / time.Second); secs > 0 {
		cookie.MaxAge = secs
	}
	c.jar.SetCookie(cookie)
}

// Load reads the session cookie for name. Missing or malformed cookies are
// reported as absent.
func (c *CookieStore) Load(name string) (Session, bool) {
	cookie, ok := c.jar.Cookie(SessionKey(name))
	if !ok || cookie == nil {
		return Session{}, false
	}
	if !validSessionID(cookie.Value) {
		return Session{}, false
	}
	return RestoreSession(cookie.Value), true
}

// Delete expires the session cookie for name.
func (c *CookieStore) Delete(name string) {
	c.jar.SetCookie(&http.Cookie{
		Name:    SessionKey(name),
		Value:   "",
		Path:    "/",
		Expires: c.clock.Now().Add(-24 * time.Hour),
		MaxAge:  -1,
	})
}

// ClientJar adapts an http.CookieJar scoped to one origin. Managers sharing
// the same jar and origin see each other's sessions.
type ClientJar struct {
	jar    http.CookieJar
	origin *url.URL
}

// NewClientJar creates a jar adapter for origin. The path is forced to "/"
// so session cookies are visible site-wide.
func NewClientJar(jar http.CookieJar, origin *url.URL) *ClientJar {
	u := *origin
	u.Path = "/"
	u.RawQuery = ""
	u.Fragment = ""
	return &ClientJar{jar: jar, origin: &u}
}

// Cookie returns the cookie called name for the jar's origin.
func (j *ClientJar) Cookie(name string) (*http.Cookie, bool) {
	for _, c := range j.jar.Cookies(j.origin) {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// SetCookie stores c for the jar's origin.
func (j *ClientJar) SetCookie(c *http.Cookie) {
	j.jar.SetCookies(j.origin, []*http.Cookie{c})
}

// HTTPJar exposes one request's cookies and writes Set-Cookie headers on the
// response. Cookies written during the request shadow the request's own.
// Safe for concurrent use within a handler.
type HTTPJar struct {
	w       http.ResponseWriter
	r       *http.Request
	written map[string]*http.Cookie
	mu      sync.Mutex
}

// NewHTTPJar creates a jar for one request/response pair.
func NewHTTPJar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	return &HTTPJar{
		w:       w,
		r:       r,
		written: make(map[string]*http.Cookie),
	}
}

// Cookie returns the cookie called name, preferring values written during
// this request. A cookie expired by this request reports absent.
func (j *HTTPJar) Cookie(name string) (*http.Cookie, bool) {
	j.mu.Lock()
	c, ok := j.written[name]
	j.mu.Unlock()
	if ok {
		if c.MaxAge < 0 {
			return nil, false
		}
		return c, true
	}

	c, err := j.r.Cookie(name)
	if err != nil {
		return nil, false
	}
	return c, true
}

// SetCookie adds a Set-Cookie header for c.
func (j *HTTPJar) SetCookie(c *http.Cookie) {
	j.mu.Lock()
	j.written[c.Name] = c
	j.mu.Unlock()
	http.SetCookie(j.w, c)
}

// Verify interface compliance.
var (
	_ Store     = (*CookieStore)(nil)
	_ CookieJar = (*ClientJar)(nil)
	_ CookieJar = (*HTTPJar)(nil)
)
