package integration

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/zoobzio/resourcez"
)

// SignalRecorder stands in for a signal pipeline: it stamps each recorded
// signal with the provider's current attributes.
//
//nolint:govet // Field alignment optimized for test helper readability
type SignalRecorder struct {
	provider *resourcez.Provider
	signals  []map[string]any
	mu       sync.Mutex
}

// NewSignalRecorder creates a recorder reading from provider.
func NewSignalRecorder(provider *resourcez.Provider) *SignalRecorder {
	return &SignalRecorder{provider: provider}
}

// Emit records one signal stamped with the current resource.
func (s *SignalRecorder) Emit() map[string]any {
	attrs := s.provider.Resource().Attributes()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, attrs)
	return attrs
}

// Signals returns every recorded signal.
func (s *SignalRecorder) Signals() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.signals))
	copy(out, s.signals)
	return out
}

// SessionServer serves a page that restores or starts a session from the
// request's cookies and reports the session id it ended up with.
type SessionServer struct {
	*httptest.Server
}

// NewSessionServer starts a server. GET / restores or creates the "default"
// session; POST /new always creates a fresh one; POST /end ends and deletes.
func NewSessionServer(t *testing.T) *SessionServer {
	t.Helper()

	mux := http.NewServeMux()
	handle := func(w http.ResponseWriter, r *http.Request, action func(*resourcez.Manager)) {
		provider := resourcez.NewProvider(nil)
		store := resourcez.NewCookieStore(resourcez.NewHTTPJar(w, r))
		m := resourcez.NewManager("default", provider, store, resourcez.WithDeleteOnEnd())
		action(m)
		if v, ok := provider.Resource().Get(resourcez.SessionKey("default")); ok {
			w.Header().Set("X-Session-ID", v.(string))
		}
		w.WriteHeader(http.StatusOK)
	}

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		handle(w, r, func(m *resourcez.Manager) {
			if !m.HasActiveSession() {
				m.CreateSession()
			}
		})
	})
	mux.HandleFunc("POST /new", func(w http.ResponseWriter, r *http.Request) {
		handle(w, r, func(m *resourcez.Manager) { m.CreateSession() })
	})
	mux.HandleFunc("POST /end", func(w http.ResponseWriter, r *http.Request) {
		handle(w, r, func(m *resourcez.Manager) { m.EndSession() })
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &SessionServer{Server: srv}
}

// NewBrowser returns an HTTP client with its own cookie jar.
func NewBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

// NewClientJar returns a standalone jar scoped to origin.
func NewClientJar(t *testing.T, origin string) *resourcez.ClientJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	u, err := url.Parse(origin)
	if err != nil {
		t.Fatalf("origin: %v", err)
	}
	return resourcez.NewClientJar(jar, u)
}
