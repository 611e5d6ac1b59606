package httpkit

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient()
	if c.Timeout != DefaultTimeout {
		t.Errorf("expected %v timeout, got %v", DefaultTimeout, c.Timeout)
	}
}

func TestNewClient_CustomTimeout(t *testing.T) {
	c := NewClient(WithTimeout(5 * time.Second))
	if c.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", c.Timeout)
	}
}

func TestNewClient_NoJarByDefault(t *testing.T) {
	c := NewClient()
	if c.Jar != nil {
		t.Error("expected nil cookie jar without WithCookieJar")
	}
}

func TestNewClient_DefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	c := NewClient()
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "portctl/") {
		t.Errorf("expected portctl/ prefix, got %q", body)
	}
}

func TestNewClient_ExistingUserAgentNotOverwritten(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	c := NewClient()
	req, _ := http.NewRequest("GET", srv.URL, nil)
	req.Header.Set("User-Agent", "CustomBot/2.0")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "CustomBot/2.0" {
		t.Errorf("expected CustomBot/2.0, got %q", body)
	}
}

func TestNewClient_CookieJarReplaysSession(t *testing.T) {
	var sawCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "unifises", Value: "abc123", Path: "/"})
		case "/after":
			if c, err := r.Cookie("unifises"); err == nil {
				sawCookie = c.Value
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	jar, err := NewCookieJar()
	if err != nil {
		t.Fatalf("NewCookieJar: %v", err)
	}
	c := NewClient(WithCookieJar(jar))

	for _, path := range []string{"/login", "/after"} {
		resp, err := c.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		DrainAndClose(resp.Body, 1024)
	}

	if sawCookie != "abc123" {
		t.Errorf("session cookie on second request = %q, want %q", sawCookie, "abc123")
	}
}

func TestNewTransport_HasTimeouts(t *testing.T) {
	tr := NewTransport()
	if tr.TLSHandshakeTimeout != DefaultTLSHandshakeTimeout {
		t.Errorf("TLSHandshakeTimeout: got %v, want %v", tr.TLSHandshakeTimeout, DefaultTLSHandshakeTimeout)
	}
	if tr.ResponseHeaderTimeout != DefaultResponseHeader {
		t.Errorf("ResponseHeaderTimeout: got %v, want %v", tr.ResponseHeaderTimeout, DefaultResponseHeader)
	}
	if tr.IdleConnTimeout != DefaultIdleConnTimeout {
		t.Errorf("IdleConnTimeout: got %v, want %v", tr.IdleConnTimeout, DefaultIdleConnTimeout)
	}
}

func TestNewClient_TLSInsecureSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer srv.Close()

	// Self-signed certificate: a verifying client must refuse it.
	strict := NewClient(WithTimeout(2 * time.Second))
	if _, err := strict.Get(srv.URL); err == nil {
		t.Fatal("expected TLS error with strict client")
	}

	insecure := NewClient(
		WithTimeout(2*time.Second),
		WithTLSInsecureSkipVerify(),
	)
	resp, err := insecure.Get(srv.URL)
	if err != nil {
		t.Fatalf("expected success with insecure client, got: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "secure" {
		t.Errorf("expected 'secure', got %q", body)
	}
}

func TestNewClient_LoggerRecordsRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := NewClient(WithLogger(logger))
	resp, err := c.Get(srv.URL + "/probe")
	if err != nil {
		t.Fatal(err)
	}
	DrainAndClose(resp.Body, 1024)

	out := buf.String()
	if !strings.Contains(out, "status=418") {
		t.Errorf("log output missing status: %s", out)
	}
	if !strings.Contains(out, "/probe") {
		t.Errorf("log output missing url: %s", out)
	}
}

// countingRoundTripper always fails with a dial error and counts calls.
type countingRoundTripper struct {
	calls int
}

func (f *countingRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &net.OpError{Op: "connect", Err: syscall.ECONNREFUSED},
	}
}

func TestLoggingTransport_NoRetryOnDialError(t *testing.T) {
	base := &countingRoundTripper{}
	var buf bytes.Buffer
	rt := &loggingTransport{
		base:   base,
		logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	req, _ := http.NewRequest(http.MethodPut, "http://controller.invalid/api", strings.NewReader("{}"))
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected dial error")
	}
	if base.calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", base.calls)
	}
	if !strings.Contains(buf.String(), "http request failed") {
		t.Errorf("expected failure log line, got %s", buf.String())
	}
}

func TestDrainAndClose(t *testing.T) {
	rc := io.NopCloser(strings.NewReader("hello world"))
	DrainAndClose(rc, 1024)  // should not panic
	DrainAndClose(nil, 1024) // nil should not panic
}
