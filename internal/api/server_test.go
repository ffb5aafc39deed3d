package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nodevfs/pkg/errors"
	"github.com/matzehuels/nodevfs/pkg/fetch"
	"github.com/matzehuels/nodevfs/pkg/install"
	"github.com/matzehuels/nodevfs/pkg/manifest"
)

type fakeInstaller struct {
	tracker *install.Tracker
	result  *install.Result
	err     error
	got     map[string]string
}

func (f *fakeInstaller) Install(ctx context.Context, deps map[string]string) (*install.Result, error) {
	f.got = deps
	return f.result, f.err
}

func (f *fakeInstaller) Progress() *install.Tracker { return f.tracker }

type fakeResolver map[string]string

func (f fakeResolver) Resolve(ctx context.Context, name, specifier string) (string, error) {
	if v, ok := f[name+"@"+specifier]; ok {
		return v, nil
	}
	return "", errors.Resolution(name, specifier, fmt.Errorf("no match"))
}

func newTestServer(inst *fakeInstaller, res fakeResolver) *httptest.Server {
	if inst.tracker == nil {
		inst.tracker = install.NewTracker()
	}
	return httptest.NewServer(New(inst, res, log.New(io.Discard)))
}

func TestInstallEndpoint(t *testing.T) {
	inst := &fakeInstaller{result: &install.Result{
		Files: map[string]string{"node_modules/a/index.js": "a"},
		Stats: install.Stats{Packages: 1, Files: 1},
	}}
	srv := newTestServer(inst, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/install", "application/json",
		strings.NewReader(`{"dependencies":{"a":"^1"}}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body installResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Files["node_modules/a/index.js"] != "a" || body.Stats.Packages != 1 {
		t.Errorf("body = %+v", body)
	}
	if inst.got["a"] != "^1" {
		t.Errorf("installer got %v", inst.got)
	}
}

func TestInstallEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"malformed body", `{`, nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", `{"deps":{}}`, nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing dependencies", `{}`, nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"root resolution", `{"dependencies":{"a":"^9"}}`, errors.Resolution("a", "^9", nil), http.StatusUnprocessableEntity, "RESOLUTION_FAILED"},
		{"invalid package", `{"dependencies":{"A":"1"}}`, errors.New(errors.ErrCodeInvalidPackage, "bad"), http.StatusBadRequest, "INVALID_PACKAGE"},
		{"internal", `{"dependencies":{"a":"1"}}`, fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeInstaller{err: tt.err}, nil)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/v1/install", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var body errorResponse
			_ = json.NewDecoder(resp.Body).Decode(&body)
			if body.Code != tt.code || body.Error == "" {
				t.Errorf("body = %+v, want code %q", body, tt.code)
			}
		})
	}
}

func TestProgressEndpoint(t *testing.T) {
	srv := newTestServer(&fakeInstaller{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/progress")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var p install.Progress
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Status != install.StatusIdle {
		t.Errorf("status = %s, want idle", p.Status)
	}
}

func TestProgressStreamEndsWhenIdle(t *testing.T) {
	srv := newTestServer(&fakeInstaller{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/progress?stream=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	var events int
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "data: ") {
			events++
		}
	}
	if events != 1 {
		t.Errorf("events = %d, want 1", events)
	}
}

// slowWriter is a streaming ResponseWriter whose writes take a while, so
// tracker updates pile up behind it.
type slowWriter struct {
	header http.Header
	delay  time.Duration
	first  chan struct{}
	once   sync.Once
	buf    bytes.Buffer
}

func (w *slowWriter) Header() http.Header { return w.header }
func (w *slowWriter) WriteHeader(int)     {}
func (w *slowWriter) Flush()              {}

func (w *slowWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.first) })
	time.Sleep(w.delay)
	return w.buf.Write(p)
}

// gatedRegistry resolves exact versions once gate is closed and serves
// empty packages.
type gatedRegistry struct{ gate chan struct{} }

func (g gatedRegistry) Resolve(ctx context.Context, name, specifier string) (string, error) {
	select {
	case <-g.gate:
		return specifier, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g gatedRegistry) FetchPackage(ctx context.Context, name, version string) (*fetch.Package, error) {
	files := map[string]string{"index.js": name}
	return &fetch.Package{Name: name, Version: version, Files: files, Manifest: manifest.FromFiles(files)}, nil
}

func TestProgressStreamReachesDoneWithSlowClient(t *testing.T) {
	reg := gatedRegistry{gate: make(chan struct{})}
	inst := install.New(reg, reg, install.Options{Logger: log.New(io.Discard)})
	s := New(inst, nil, log.New(io.Discard))

	deps := make(map[string]string)
	for i := range 100 {
		deps[fmt.Sprintf("pkg-%d", i)] = "1.0.0"
	}
	installed := make(chan error, 1)
	go func() {
		_, err := inst.Install(context.Background(), deps)
		installed <- err
	}()
	for inst.Progress().Snapshot().Status == install.StatusIdle {
		time.Sleep(time.Millisecond)
	}

	w := &slowWriter{header: http.Header{}, delay: 2 * time.Millisecond, first: make(chan struct{})}
	req := httptest.NewRequest(http.MethodGet, "/v1/progress?stream=1", nil)
	streamed := make(chan struct{})
	go func() {
		s.streamProgress(w, req, inst.Progress())
		close(streamed)
	}()

	<-w.first
	close(reg.gate)

	select {
	case <-streamed:
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not end after the session finished")
	}
	if err := <-installed; err != nil {
		t.Fatal(err)
	}

	var last install.Progress
	sc := bufio.NewScanner(&w.buf)
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			if err := json.Unmarshal([]byte(data), &last); err != nil {
				t.Fatal(err)
			}
		}
	}
	if last.Status != install.StatusDone || last.DownloadedPackages != len(deps) {
		t.Errorf("last event = %+v, want done with %d packages", last, len(deps))
	}
}

func TestResolveEndpoint(t *testing.T) {
	srv := newTestServer(&fakeInstaller{}, fakeResolver{
		"react@^18":          "18.3.1",
		"@babel/core@latest": "7.26.0",
	})
	defer srv.Close()

	tests := []struct {
		path    string
		status  int
		version string
	}{
		{"/v1/resolve/react?specifier=%5E18", http.StatusOK, "18.3.1"},
		{"/v1/resolve/@babel/core", http.StatusOK, "7.26.0"},
		{"/v1/resolve/react?specifier=%5E99", http.StatusUnprocessableEntity, ""},
		{"/v1/resolve/Bad..Name", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.version == "" {
				return
			}
			var body resolveResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Version != tt.version {
				t.Errorf("version = %q, want %q", body.Version, tt.version)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(&fakeInstaller{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	generated := resp.Header.Get(HeaderRequestID)
	if len(generated) != 36 {
		t.Errorf("generated request ID = %q", generated)
	}

	const given = "0f8fad5b-d9cb-469f-a165-70867728950e"
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set(HeaderRequestID, given)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(HeaderRequestID); got != given {
		t.Errorf("request ID = %q, want %q", got, given)
	}
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(&fakeInstaller{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
