package cademeupsi

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeRound is what the fake site answers to one loadMore call.
type fakeRound struct {
	perPage int
	slugs   []string
	status  int
}

// fakeSite mimics the directory: a listing page issuing a session and a
// livewire snapshot, the livewire update endpoint and profile pages.
type fakeSite struct {
	t *testing.T

	listingStatus   int
	initialPerPage  int
	initialSlugs    []string
	withoutSnapshot bool
	pageCsrfToken   string

	// rounds[i] answers the (i+1)th loadMore call, when nil roundFunc is used.
	rounds    []fakeRound
	roundFunc func(round int) fakeRound

	profiles map[string]http.HandlerFunc

	mutex       sync.Mutex
	updateCalls int
	requests    []updateRequest
	headers     []http.Header
	snapshot    string
}

func (f *fakeSite) start() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/psicologos", f.serveListing)
	mux.HandleFunc("/livewire/update", f.serveUpdate)
	mux.HandleFunc("/psicologo/", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimPrefix(r.URL.Path, "/psicologo/")
		handler, ok := f.profiles[slug]
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	f.t.Cleanup(srv.Close)
	return srv
}

func fakeSnapshot(perPage int) string {
	return fmt.Sprintf(
		`{"data":{"perPage":[%d,{"s":"int"}],"search":""},"memo":{"id":"x1","name":"psicologos-list"},"checksum":"c%d"}`,
		perPage, perPage,
	)
}

func listingHtml(slugs []string) string {
	var b strings.Builder
	for i, slug := range slugs {
		b.WriteString(cardHtml(fmt.Sprint(i+1), slug, ""))
	}
	return b.String()
}

func cardHtml(markerId, slug, body string) string {
	return fmt.Sprintf(
		`<div wire:key="card-%s" class="card"><a href="/psicologo/%s" class="block">%s</a></div>`,
		markerId, slug, body,
	)
}

func (f *fakeSite) serveListing(w http.ResponseWriter, r *http.Request) {
	if f.listingStatus != 0 {
		w.WriteHeader(f.listingStatus)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "abc%3D%3D", Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "cademeupsi_session", Value: "s1", Path: "/", HttpOnly: true})

	var head string
	if f.pageCsrfToken != "" {
		head = fmt.Sprintf(`<meta name="csrf-token" content="%s">`, f.pageCsrfToken)
	}
	var attr string
	if !f.withoutSnapshot {
		f.mutex.Lock()
		f.snapshot = fakeSnapshot(f.initialPerPage)
		attr = fmt.Sprintf(` wire:snapshot="%s"`, html.EscapeString(f.snapshot))
		f.mutex.Unlock()
	}

	w.Header().Set("content-type", "text/html; charset=utf-8")
	fmt.Fprintf(
		w,
		`<html><head>%s</head><body><div wire:snapshot="{&quot;memo&quot;:{&quot;name&quot;:&quot;navbar&quot;}}"></div><div%s>%s</div></body></html>`,
		head, attr, listingHtml(f.initialSlugs),
	)
}

func (f *fakeSite) serveUpdate(w http.ResponseWriter, r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.updateCalls++
	f.headers = append(f.headers, r.Header.Clone())

	var req updateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || len(req.Components) != 1 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.requests = append(f.requests, req)

	if _, err := r.Cookie("cademeupsi_session"); err != nil {
		w.WriteHeader(419)
		return
	}
	if req.Components[0].Snapshot != f.snapshot {
		w.WriteHeader(419)
		return
	}

	var round fakeRound
	if f.roundFunc != nil {
		round = f.roundFunc(f.updateCalls)
	} else if f.updateCalls <= len(f.rounds) {
		round = f.rounds[f.updateCalls-1]
	} else {
		f.t.Errorf("unexpected loadMore call %d", f.updateCalls)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if round.status != 0 {
		w.WriteHeader(round.status)
		return
	}

	f.snapshot = fakeSnapshot(round.perPage)
	res := map[string]any{
		"components": []any{map[string]any{
			"snapshot": f.snapshot,
			"effects":  map[string]any{"html": listingHtml(round.slugs)},
		}},
	}
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func (f *fakeSite) calls() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.updateCalls
}

func slugRange(from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("psicologa-%d", i))
	}
	return out
}

func testOptions(baseUrl string) Options {
	opts := DefaultOptions()
	opts.BaseUrl = baseUrl
	return opts
}

func (f *fakeSite) recorded() ([]updateRequest, []http.Header) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.requests, f.headers
}
