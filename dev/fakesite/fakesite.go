// Package fakesite serves a local imitation of the directory: a livewire
// listing that grows on every loadMore call and one profile page per card.
package fakesite

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync/atomic"
)

type Options struct {
	// Total is how many professionals the directory has.
	Total int
	// PerPage is both the initial page size and how much a loadMore call adds.
	PerPage int
	// AvailableEvery marks every n-th professional as available today.
	AvailableEvery int
}

type professional struct {
	id        int
	name      string
	slug      string
	available bool
}

var firstNames = []string{"Ana", "Bruno", "Carla", "Diego", "Elisa", "Fabio", "Helena", "Igor", "Julia", "Marcos"}
var lastNames = []string{"Souza", "Lima", "Costa", "Pereira", "Almeida", "Rocha"}
var abordagens = []string{"Psicanálise", "Terapia Cognitivo-Comportamental", "Gestalt-terapia", "Humanista"}

const (
	sessionCookie = "cademeupsi_session"
	xsrfToken     = "dev-xsrf-token=="
)

// Site is an http.Handler, it holds no per-visitor state: the page size
// travels in the livewire snapshot like it does on the real site.
type Site struct {
	opts          Options
	professionals []professional
	updateCalls   atomic.Int64
}

func New(opts Options) *Site {
	if opts.PerPage <= 0 {
		opts.PerPage = 12
	}
	professionals := make([]professional, opts.Total)
	for i := range professionals {
		first := firstNames[i%len(firstNames)]
		last := lastNames[(i/len(firstNames))%len(lastNames)]
		id := 1000 + i
		professionals[i] = professional{
			id:        id,
			name:      fmt.Sprintf("%s %s", first, last),
			slug:      strings.ToLower(fmt.Sprintf("%s-%s-%d", first, last, id)),
			available: opts.AvailableEvery > 0 && i%opts.AvailableEvery == 0,
		}
	}
	return &Site{opts: opts, professionals: professionals}
}

// UpdateCalls is how many loadMore calls were answered.
func (s *Site) UpdateCalls() int {
	return int(s.updateCalls.Load())
}

func (s *Site) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /psicologos", s.serveListing)
	mux.HandleFunc("POST /livewire/update", s.serveUpdate)
	mux.HandleFunc("GET /psicologo/{slug}", s.serveProfile)
	return mux
}

func snapshot(perPage int) string {
	return fmt.Sprintf(
		`{"data":{"perPage":[%d,{"s":"int"}]},"memo":{"id":"dev","name":"psicologos-list"},"checksum":"dev-%d"}`,
		perPage, perPage,
	)
}

func (s *Site) renderCards(perPage int) string {
	var b strings.Builder
	for _, p := range s.professionals[:min(perPage, len(s.professionals))] {
		fmt.Fprintf(&b, `<div wire:key="psicologo-%d" class="rounded-lg shadow">`, p.id)
		fmt.Fprintf(&b, `<a href="/psicologo/%s"><div class="h-40" style="background-image: url('/storage/users/%d.jpg')"></div></a>`, p.slug, p.id)
		if p.available {
			b.WriteString(`<span class="text-green-600">🟢 Disponível hoje</span>`)
		}
		fmt.Fprintf(&b, `<div class="flex"><span>06/%06d</span><span class="text-xs">CRP</span></div>`, p.id)
		fmt.Fprintf(&b, `<a class="font-bold text-md" href="/psicologo/%s">%s</a>`, p.slug, html.EscapeString(strings.ToUpper(p.name)))
		fmt.Fprintf(&b, `<p class="text-sm text-gray-500">Olá, sou %s e atendo adultos.</p>`, html.EscapeString(p.name))
		b.WriteString(`</div>`)
	}
	return b.String()
}

func (s *Site) serveListing(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "dev-xsrf-token%3D%3D", Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "dev", Path: "/", HttpOnly: true})

	w.Header().Set("content-type", "text/html; charset=utf-8")
	fmt.Fprintf(
		w,
		`<!doctype html><html><head><title>Psicólogos</title></head><body><div wire:snapshot="%s" wire:id="dev">%s</div></body></html>`,
		html.EscapeString(snapshot(s.opts.PerPage)),
		s.renderCards(s.opts.PerPage),
	)
}

type updateRequest struct {
	Token      string `json:"_token"`
	Components []struct {
		Snapshot string `json:"snapshot"`
		Calls    []struct {
			Method string `json:"method"`
		} `json:"calls"`
	} `json:"components"`
}

func readPerPage(raw string) (int, bool) {
	var parsed struct {
		Data struct {
			PerPage []json.RawMessage `json:"perPage"`
		} `json:"data"`
	}
	if json.Unmarshal([]byte(raw), &parsed) != nil || len(parsed.Data.PerPage) == 0 {
		return 0, false
	}
	var perPage int
	if json.Unmarshal(parsed.Data.PerPage[0], &perPage) != nil {
		return 0, false
	}
	return perPage, true
}

func (s *Site) serveUpdate(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(sessionCookie); err != nil || r.Header.Get("X-XSRF-TOKEN") != xsrfToken {
		// laravel answers 419 when the session or csrf token is missing
		w.WriteHeader(419)
		return
	}

	var req updateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || len(req.Components) != 1 || req.Token == "" {
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}
	perPage, ok := readPerPage(req.Components[0].Snapshot)
	if !ok {
		http.Error(w, "malformed snapshot", http.StatusBadRequest)
		return
	}
	s.updateCalls.Add(1)

	for _, call := range req.Components[0].Calls {
		if call.Method == "loadMore" {
			perPage = min(perPage+s.opts.PerPage, len(s.professionals))
		}
	}

	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"components": []any{map[string]any{
			"snapshot": snapshot(perPage),
			"effects":  map[string]any{"html": s.renderCards(perPage)},
		}},
	})
}

func (s *Site) serveProfile(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	for i, p := range s.professionals {
		if p.slug != slug {
			continue
		}
		w.Header().Set("content-type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!doctype html><html><body>
<h1>%s</h1>
%s
<div><h3>Abordagem</h3><p>%s</p></div>
<div><h3>Atendimento</h3><p>Online</p></div>
<div><h3>Especialidades</h3><ul><li>Ansiedade</li><li>Luto</li></ul></div>
<div><h3>Sobre</h3><p>Sou %s, atendo adultos e adolescentes &amp; casais.</p></div>
<a href="/whatsapp/%d?origem=perfil">Conversar no WhatsApp</a>
<div data-whatsapp="(11) 9%04d-%04d"></div>
</body></html>`,
			html.EscapeString(p.name),
			availabilityBadge(p),
			abordagens[i%len(abordagens)],
			html.EscapeString(p.name),
			p.id,
			p.id, i,
		)
		return
	}
	http.NotFound(w, r)
}

func availabilityBadge(p professional) string {
	if !p.available {
		return ""
	}
	return `<span>Disponível agora</span><span>1h 30 min restantes</span>`
}
