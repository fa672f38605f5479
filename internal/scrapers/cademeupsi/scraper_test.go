package cademeupsi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"acolhebem-backend/dev/fakesite"
	"acolhebem-backend/internal/components/chrono"
	"acolhebem-backend/internal/components/telemetry"
	"acolhebem-backend/lib/restyutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.FixedZone("BRT", -3*60*60))

const testFetchedAt = "2026-10-19T12:00:00.000Z"

func namesOf(listings []Listing) []string {
	names := make([]string, len(listings))
	for i, l := range listings {
		names[i] = l.Name
	}
	return names
}

func profileWith(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body>%s</body></html>", body)
	}
}

func runScraper(t *testing.T, site *fakeSite, mutate func(*Options)) (Result, *telemetry.RecorderAPI) {
	t.Helper()
	srv := site.start()
	opts := testOptions(srv.URL)
	if mutate != nil {
		mutate(&opts)
	}
	tel := telemetry.NewRecorderAPI()
	scraper := NewScraper(opts, chrono.NewFixedImpl(testNow), tel)
	return scraper.Run(context.Background()), tel
}

func TestRunSortsByName(t *testing.T) {
	site := &fakeSite{
		t:               t,
		withoutSnapshot: true,
		initialSlugs:    []string{"zeca-1", "ana-2", "bruno-3"},
		profiles: map[string]http.HandlerFunc{
			"zeca-1":  profileWith(""),
			"ana-2":   profileWith(""),
			"bruno-3": profileWith(""),
		},
	}
	result, _ := runScraper(t, site, nil)

	require.Equal(t, 3, result.Count)
	require.Equal(t, testFetchedAt, result.FetchedAt)
	if diff := cmp.Diff([]string{"Ana", "Bruno", "Zeca"}, namesOf(result.Psychologists)); diff != "" {
		t.Fatal(diff)
	}
}

func TestRunSortsAvailableFirst(t *testing.T) {
	site := &fakeSite{
		t:               t,
		withoutSnapshot: true,
		initialSlugs:    []string{"ana-1", "zeca-2", "bruno-3", "carla-4"},
		profiles: map[string]http.HandlerFunc{
			"ana-1":   profileWith(""),
			"zeca-2":  profileWith("<span>Disponível agora</span>"),
			"bruno-3": profileWith(""),
			"carla-4": profileWith("<span>Disponível agora</span>"),
		},
	}
	result, _ := runScraper(t, site, nil)

	if diff := cmp.Diff([]string{"Carla", "Zeca", "Ana", "Bruno"}, namesOf(result.Psychologists)); diff != "" {
		t.Fatal(diff)
	}
}

func TestRunEnrichmentIsolation(t *testing.T) {
	site := &fakeSite{
		t:               t,
		withoutSnapshot: true,
		initialSlugs:    []string{"ana-1", "bruno-2"},
		profiles: map[string]http.HandlerFunc{
			"ana-1": profileWith(`<div><h3>Abordagem</h3><p>Psicanálise</p></div>`),
			"bruno-2": func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(5 * time.Second):
				}
			},
		},
	}
	result, tel := runScraper(t, site, func(opts *Options) {
		opts.ProfileTimeoutSeconds = 1
	})

	require.Equal(t, 2, result.Count)
	ana := result.Psychologists[0]
	bruno := result.Psychologists[1]
	require.Equal(t, "Psicanálise", ana.Abordagem)

	expected := newListing()
	expected.Name = "Bruno"
	expected.ProfileUrl = bruno.ProfileUrl
	expected.WhatsappUrl = bruno.WhatsappUrl
	if diff := cmp.Diff(expected, bruno); diff != "" {
		t.Fatal(diff)
	}
	require.Len(t, tel.Reports(telemetry.KindWarning, report_client_get_profile), 1)
}

func TestRunDeduplicates(t *testing.T) {
	site := &fakeSite{
		t:               t,
		withoutSnapshot: true,
		initialSlugs:    []string{"ana-1", "bruno-2", "ana-1"},
		profiles: map[string]http.HandlerFunc{
			"ana-1":   profileWith(""),
			"bruno-2": profileWith(""),
		},
	}
	result, tel := runScraper(t, site, nil)

	require.Equal(t, 2, result.Count)
	duplicates, ok := tel.LastCount(report_scraper_duplicates)
	require.True(t, ok)
	require.EqualValues(t, 1, duplicates)
}

func TestRunBatchesEnrichment(t *testing.T) {
	var inflight int64
	var maxInflight int64
	handler := func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt64(&inflight, 1)
		defer atomic.AddInt64(&inflight, -1)
		for {
			seen := atomic.LoadInt64(&maxInflight)
			if current <= seen || atomic.CompareAndSwapInt64(&maxInflight, seen, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	slugs := slugRange(1, 5)
	profiles := map[string]http.HandlerFunc{}
	for _, slug := range slugs {
		profiles[slug] = handler
	}
	site := &fakeSite{
		t:               t,
		withoutSnapshot: true,
		initialSlugs:    slugs,
		profiles:        profiles,
	}
	result, _ := runScraper(t, site, func(opts *Options) {
		opts.BatchSize = 2
	})

	require.Equal(t, 5, result.Count)
	require.LessOrEqual(t, atomic.LoadInt64(&maxInflight), int64(2))
}

func TestRunWithPagination(t *testing.T) {
	site := &fakeSite{
		t:              t,
		initialPerPage: 2,
		initialSlugs:   slugRange(1, 2),
		rounds: []fakeRound{
			{perPage: 4, slugs: slugRange(1, 4)},
			{perPage: 6, slugs: slugRange(1, 4)},
		},
		profiles: map[string]http.HandlerFunc{},
	}
	result, _ := runScraper(t, site, nil)

	require.Equal(t, 2, site.calls())
	require.Equal(t, 4, result.Count)
}

func TestRunListingUnavailable(t *testing.T) {
	site := &fakeSite{t: t, listingStatus: http.StatusInternalServerError}
	result, _ := runScraper(t, site, nil)

	require.Equal(t, 0, result.Count)
	require.NotNil(t, result.Psychologists)
	require.Empty(t, result.Psychologists)
	require.Equal(t, testFetchedAt, result.FetchedAt)
}

type panickingTelemetry struct {
	*telemetry.RecorderAPI
}

func (panickingTelemetry) ReportCount(id string, count int64) {
	panic("count sink exploded")
}

func TestRunRecoversFromPanics(t *testing.T) {
	site := &fakeSite{
		t:               t,
		withoutSnapshot: true,
		initialSlugs:    []string{"ana-1"},
		profiles:        map[string]http.HandlerFunc{"ana-1": profileWith("")},
	}
	srv := site.start()
	tel := panickingTelemetry{RecorderAPI: telemetry.NewRecorderAPI()}
	scraper := NewScraper(testOptions(srv.URL), chrono.NewFixedImpl(testNow), tel)

	result := scraper.Run(context.Background())
	require.Equal(t, 0, result.Count)
	require.Empty(t, result.Psychologists)
	require.Len(t, tel.Reports(telemetry.KindBroken, report_scraper_run), 1)
}

func TestSortListingsIsStable(t *testing.T) {
	listings := []Listing{
		{Name: "Ana", ProfileUrl: "a"},
		{Name: "Bia", ProfileUrl: "b"},
		{Name: "Ana", ProfileUrl: "c", Available: true},
		{Name: "Ana", ProfileUrl: "d"},
	}
	SortListings(listings)

	urls := make([]string, len(listings))
	for i, l := range listings {
		urls[i] = l.ProfileUrl
	}
	if diff := cmp.Diff([]string{"c", "a", "d", "b"}, urls); diff != "" {
		t.Fatal(diff)
	}
}

func TestEnrichProfile(t *testing.T) {
	site := &fakeSite{
		t: t,
		profiles: map[string]http.HandlerFunc{
			"maria-eduarda-lima-4821": profileWith(`<div><h3>Abordagem</h3><p>Gestalt</p></div>`),
		},
	}
	srv := site.start()
	scraper := NewScraper(testOptions(srv.URL), chrono.NewFixedImpl(testNow), telemetry.NewRecorderAPI())

	listing, missed, err := scraper.EnrichProfile(context.Background(), srv.URL+"/psicologo/maria-eduarda-lima-4821")
	require.NoError(t, err)
	require.Equal(t, "Maria Eduarda Lima", listing.Name)
	require.Equal(t, "Gestalt", listing.Abordagem)
	require.NotContains(t, missed, field_abordagem)
	require.Contains(t, missed, field_whatsapp_number)
}

func TestRunAgainstFakeSite(t *testing.T) {
	site := fakesite.New(fakesite.Options{Total: 30, PerPage: 12, AvailableEvery: 3})
	srv := httptest.NewServer(site.Handler())
	defer srv.Close()

	scraper := NewScraper(testOptions(srv.URL), chrono.NewFixedImpl(testNow), telemetry.NewRecorderAPI())
	result := scraper.Run(context.Background())

	require.Equal(t, 3, site.UpdateCalls())
	require.Equal(t, 30, result.Count)

	available := 0
	for i, l := range result.Psychologists {
		require.NotEmpty(t, l.Abordagem, l.ProfileUrl)
		require.Equal(t, "Online", l.Atendimento)
		require.Equal(t, "Ansiedade Luto", l.Especialidade)
		require.True(t, strings.HasPrefix(l.WhatsappNumber, "5511"), l.WhatsappNumber)
		require.Contains(t, l.WhatsappUrl, "/whatsapp/")
		require.NotEqual(t, strings.ToUpper(l.Name), l.Name)
		if l.Available {
			require.Equal(t, i, available, "available listings come first")
			require.Equal(t, 1.5, l.HoursRemaining)
			available++
		}
	}
	require.Equal(t, 10, available)
}

func TestRunWithExchangeDumps(t *testing.T) {
	site := fakesite.New(fakesite.Options{Total: 20, PerPage: 5})
	srv := httptest.NewServer(site.Handler())
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "dumps")
	output, err := restyutil.NewFilesystemOutput(dir)
	require.NoError(t, err)

	opts := testOptions(srv.URL)
	opts.Dump = output
	tel := telemetry.NewRecorderAPI()
	result := NewScraper(opts, chrono.NewFixedImpl(testNow), tel).Run(context.Background())

	require.Equal(t, 20, result.Count)
	require.Empty(t, tel.Reports(telemetry.KindBroken, report_scraper_run))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	first, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(first), "<NO BODY AVAILABLE>")
}
