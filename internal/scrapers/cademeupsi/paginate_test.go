package cademeupsi

import (
	"context"
	"net/http"
	"testing"

	"acolhebem-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func loadFullListing(t *testing.T, site *fakeSite) (string, *telemetry.RecorderAPI) {
	t.Helper()
	srv := site.start()
	tel := telemetry.NewRecorderAPI()
	c, err := newClient(testOptions(srv.URL), tel)
	require.NoError(t, err)
	return c.LoadFullListing(context.Background(), "/psicologos", 10), tel
}

func TestTerminationPolicy(t *testing.T) {
	p := newTerminationPolicy(10, fakeSnapshot(12))
	require.True(t, p.fetching())
	require.Equal(t, stateFetching, p.observe(fakeSnapshot(24), 4))
	require.Equal(t, stateFetching, p.observe(fakeSnapshot(36), 8))
	require.Equal(t, stateStalledProfileCount, p.observe(fakeSnapshot(48), 8))
	require.False(t, p.fetching())

	p = newTerminationPolicy(10, fakeSnapshot(12))
	require.Equal(t, stateStalledPageSize, p.observe(fakeSnapshot(12), 4))

	p = newTerminationPolicy(2, `not json`)
	require.Equal(t, stateFetching, p.observe(`not json`, 0))
	require.Equal(t, stateExhaustedRounds, p.observe(`not json`, 0))

	p = newTerminationPolicy(10, fakeSnapshot(12))
	p.fail()
	require.Equal(t, stateDone, p.state)
	require.Equal(t, 1, p.round)
}

func TestSnapshotPerPage(t *testing.T) {
	table := []struct {
		snapshot string
		perPage  int
		ok       bool
	}{
		{snapshot: `{"data":{"perPage":24}}`, perPage: 24, ok: true},
		{snapshot: `{"data":{"perPage":[36,{"s":"int"}]}}`, perPage: 36, ok: true},
		{snapshot: `{"data":{"search":""}}`, ok: false},
		{snapshot: `{"data":{"perPage":"many"}}`, ok: false},
		{snapshot: `garbage`, ok: false},
	}
	for _, row := range table {
		perPage, ok := snapshotPerPage(row.snapshot)
		require.Equal(t, row.ok, ok, row.snapshot)
		require.Equal(t, row.perPage, perPage, row.snapshot)
	}
}

func TestLoadFullListingStabilizes(t *testing.T) {
	site := &fakeSite{
		t:              t,
		initialPerPage: 12,
		initialSlugs:   slugRange(1, 2),
		rounds: []fakeRound{
			{perPage: 24, slugs: slugRange(1, 4)},
			{perPage: 36, slugs: slugRange(1, 8)},
			{perPage: 48, slugs: slugRange(1, 10)},
			{perPage: 60, slugs: slugRange(1, 10)},
			{perPage: 72, slugs: slugRange(1, 12)},
		},
	}
	page, tel := loadFullListing(t, site)

	require.Equal(t, 4, site.calls())
	require.Equal(t, 10, countProfileSlugs(page))
	rounds, ok := tel.LastCount(report_pagination_rounds)
	require.True(t, ok)
	require.EqualValues(t, 4, rounds)

	stops := tel.Reports(telemetry.KindDebug, report_pagination_stop)
	require.Len(t, stops, 1)
	require.Equal(t, stateStalledProfileCount.String(), stops[0].Params[0])
}

func TestLoadFullListingSendsSession(t *testing.T) {
	site := &fakeSite{
		t:              t,
		initialPerPage: 12,
		initialSlugs:   slugRange(1, 2),
		rounds: []fakeRound{
			{perPage: 12, slugs: slugRange(1, 4)},
		},
	}
	_, _ = loadFullListing(t, site)

	requests, allHeaders := site.recorded()
	require.Len(t, requests, 1)
	req := requests[0]
	require.Equal(t, "abc==", req.Token)
	require.Equal(t, fakeSnapshot(12), req.Components[0].Snapshot)
	require.Equal(t, "loadMore", req.Components[0].Calls[0].Method)
	require.Empty(t, req.Components[0].Calls[0].Params)

	headers := allHeaders[0]
	require.Equal(t, "true", headers.Get("X-Livewire"))
	require.Equal(t, "abc==", headers.Get("X-CSRF-TOKEN"))
	require.Equal(t, "abc==", headers.Get("X-XSRF-TOKEN"))
}

func TestLoadFullListingPrefersPageCsrfToken(t *testing.T) {
	site := &fakeSite{
		t:              t,
		initialPerPage: 12,
		initialSlugs:   slugRange(1, 2),
		pageCsrfToken:  "page-token",
		rounds: []fakeRound{
			{perPage: 12, slugs: slugRange(1, 4)},
		},
	}
	_, _ = loadFullListing(t, site)

	requests, headers := site.recorded()
	require.Len(t, requests, 1)
	require.Equal(t, "page-token", requests[0].Token)
	require.Equal(t, "page-token", headers[0].Get("X-CSRF-TOKEN"))
	require.Equal(t, "abc==", headers[0].Get("X-XSRF-TOKEN"))
}

func TestLoadFullListingPageSizeCeiling(t *testing.T) {
	site := &fakeSite{
		t:              t,
		initialPerPage: 12,
		initialSlugs:   slugRange(1, 2),
		rounds: []fakeRound{
			{perPage: 24, slugs: slugRange(1, 4)},
			{perPage: 24, slugs: slugRange(1, 8)},
		},
	}
	page, _ := loadFullListing(t, site)

	require.Equal(t, 2, site.calls())
	require.Equal(t, 8, countProfileSlugs(page))
}

func TestLoadFullListingPageSizeCeilingFromInitialSnapshot(t *testing.T) {
	site := &fakeSite{
		t:              t,
		initialPerPage: 12,
		initialSlugs:   slugRange(1, 2),
		rounds: []fakeRound{
			{perPage: 12, slugs: slugRange(1, 3)},
		},
	}
	page, _ := loadFullListing(t, site)

	require.Equal(t, 1, site.calls())
	require.Equal(t, 3, countProfileSlugs(page))
}

func TestLoadFullListingRoundCap(t *testing.T) {
	site := &fakeSite{
		t:              t,
		initialPerPage: 12,
		initialSlugs:   slugRange(1, 2),
		roundFunc: func(round int) fakeRound {
			return fakeRound{perPage: 12 * (round + 1), slugs: slugRange(1, 2*(round+1))}
		},
	}
	page, tel := loadFullListing(t, site)

	require.Equal(t, 10, site.calls())
	require.Equal(t, 22, countProfileSlugs(page))

	stops := tel.Reports(telemetry.KindDebug, report_pagination_stop)
	require.Len(t, stops, 1)
	require.Equal(t, stateExhaustedRounds.String(), stops[0].Params[0])
}

func TestLoadFullListingRoundError(t *testing.T) {
	site := &fakeSite{
		t:              t,
		initialPerPage: 12,
		initialSlugs:   slugRange(1, 2),
		rounds: []fakeRound{
			{perPage: 24, slugs: slugRange(1, 4)},
			{status: http.StatusInternalServerError},
		},
	}
	page, tel := loadFullListing(t, site)

	require.Equal(t, 2, site.calls())
	require.Equal(t, 4, countProfileSlugs(page))
	require.Len(t, tel.Reports(telemetry.KindWarning, report_client_load_more), 1)
}

func TestLoadFullListingWithoutSnapshot(t *testing.T) {
	site := &fakeSite{
		t:               t,
		initialSlugs:    slugRange(1, 3),
		withoutSnapshot: true,
	}
	page, tel := loadFullListing(t, site)

	require.Equal(t, 0, site.calls())
	require.Equal(t, 3, countProfileSlugs(page))
	require.Len(t, tel.Reports(telemetry.KindWarning, report_pagination_session), 1)
}

func TestLoadFullListingUnavailable(t *testing.T) {
	site := &fakeSite{
		t:             t,
		listingStatus: http.StatusInternalServerError,
	}
	page, tel := loadFullListing(t, site)

	require.Equal(t, "", page)
	require.Equal(t, 0, site.calls())
	require.Len(t, tel.Reports(telemetry.KindBroken, report_client_get_listing), 1)
}
