package cademeupsi

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"

	"acolhebem-backend/internal/components/assert"
	"acolhebem-backend/internal/components/chrono"
	"acolhebem-backend/internal/components/telemetry"
	"acolhebem-backend/lib/textutil"

	"golang.org/x/sync/errgroup"
)

const (
	report_scraper_run           = "scraper.run"
	report_scraper_enrich        = "scraper.enrich"
	report_scraper_listings      = "scraper.listings"
	report_scraper_duplicates    = "scraper.duplicates"
	report_scraper_missing_field = "scraper.missing-field"
)

// Scraper runs the whole pipeline against the directory: pagination,
// extraction, enrichment and sorting. It holds no state between runs.
type Scraper struct {
	opts  Options
	clock chrono.API
	tel   telemetry.API
}

func NewScraper(opts Options, clock chrono.API, tel telemetry.API) Scraper {
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "tel")

	return Scraper{
		opts:  opts.withDefaults(),
		clock: clock,
		tel:   telemetry.NewScopedAPI("cademeupsi", tel),
	}
}

// Run never fails, anything that goes wrong results in fewer (or zero)
// listings in the result.
func (s Scraper) Run(ctx context.Context) (result Result) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.tel.ReportBroken(report_scraper_run, fmt.Errorf("panic: %v", r), string(debug.Stack()))
		result = EmptyResult(s.clock.Now())
	}()

	c, err := newClient(s.opts, s.tel)
	if err != nil {
		s.tel.ReportBroken(report_scraper_run, fmt.Errorf("create client: %w", err))
		return EmptyResult(s.clock.Now())
	}

	page := c.LoadFullListing(ctx, s.opts.ListingPath, s.opts.MaxRounds)
	if page == "" {
		return EmptyResult(s.clock.Now())
	}

	listings := s.dedupe(ExtractCards(page, s.opts.BaseUrl))
	s.reportListingFields(listings)

	s.enrichAll(ctx, c, listings)
	SortListings(listings)

	s.tel.ReportCount(report_scraper_listings, int64(len(listings)))
	return newResult(listings, s.clock.Now())
}

// dedupe keeps the first listing of every profile url.
func (s Scraper) dedupe(listings []Listing) []Listing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.ProfileUrl]; ok {
			continue
		}
		seen[l.ProfileUrl] = struct{}{}
		out = append(out, l)
	}
	if dropped := len(listings) - len(out); dropped > 0 {
		s.tel.ReportCount(report_scraper_duplicates, int64(dropped))
	}
	return out
}

func (s Scraper) reportListingFields(listings []Listing) {
	missingPhoto := 0
	missingCrp := 0
	missingDescription := 0
	for _, l := range listings {
		if l.Photo == "" {
			missingPhoto++
		}
		if l.Crp == "" {
			missingCrp++
		}
		if l.Description == "" {
			missingDescription++
		}
	}
	s.tel.ReportCount(report_scraper_missing_field+".photo", int64(missingPhoto))
	s.tel.ReportCount(report_scraper_missing_field+".crp", int64(missingCrp))
	s.tel.ReportCount(report_scraper_missing_field+".description", int64(missingDescription))
}

// enrichAll enriches listings in consecutive batches, a batch is only started
// once every task of the previous one has settled. Each task owns exactly
// one listing. Cancelling ctx does not cut enrichment short.
func (s Scraper) enrichAll(ctx context.Context, c *client, listings []Listing) {
	ctx = context.WithoutCancel(ctx)
	timeout := s.opts.profileTimeout()

	missed := make([][]string, len(listings))
	for start := 0; start < len(listings); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(listings))

		var group errgroup.Group
		for i := start; i < end; i++ {
			group.Go(func() error {
				defer func() {
					r := recover()
					if r != nil {
						s.tel.ReportBroken(
							report_scraper_enrich,
							fmt.Errorf("panic: %v", r),
							listings[i].ProfileUrl,
						)
					}
				}()
				missed[i] = c.Enrich(ctx, &listings[i], timeout)
				return nil
			})
		}
		_ = group.Wait()
	}

	counts := map[string]int64{}
	for _, fields := range missed {
		for _, f := range fields {
			counts[f]++
		}
	}
	for _, field := range profileFields {
		s.tel.ReportCount(report_scraper_missing_field+"."+field, counts[field])
	}
}

// SortListings orders available professionals first, then by name using
// brazilian portuguese collation. The sort is stable.
func SortListings(listings []Listing) {
	compare := textutil.NameComparer()
	slices.SortStableFunc(listings, func(a, b Listing) int {
		if a.Available != b.Available {
			if a.Available {
				return -1
			}
			return 1
		}
		return compare(a.Name, b.Name)
	})
}

// EnrichProfile enriches a single profile outside of a full run, the returned
// slice lists the profile fields that could not be found.
func (s Scraper) EnrichProfile(ctx context.Context, profileUrl string) (Listing, []string, error) {
	c, err := newClient(s.opts, s.tel)
	if err != nil {
		return Listing{}, nil, fmt.Errorf("create client: %w", err)
	}

	listing := newListing()
	listing.ProfileUrl = profileUrl
	if slug, ok := extractSlug(fmt.Sprintf(`href="%s"`, profileUrl)); ok {
		listing.Name, _ = nameFromSlug(slug)
	}

	missed := c.Enrich(ctx, &listing, s.opts.profileTimeout())
	return listing, missed, nil
}
