package cademeupsi

import (
	"time"

	"acolhebem-backend/lib/restyutil"
)

// Listing is a single professional found in the directory listing, possibly
// enriched with data from its profile page.
type Listing struct {
	Name           string  `json:"name"`
	Photo          string  `json:"photo"`
	Crp            string  `json:"crp"`
	ProfileUrl     string  `json:"profileUrl"`
	Description    string  `json:"description"`
	Abordagem      string  `json:"abordagem"`
	Especialidade  string  `json:"especialidade"`
	Atendimento    string  `json:"atendimento"`
	WhatsappUrl    string  `json:"whatsappUrl"`
	WhatsappNumber string  `json:"whatsappNumber"`
	Available      bool    `json:"available"`
	HoursRemaining float64 `json:"hoursRemaining"`
}

// UnknownHoursRemaining is the value of HoursRemaining when the profile page
// did not state how long the professional remains available.
const UnknownHoursRemaining = -1

func newListing() Listing {
	return Listing{HoursRemaining: UnknownHoursRemaining}
}

// Result is the response of a single run of the scraper.
type Result struct {
	Psychologists []Listing `json:"psychologists"`
	Count         int       `json:"count"`
	FetchedAt     string    `json:"fetchedAt"`
}

const fetchedAtLayout = "2006-01-02T15:04:05.000Z"

func newResult(listings []Listing, now time.Time) Result {
	if listings == nil {
		listings = []Listing{}
	}
	return Result{
		Psychologists: listings,
		Count:         len(listings),
		FetchedAt:     now.UTC().Format(fetchedAtLayout),
	}
}

// EmptyResult is the degraded response, it has the same shape as a successful one.
func EmptyResult(now time.Time) Result {
	return newResult(nil, now)
}

type Options struct {
	BaseUrl               string  `json:"base_url"`
	ListingPath           string  `json:"listing_path"`
	UserAgent             string  `json:"user_agent"`
	MaxRounds             int     `json:"max_rounds"`
	BatchSize             int     `json:"batch_size"`
	ProfileTimeoutSeconds int     `json:"profile_timeout_seconds"`
	RequestsPerSecond     float64 `json:"requests_per_second"`
	Burst                 int     `json:"burst"`

	// Dump receives every http exchange when set, see restyutil.DumpExchanges.
	Dump restyutil.Output `json:"-"`
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

func DefaultOptions() Options {
	return Options{
		BaseUrl:               "https://cademeupsi.com.br",
		ListingPath:           "/psicologos",
		UserAgent:             DefaultUserAgent,
		MaxRounds:             10,
		BatchSize:             15,
		ProfileTimeoutSeconds: 10,
		RequestsPerSecond:     20,
		Burst:                 15,
	}
}

// withDefaults fills every zero field from DefaultOptions.
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.BaseUrl == "" {
		o.BaseUrl = defaults.BaseUrl
	}
	if o.ListingPath == "" {
		o.ListingPath = defaults.ListingPath
	}
	if o.UserAgent == "" {
		o.UserAgent = defaults.UserAgent
	}
	if o.MaxRounds <= 0 {
		o.MaxRounds = defaults.MaxRounds
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaults.BatchSize
	}
	if o.ProfileTimeoutSeconds <= 0 {
		o.ProfileTimeoutSeconds = defaults.ProfileTimeoutSeconds
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if o.Burst <= 0 {
		o.Burst = defaults.Burst
	}
	return o
}

func (o Options) profileTimeout() time.Duration {
	return time.Duration(o.ProfileTimeoutSeconds) * time.Second
}
