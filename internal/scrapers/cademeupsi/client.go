package cademeupsi

import (
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"acolhebem-backend/internal/components/assert"
	"acolhebem-backend/internal/components/telemetry"
	"acolhebem-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_get_listing = "client.get-listing"
	report_client_load_more   = "client.load-more"
	report_client_get_profile = "client.get-profile"
)

// client is the http side of a single run, it owns the cookie jar so it must
// not be reused across runs.
type client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	Jar     *cookiejar.Jar

	tel telemetry.API
}

const maxRedirects = 5

func newClient(opts Options, tel telemetry.API) (*client, error) {
	assert.NotNil(tel, "tel")

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", opts.UserAgent)
	// the directory may move between its apex and www hosts
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	httpClient.SetTimeout(time.Second * 30)

	// a full enrichment batch fits in the burst
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.DumpExchanges(httpClient, "cademeupsi", opts.Dump)

	c := &client{
		BaseUrl: parsedBaseUrl,
		Http:    httpClient,
		Jar:     jar,
		tel:     tel,
	}
	return c, nil
}
