package cademeupsi

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"acolhebem-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// listingComponentMarker identifies the snapshot of the listing component
// among the other livewire components on the page.
const listingComponentMarker = "psicologo"

const xsrfCookieName = "XSRF-TOKEN"

var (
	snapshotAttrRegex     = regexp.MustCompile(`wire:snapshot="([^"]*)"`)
	dataCsrfRegex         = regexp.MustCompile(`data-csrf="([^"]+)"`)
	rawXsrfCookieRegex    = regexp.MustCompile(`XSRF-TOKEN=([^;]+)`)
	rawSessionCookieRegex = regexp.MustCompile(`([A-Za-z0-9_\-]+_session)=([^;]+)`)
)

// session is the state of the remote listing component for one run, it is
// only touched by the pagination loop.
type session struct {
	// csrf is sent as the _token field and the X-CSRF-TOKEN header.
	csrf string
	// xsrf is the url-decoded XSRF-TOKEN cookie, sent as X-XSRF-TOKEN.
	xsrf     string
	snapshot string
}

func (s session) usable() bool {
	return s.csrf != "" && s.snapshot != ""
}

// GetListing fetches the first page of the listing and reads the session
// state out of it. The returned page is empty when the listing could not be fetched.
func (c *client) GetListing(ctx context.Context, path string) (string, session, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("accept", "text/html,application/xhtml+xml").
		Get(path)
	if err != nil {
		return "", session{}, fmt.Errorf("fetch: %w", err)
	}
	if res.IsError() {
		return "", session{}, fmt.Errorf("fetch: unexpected status %s", res.Status())
	}

	page := htmlutil.DecodeBody(res.Body(), res.Header().Get("content-type"))

	xsrf, sessionCookie := readSessionCookies(res)
	c.ensureCookie(xsrfCookieName, xsrf, true)
	if sessionCookie != nil {
		c.ensureCookie(sessionCookie.Name, sessionCookie.Value, false)
	}

	sess := session{
		xsrf:     xsrf,
		csrf:     xsrf,
		snapshot: findListingSnapshot(page),
	}
	if token, ok := findPageCsrfToken(page); ok {
		sess.csrf = token
	}
	return page, sess, nil
}

// readSessionCookies returns the decoded XSRF-TOKEN and the *_session cookie,
// falling back to the raw Set-Cookie headers when net/http rejects them.
func readSessionCookies(res *resty.Response) (string, *http.Cookie) {
	var xsrf string
	var sessionCookie *http.Cookie
	for _, cookie := range res.Cookies() {
		switch {
		case cookie.Name == xsrfCookieName:
			xsrf = decodeCookieValue(cookie.Value)
		case strings.HasSuffix(cookie.Name, "_session"):
			sessionCookie = cookie
		}
	}

	for _, raw := range res.Header().Values("set-cookie") {
		if xsrf == "" {
			groups := rawXsrfCookieRegex.FindStringSubmatch(raw)
			if len(groups) >= 2 {
				xsrf = decodeCookieValue(groups[1])
			}
		}
		if sessionCookie == nil {
			groups := rawSessionCookieRegex.FindStringSubmatch(raw)
			if len(groups) >= 3 {
				sessionCookie = &http.Cookie{Name: groups[1], Value: groups[2]}
			}
		}
	}
	return xsrf, sessionCookie
}

func decodeCookieValue(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}

// ensureCookie puts a cookie into the jar if the jar did not accept it from
// the response.
func (c *client) ensureCookie(name, value string, encode bool) {
	if value == "" {
		return
	}
	for _, existing := range c.Jar.Cookies(c.BaseUrl) {
		if existing.Name == name {
			return
		}
	}
	if encode {
		value = url.QueryEscape(value)
	}
	c.Jar.SetCookies(c.BaseUrl, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

func findPageCsrfToken(page string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		token := strings.TrimSpace(doc.Find(`meta[name="csrf-token"]`).AttrOr("content", ""))
		if token != "" {
			return token, true
		}
	}
	groups := dataCsrfRegex.FindStringSubmatch(page)
	if len(groups) >= 2 {
		return html.UnescapeString(groups[1]), true
	}
	return "", false
}

func findListingSnapshot(page string) string {
	for _, groups := range snapshotAttrRegex.FindAllStringSubmatch(page, -1) {
		decoded := html.UnescapeString(groups[1])
		if strings.Contains(decoded, listingComponentMarker) {
			return decoded
		}
	}
	return ""
}

// snapshotPerPage reads data.perPage out of a snapshot, livewire serializes it
// either as a number or as a [value, metadata] tuple.
func snapshotPerPage(snapshot string) (int, bool) {
	var parsed struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	err := json.Unmarshal([]byte(snapshot), &parsed)
	if err != nil {
		return 0, false
	}
	raw, ok := parsed.Data["perPage"]
	if !ok {
		return 0, false
	}

	var value float64
	if json.Unmarshal(raw, &value) == nil {
		return int(value), true
	}
	var tuple []json.RawMessage
	if json.Unmarshal(raw, &tuple) == nil && len(tuple) > 0 {
		if json.Unmarshal(tuple[0], &value) == nil {
			return int(value), true
		}
	}
	return 0, false
}

type updateCall struct {
	Path   string `json:"path"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type updateComponent struct {
	Snapshot string         `json:"snapshot"`
	Updates  map[string]any `json:"updates"`
	Calls    []updateCall   `json:"calls"`
}

type updateRequest struct {
	Token      string            `json:"_token"`
	Components []updateComponent `json:"components"`
}

type updateResponse struct {
	Components []struct {
		Snapshot string `json:"snapshot"`
		Effects  struct {
			Html string `json:"html"`
		} `json:"effects"`
	} `json:"components"`
}

// LoadMore invokes the listing component's loadMore action, on success the
// session holds the new snapshot and the full re-rendered listing is returned.
func (c *client) LoadMore(ctx context.Context, sess *session) (string, error) {
	body := updateRequest{
		Token: sess.csrf,
		Components: []updateComponent{{
			Snapshot: sess.snapshot,
			Updates:  map[string]any{},
			Calls: []updateCall{{
				Path:   "",
				Method: "loadMore",
				Params: []any{},
			}},
		}},
	}

	req := c.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetHeader("accept", "application/json").
		SetHeader("x-livewire", "true").
		SetHeader("x-csrf-token", sess.csrf).
		SetBody(body)
	if sess.xsrf != "" {
		req.SetHeader("x-xsrf-token", sess.xsrf)
	}
	res, err := req.Post("/livewire/update")
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("fetch: unexpected status %s", res.Status())
	}

	var parsed updateResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return "", fmt.Errorf("parse update response: %w", err)
	}
	if len(parsed.Components) == 0 {
		return "", fmt.Errorf("parse update response: no components")
	}
	component := parsed.Components[0]
	if component.Snapshot == "" {
		return "", fmt.Errorf("parse update response: empty snapshot")
	}

	sess.snapshot = component.Snapshot
	return component.Effects.Html, nil
}
