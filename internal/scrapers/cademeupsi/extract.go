package cademeupsi

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"acolhebem-backend/lib/htmlutil"
	"acolhebem-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// lastCardWindow is how many bytes past its marker the last card is assumed to span.
const lastCardWindow = 8000

var (
	cardMarkerRegex   = regexp.MustCompile(`wire:key="[^"0-9]*(\d+)"`)
	profileHrefRegex  = regexp.MustCompile(`href="(?:https?://[^"/]+)?/psicologo/([^"/?#]+)/?(?:[?#][^"]*)?"`)
	slugIdRegex       = regexp.MustCompile(`-(\d+)$`)
	photoRegex        = regexp.MustCompile(`background-image:\s*url\(\s*([^)]+?)\s*\)`)
	crpBeforeTagRegex = regexp.MustCompile(`(\d{2}/\d{3,6})\s*</span>\s*<span[^>]*>\s*CRP`)
	crpRegex          = regexp.MustCompile(`(\d{2}/\d{3,6})`)
	availableToday    = regexp.MustCompile(`(?i)Dispon[ií]vel\s+hoje`)
)

type cardFragment struct {
	markerId string
	html     string
}

// splitCards cuts the listing into one fragment per card marker, in document order.
func splitCards(listing string) []cardFragment {
	matches := cardMarkerRegex.FindAllStringSubmatchIndex(listing, -1)
	fragments := make([]cardFragment, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := start + lastCardWindow
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if end > len(listing) {
			end = len(listing)
		}
		fragments = append(fragments, cardFragment{
			markerId: listing[m[2]:m[3]],
			html:     listing[start:end],
		})
	}
	return fragments
}

// ExtractCards parses every card of a listing page. Cards without a profile
// link are skipped, every other field falls back to its default when missing.
// Duplicates are kept.
func ExtractCards(listing string, baseUrl string) []Listing {
	origin, err := parseOrigin(baseUrl)
	if err != nil {
		return nil
	}

	var out []Listing
	for _, fragment := range splitCards(listing) {
		card, ok := extractCard(fragment, origin)
		if !ok {
			continue
		}
		out = append(out, card)
	}
	return out
}

func extractCard(fragment cardFragment, origin *url.URL) (Listing, bool) {
	slug, ok := extractSlug(fragment.html)
	if !ok {
		return Listing{}, false
	}

	card := newListing()
	card.ProfileUrl = origin.JoinPath("psicologo", slug).String()

	// a fragment that cannot be parsed only loses the fields read from the dom
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment.html))
	if err == nil {
		if name, ok := extractName(doc); ok {
			card.Name = name
		}
		if description, ok := extractDescription(doc); ok {
			card.Description = description
		}
	}
	if card.Name == "" {
		card.Name, _ = nameFromSlug(slug)
	}
	if photo, ok := extractPhoto(fragment.html, origin); ok {
		card.Photo = photo
	}
	if crp, ok := extractCrp(fragment.html); ok {
		card.Crp = crp
	}
	card.Available = extractAvailableToday(fragment.html)

	id, ok := slugId(slug)
	if !ok {
		id = fragment.markerId
	}
	card.WhatsappUrl = origin.JoinPath("whatsapp", id).String()

	return card, true
}

func parseOrigin(baseUrl string) (*url.URL, error) {
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}, nil
}

func extractSlug(fragment string) (string, bool) {
	groups := profileHrefRegex.FindStringSubmatch(fragment)
	if len(groups) < 2 || groups[1] == "" {
		return "", false
	}
	return groups[1], true
}

func slugId(slug string) (string, bool) {
	groups := slugIdRegex.FindStringSubmatch(slug)
	if len(groups) < 2 {
		return "", false
	}
	return groups[1], true
}

func extractName(doc *goquery.Document) (string, bool) {
	anchor := doc.Find(`a[class*="text-md"]`).First()
	if anchor.Length() == 0 {
		return "", false
	}
	name := htmlutil.SelectionText(anchor)
	if utf8.RuneCountInString(name) <= 2 {
		return "", false
	}
	if textutil.IsAllCaps(name) {
		name = textutil.TitleCase(name)
	}
	return name, true
}

// nameFromSlug turns "maria-eduarda-lima-4821" into "Maria Eduarda Lima".
func nameFromSlug(slug string) (string, bool) {
	base := slugIdRegex.ReplaceAllString(slug, "")
	name := htmlutil.CollapseWhitespace(strings.ReplaceAll(base, "-", " "))
	if name == "" {
		return "", false
	}
	return textutil.TitleCase(name), true
}

func extractPhoto(fragment string, origin *url.URL) (string, bool) {
	groups := photoRegex.FindStringSubmatch(fragment)
	if len(groups) < 2 {
		return "", false
	}
	raw := strings.Trim(html.UnescapeString(groups[1]), `'" `)
	if raw == "" {
		return "", false
	}
	return resolveUrl(origin, raw)
}

func resolveUrl(origin *url.URL, raw string) (string, bool) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return origin.ResolveReference(ref).String(), true
}

func extractCrp(fragment string) (string, bool) {
	groups := crpBeforeTagRegex.FindStringSubmatch(fragment)
	if len(groups) >= 2 {
		return groups[1], true
	}
	groups = crpRegex.FindStringSubmatch(fragment)
	if len(groups) >= 2 {
		return groups[1], true
	}
	return "", false
}

func extractDescription(doc *goquery.Document) (string, bool) {
	paragraph := doc.Find(`p[class*="text-sm"]`).First()
	if paragraph.Length() == 0 {
		return "", false
	}
	description := htmlutil.Truncate(htmlutil.SelectionText(paragraph), 200)
	return description, description != ""
}

func extractAvailableToday(fragment string) bool {
	return availableToday.MatchString(fragment)
}

// countProfileSlugs counts the distinct profile slugs linked from a page.
func countProfileSlugs(page string) int {
	seen := map[string]struct{}{}
	for _, groups := range profileHrefRegex.FindAllStringSubmatch(page, -1) {
		seen[groups[1]] = struct{}{}
	}
	return len(seen)
}
