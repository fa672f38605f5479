package cademeupsi

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"acolhebem-backend/lib/htmlutil"
)

var (
	abordagemRegex      = labelledFieldRegex("Abordagem")
	atendimentoRegex    = labelledFieldRegex("Atendimento")
	especialidadeRegex  = regexp.MustCompile(`(?i)Especialidades?[^<]*</[^>]+>\s*<[^>]+>([\s\S]*?)</(?:p|div|dd|ul|span|section)>`)
	sobreRegex          = regexp.MustCompile(`(?i)<(?:h[1-6]|strong|b|span|dt|p)[^>]*>\s*Sobre(?:\s+mim)?\s*</(?:h[1-6]|strong|b|span|dt|p)>\s*<(?:p|div|dd|section)[^>]*>([\s\S]*?)</(?:p|div|dd|section)>`)
	hoursRemainingRegex = regexp.MustCompile(`(?i)(\d+)\s*h\s*(?:(\d+)\s*)?min\s+restantes?`)
	availableNowRegex   = regexp.MustCompile(`(?i)Dispon[ií]vel\s+agora`)
	whatsappJsonRegex   = regexp.MustCompile(`"whatsapp"\s*:\s*"([^"]*)"`)
	whatsappAttrRegex   = regexp.MustCompile(`data-whatsapp="([^"]*)"`)
	whatsappLinkRegex   = regexp.MustCompile(`href="([^"]*(?:/whatsapp/|wa\.me/|api\.whatsapp\.com/send)[^"]*)"`)
	nonDigitRegex       = regexp.MustCompile(`\D`)
)

// the value of a labelled field is the text of the element right after the
// element holding the label.
func labelledFieldRegex(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + label + `[^<]*</[^>]+>\s*<[^>]+>\s*([^<]+)`)
}

const (
	field_abordagem       = "abordagem"
	field_atendimento     = "atendimento"
	field_especialidade   = "especialidade"
	field_sobre           = "sobre"
	field_hours_remaining = "hours-remaining"
	field_whatsapp_number = "whatsapp-number"
	field_whatsapp_link   = "whatsapp-link"
)

var profileFields = []string{
	field_abordagem,
	field_atendimento,
	field_especialidade,
	field_sobre,
	field_hours_remaining,
	field_whatsapp_number,
	field_whatsapp_link,
}

// Enrich fills in the fields of a listing only found on its profile page.
// Failures leave the listing as it was, the returned value lists the profile
// fields that could not be found (all of them when the fetch failed).
func (c *client) Enrich(ctx context.Context, listing *Listing, timeout time.Duration) []string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("accept", "text/html").
		Get(listing.ProfileUrl)
	if err != nil {
		c.tel.ReportWarning(report_client_get_profile, fmt.Errorf("fetch: %w", err), listing.ProfileUrl)
		return profileFields
	}
	if res.IsError() {
		c.tel.ReportWarning(
			report_client_get_profile,
			fmt.Errorf("fetch: unexpected status %s", res.Status()),
			listing.ProfileUrl,
		)
		return profileFields
	}

	page := htmlutil.DecodeBody(res.Body(), res.Header().Get("content-type"))
	return applyProfile(listing, page, c.BaseUrl)
}

// applyProfile copies every field found on a profile page into the listing.
func applyProfile(listing *Listing, page string, origin *url.URL) []string {
	var missed []string
	found := func(field string, ok bool) {
		if !ok {
			missed = append(missed, field)
		}
	}

	abordagem, ok := extractLabelledField(abordagemRegex, page)
	if ok {
		listing.Abordagem = abordagem
	}
	found(field_abordagem, ok)

	atendimento, ok := extractLabelledField(atendimentoRegex, page)
	if ok {
		listing.Atendimento = atendimento
	}
	found(field_atendimento, ok)

	especialidade, ok := extractBlock(especialidadeRegex, page, 300)
	if ok {
		listing.Especialidade = especialidade
	}
	found(field_especialidade, ok)

	description, ok := extractBlock(sobreRegex, page, 500)
	if ok {
		listing.Description = description
	}
	found(field_sobre, ok)

	hours, ok := extractHoursRemaining(page)
	if ok {
		listing.HoursRemaining = hours
	}
	found(field_hours_remaining, ok)

	if availableNowRegex.MatchString(page) {
		listing.Available = true
	}

	decoded := html.UnescapeString(page)

	number, ok := extractWhatsappNumber(decoded)
	if ok {
		listing.WhatsappNumber = number
	}
	found(field_whatsapp_number, ok)

	link, ok := extractWhatsappLink(decoded, origin)
	if ok {
		listing.WhatsappUrl = link
	}
	found(field_whatsapp_link, ok)

	return missed
}

func extractLabelledField(re *regexp.Regexp, page string) (string, bool) {
	groups := re.FindStringSubmatch(page)
	if len(groups) < 2 {
		return "", false
	}
	value := htmlutil.CollapseWhitespace(html.UnescapeString(groups[1]))
	return value, value != ""
}

func extractBlock(re *regexp.Regexp, page string, limit int) (string, bool) {
	groups := re.FindStringSubmatch(page)
	if len(groups) < 2 {
		return "", false
	}
	value := htmlutil.CleanText(groups[1], limit)
	return value, value != ""
}

// extractHoursRemaining reads "<H>h [<M>] min restantes" as fractional hours.
func extractHoursRemaining(page string) (float64, bool) {
	groups := hoursRemainingRegex.FindStringSubmatch(page)
	if len(groups) < 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, false
	}
	minutes := 0
	if groups[2] != "" {
		minutes, err = strconv.Atoi(groups[2])
		if err != nil {
			return 0, false
		}
	}
	return float64(hours) + float64(minutes)/60, true
}

// normalizeWhatsappNumber keeps only digits and prefixes brazilian local
// numbers with the country code, numbers too short to dial are rejected.
func normalizeWhatsappNumber(raw string) (string, bool) {
	digits := nonDigitRegex.ReplaceAllString(raw, "")
	switch {
	case len(digits) < 10:
		return "", false
	case len(digits) <= 11:
		return "55" + digits, true
	}
	return digits, true
}

func extractWhatsappNumber(decodedPage string) (string, bool) {
	for _, re := range []*regexp.Regexp{whatsappJsonRegex, whatsappAttrRegex} {
		groups := re.FindStringSubmatch(decodedPage)
		if len(groups) < 2 {
			continue
		}
		number, ok := normalizeWhatsappNumber(groups[1])
		if ok {
			return number, true
		}
	}
	return "", false
}

func extractWhatsappLink(decodedPage string, origin *url.URL) (string, bool) {
	groups := whatsappLinkRegex.FindStringSubmatch(decodedPage)
	if len(groups) < 2 {
		return "", false
	}
	link := strings.TrimSpace(groups[1])
	if link == "" {
		return "", false
	}
	return resolveUrl(origin, link)
}
