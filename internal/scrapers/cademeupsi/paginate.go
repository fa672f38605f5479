package cademeupsi

import (
	"context"
	"fmt"
)

const (
	report_pagination_session = "pagination.session"
	report_pagination_rounds  = "pagination.rounds"
	report_pagination_stop    = "pagination.stop"
)

type paginationState int

const (
	stateFetching paginationState = iota
	stateStalledPageSize
	stateStalledProfileCount
	stateExhaustedRounds
	stateDone
)

func (s paginationState) String() string {
	switch s {
	case stateFetching:
		return "fetching"
	case stateStalledPageSize:
		return "stalled-page-size"
	case stateStalledProfileCount:
		return "stalled-profile-count"
	case stateExhaustedRounds:
		return "exhausted-rounds"
	case stateDone:
		return "done"
	}
	return fmt.Sprintf("paginationState(%d)", int(s))
}

// terminationPolicy decides when the listing has stopped growing.
//
// A round stops the loop when the page size did not grow relative to the
// last known page size (the initial snapshot included), when the distinct
// profile count equals the previous round's and is positive, or when it is
// the last allowed round.
type terminationPolicy struct {
	maxRounds int
	round     int

	perPage    int
	hasPerPage bool

	profileCount int

	state paginationState
}

func newTerminationPolicy(maxRounds int, initialSnapshot string) *terminationPolicy {
	p := &terminationPolicy{maxRounds: maxRounds}
	p.perPage, p.hasPerPage = snapshotPerPage(initialSnapshot)
	return p
}

func (p *terminationPolicy) fetching() bool {
	return p.state == stateFetching
}

// observe records a successful round and returns the resulting state.
func (p *terminationPolicy) observe(snapshot string, profileCount int) paginationState {
	p.round++

	perPage, ok := snapshotPerPage(snapshot)
	if ok {
		if p.hasPerPage && perPage <= p.perPage {
			p.state = stateStalledPageSize
			return p.state
		}
		p.perPage = perPage
		p.hasPerPage = true
	}

	if profileCount > 0 && profileCount == p.profileCount {
		p.state = stateStalledProfileCount
		return p.state
	}
	p.profileCount = profileCount

	if p.round >= p.maxRounds {
		p.state = stateExhaustedRounds
		return p.state
	}
	return p.state
}

// fail ends the loop after a round that could not be completed.
func (p *terminationPolicy) fail() {
	p.round++
	p.state = stateDone
}

// LoadFullListing returns the fullest render of the listing it could obtain,
// or an empty string when not even the first page could be fetched.
func (c *client) LoadFullListing(ctx context.Context, listingPath string, maxRounds int) string {
	page, sess, err := c.GetListing(ctx, listingPath)
	if err != nil {
		c.tel.ReportBroken(report_client_get_listing, err, listingPath)
		return ""
	}

	if !sess.usable() {
		c.tel.ReportWarning(
			report_pagination_session,
			fmt.Errorf("session unusable: has csrf %v, has snapshot %v", sess.csrf != "", sess.snapshot != ""),
		)
		return page
	}

	policy := newTerminationPolicy(maxRounds, sess.snapshot)
	for policy.fetching() {
		rendered, err := c.LoadMore(ctx, &sess)
		if err != nil {
			c.tel.ReportWarning(report_client_load_more, err, policy.round+1)
			policy.fail()
			break
		}
		if rendered != "" {
			page = rendered
		}
		policy.observe(sess.snapshot, countProfileSlugs(rendered))
	}

	c.tel.ReportCount(report_pagination_rounds, int64(policy.round))
	c.tel.ReportDebug(report_pagination_stop, policy.state.String(), policy.round)
	return page
}
