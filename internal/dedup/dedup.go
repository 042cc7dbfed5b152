package dedup

import (
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/a11yscan/a11yscan/internal/model"
)

// DefaultThreshold is the fraction of pages a fingerprint must span to
// qualify as a shared component.
const DefaultThreshold = 0.5

// Engine runs the four-layer deduplication pipeline. It holds no
// per-scan state.
type Engine struct {
	threshold float64
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the shared-component page fraction. Values outside
// (0, 1] fall back to the default.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t <= 1 {
			e.threshold = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		threshold: DefaultThreshold,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// state carries the per-run context shared by the layers.
type state struct {
	scan *model.Scan

	// pages holds the scan's completed pages; errored pages carry no
	// fingerprints and no issues, so they never participate.
	pages []*model.Page

	pageByID map[string]*model.Page

	// qualifying is the minimum page span for shared-component groups.
	qualifying int

	// covered marks page URLs absorbed by a duplicate-page group in
	// layer three, excluding them from the layer-four fallback.
	covered map[string]bool
}

// Deduplicate groups the scan's issues and returns the produced groups
// in deterministic order. Issues are mutated in place: previous group
// assignments are cleared first, so re-running over a persisted issue
// set always yields the same grouping. The scan's unique-issue and
// group counters are updated before returning.
func (e *Engine) Deduplicate(scan *model.Scan, pages []*model.Page, issues []*model.Issue) (groups []*model.ComponentGroup) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("deduplication failed, keeping raw issue set",
				slog.String("scan_id", scan.ID), slog.Any("panic", r))
			for _, issue := range issues {
				issue.Grouped = false
				issue.GroupID = ""
			}
			scan.TotalIssuesDeduplicated = len(issues)
			scan.GroupCount = 0
			groups = nil
		}
	}()

	for _, issue := range issues {
		issue.Grouped = false
		issue.GroupID = ""
	}

	st := &state{
		scan:     scan,
		pageByID: make(map[string]*model.Page),
		covered:  make(map[string]bool),
	}
	for _, p := range pages {
		st.pageByID[p.ID] = p
		if p.Status == model.PageStatusComplete {
			st.pages = append(st.pages, p)
		}
	}
	st.qualifying = qualifyingPages(len(st.pages), e.threshold)

	remaining := issues
	for _, layer := range []func(*state, []*model.Issue) ([]*model.ComponentGroup, []*model.Issue){
		layerSharedRegions,
		layerRepeatedSelectors,
		layerDuplicatePages,
		layerTitleSignatures,
	} {
		produced, rest := layer(st, remaining)
		groups = append(groups, produced...)
		remaining = rest
	}

	finalize(scan, groups, issues)
	return groups
}

// qualifyingPages converts the threshold fraction into a page count.
// The floor of two keeps a tiny crawl from declaring every singleton
// region a shared component.
func qualifyingPages(totalPages int, threshold float64) int {
	q := int(math.Ceil(float64(totalPages) * threshold))
	if q < 2 {
		q = 2
	}
	return q
}

// regionDigest keys layer-one groups.
type regionDigest struct {
	region model.Region
	digest string
}

// layerSharedRegions groups issues sitting inside landmark regions
// whose digest is shared by at least the qualifying page count.
func layerSharedRegions(st *state, ungrouped []*model.Issue) ([]*model.ComponentGroup, []*model.Issue) {
	groupFor := make(map[regionDigest]*model.ComponentGroup)
	var groups []*model.ComponentGroup

	for _, region := range model.SharedRegions() {
		byDigest := make(map[string][]*model.Page)
		for _, p := range st.pages {
			if fp := p.Fingerprints[region]; fp != "" {
				byDigest[fp] = append(byDigest[fp], p)
			}
		}

		digests := make([]string, 0, len(byDigest))
		for digest := range byDigest {
			digests = append(digests, digest)
		}
		sort.Strings(digests)

		for _, digest := range digests {
			shared := byDigest[digest]
			if len(shared) < st.qualifying {
				continue
			}
			g := model.NewComponentGroup(st.scan.ID, string(region), digest, "Shared "+string(region))
			g.PageCount = len(shared)
			g.PageURLs = pageURLs(shared)
			groups = append(groups, g)
			groupFor[regionDigest{region, digest}] = g
		}
	}

	var remaining []*model.Issue
	for _, issue := range ungrouped {
		if issue.Region != "" && issue.Fingerprint != "" {
			if g, ok := groupFor[regionDigest{issue.Region, issue.Fingerprint}]; ok {
				issue.AssignGroup(g.ID)
				continue
			}
		}
		remaining = append(remaining, issue)
	}
	return groups, remaining
}

// layerRepeatedSelectors groups leftover issues by (rule, selector)
// across the whole scan, catching repeated widgets that sit outside any
// landmark.
func layerRepeatedSelectors(st *state, ungrouped []*model.Issue) ([]*model.ComponentGroup, []*model.Issue) {
	byKey := make(map[string][]*model.Issue)
	var order []string
	for _, issue := range ungrouped {
		key := issue.DedupKey()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], issue)
	}

	var groups []*model.ComponentGroup
	groupFor := make(map[string]*model.ComponentGroup)
	for _, key := range order {
		occurrences := byKey[key]
		spanned := issuePages(st, occurrences)
		if len(spanned) < st.qualifying {
			continue
		}
		g := model.NewComponentGroup(st.scan.ID, model.GroupKindRepeatedElement,
			key, labelFromSelector(occurrences[0].Target))
		g.PageCount = len(spanned)
		g.PageURLs = pageURLs(spanned)
		groups = append(groups, g)
		groupFor[key] = g
	}

	var remaining []*model.Issue
	for _, issue := range ungrouped {
		if g, ok := groupFor[issue.DedupKey()]; ok {
			issue.AssignGroup(g.ID)
			continue
		}
		remaining = append(remaining, issue)
	}
	return groups, remaining
}

// layerDuplicatePages finds pages serving content-identical documents
// under different URLs and collapses the issues they share. The content
// fingerprint is the main-region digest with a body fallback, so pages
// without a <main> landmark stay comparable.
func layerDuplicatePages(st *state, ungrouped []*model.Issue) ([]*model.ComponentGroup, []*model.Issue) {
	byContent := make(map[string][]*model.Page)
	var order []string
	for _, p := range st.pages {
		fp := p.ContentFingerprint()
		if fp == "" {
			continue
		}
		if _, seen := byContent[fp]; !seen {
			order = append(order, fp)
		}
		byContent[fp] = append(byContent[fp], p)
	}

	var groups []*model.ComponentGroup
	remaining := ungrouped
	for _, fp := range order {
		candidates := byContent[fp]
		if len(candidates) < 2 {
			continue
		}
		var produced []*model.ComponentGroup
		produced, remaining = groupAcrossPages(st, remaining, candidates, fp)
		groups = append(groups, produced...)
	}
	return groups, remaining
}

// layerTitleSignatures is the fallback for near-duplicate pages whose
// structural fingerprints diverged: pages sharing both a title and the
// exact signature of their remaining issues are treated as duplicates.
func layerTitleSignatures(st *state, ungrouped []*model.Issue) ([]*model.ComponentGroup, []*model.Issue) {
	issuesByPage := make(map[string][]*model.Issue)
	for _, issue := range ungrouped {
		issuesByPage[issue.PageID] = append(issuesByPage[issue.PageID], issue)
	}

	bySignature := make(map[string][]*model.Page)
	var order []string
	for _, p := range st.pages {
		if st.covered[p.URL] || p.Title == "" || len(issuesByPage[p.ID]) == 0 {
			continue
		}
		sig := pageSignature(p.Title, issuesByPage[p.ID])
		if _, seen := bySignature[sig]; !seen {
			order = append(order, sig)
		}
		bySignature[sig] = append(bySignature[sig], p)
	}

	var groups []*model.ComponentGroup
	remaining := ungrouped
	for _, sig := range order {
		candidates := bySignature[sig]
		if len(candidates) < 2 {
			continue
		}
		var produced []*model.ComponentGroup
		produced, remaining = groupAcrossPages(st, remaining, candidates, sig)
		groups = append(groups, produced...)
	}
	return groups, remaining
}

// pageSignature builds the layer-four identity: the page title joined
// with the sorted (rule, selector) keys of its remaining issues.
func pageSignature(title string, issues []*model.Issue) string {
	keys := make([]string, 0, len(issues))
	for _, issue := range issues {
		keys = append(keys, issue.DedupKey())
	}
	sort.Strings(keys)
	return title + "|" + strings.Join(keys, ";")
}

// groupAcrossPages collapses the ungrouped issues of one duplicate-page
// candidate set. Issues sharing a (rule, selector) key across at least
// two of the candidate pages form a duplicate-page group; issues unique
// to a single page stay ungrouped.
func groupAcrossPages(st *state, ungrouped []*model.Issue, candidates []*model.Page, fingerprint string) ([]*model.ComponentGroup, []*model.Issue) {
	inSet := make(map[string]bool, len(candidates))
	for _, p := range candidates {
		inSet[p.ID] = true
	}

	byKey := make(map[string][]*model.Issue)
	var order []string
	for _, issue := range ungrouped {
		if !inSet[issue.PageID] {
			continue
		}
		key := issue.DedupKey()
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], issue)
	}

	var groups []*model.ComponentGroup
	groupFor := make(map[string]*model.ComponentGroup)
	for _, key := range order {
		occurrences := byKey[key]
		spanned := issuePages(st, occurrences)
		if len(spanned) < 2 {
			continue
		}
		g := model.NewComponentGroup(st.scan.ID, model.GroupKindDuplicatePage,
			fingerprint, labelFromPaths(pageURLs(spanned)))
		g.PageCount = len(spanned)
		g.PageURLs = pageURLs(spanned)
		groups = append(groups, g)
		groupFor[key] = g
		for _, url := range g.PageURLs {
			st.covered[url] = true
		}
	}

	var remaining []*model.Issue
	for _, issue := range ungrouped {
		if inSet[issue.PageID] {
			if g, ok := groupFor[issue.DedupKey()]; ok {
				issue.AssignGroup(g.ID)
				continue
			}
		}
		remaining = append(remaining, issue)
	}
	return groups, remaining
}

// finalize recomputes each group's unique-issue count as distinct
// (rule, selector) keys and updates the scan's aggregate counters.
func finalize(scan *model.Scan, groups []*model.ComponentGroup, issues []*model.Issue) {
	uniqueByGroup := make(map[string]map[string]bool)
	ungrouped := 0
	for _, issue := range issues {
		if !issue.Grouped {
			ungrouped++
			continue
		}
		keys := uniqueByGroup[issue.GroupID]
		if keys == nil {
			keys = make(map[string]bool)
			uniqueByGroup[issue.GroupID] = keys
		}
		keys[issue.DedupKey()] = true
	}

	unique := ungrouped
	for _, g := range groups {
		g.IssueCount = len(uniqueByGroup[g.ID])
		unique += g.IssueCount
	}

	scan.TotalIssuesDeduplicated = unique
	scan.GroupCount = len(groups)
}

// issuePages returns the distinct pages a set of issues spans, in
// first-seen order.
func issuePages(st *state, issues []*model.Issue) []*model.Page {
	seen := make(map[string]bool)
	var pages []*model.Page
	for _, issue := range issues {
		if seen[issue.PageID] {
			continue
		}
		seen[issue.PageID] = true
		if p, ok := st.pageByID[issue.PageID]; ok {
			pages = append(pages, p)
		}
	}
	return pages
}

// pageURLs extracts sorted URLs from a page set.
func pageURLs(pages []*model.Page) []string {
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	sort.Strings(urls)
	return urls
}
