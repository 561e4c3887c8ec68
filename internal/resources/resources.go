// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resources turns prerequisite concepts into curated lists of
// learning resources.
//
// For each concept it fans out several query variants to the search
// client, deduplicates by URL, filters out low-signal hits, and ranks the
// remainder by source quality before keeping the top few.
package resources

import (
	"context"
	"log"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/search"
	"github.com/learnmate/learnmate/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// SourceWeb marks resources found through web search. The only source
// today, but clients key off the field.
const SourceWeb = "web"

// Resource is a single curated learning resource.
type Resource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Source      string `json:"source"`

	score int
}

// DefaultMaxPerConcept is how many resources a concept keeps after ranking.
const DefaultMaxPerConcept = 5

// DefaultMaxConcepts is how many prerequisites get resources.
const DefaultMaxConcepts = 10

// maxDescriptionLen truncates snippets so result payloads stay compact.
const maxDescriptionLen = 200

// Searcher is the search operation the finder depends on.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// =============================================================================
// FINDER
// =============================================================================

// Finder locates learning resources for prerequisite concepts.
type Finder struct {
	searcher      Searcher
	limiter       *rate.Limiter
	maxPerConcept int
	maxConcepts   int
}

// Option configures a Finder.
type Option func(*Finder)

// WithMaxPerConcept overrides how many resources are kept per concept.
func WithMaxPerConcept(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.maxPerConcept = n
		}
	}
}

// WithMaxConcepts overrides how many prerequisites get resources.
func WithMaxConcepts(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.maxConcepts = n
		}
	}
}

// WithQueriesPerSecond overrides the search throttle.
func WithQueriesPerSecond(qps float64) Option {
	return func(f *Finder) {
		if qps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(qps), 1)
		}
	}
}

// NewFinder creates a Finder over the given searcher.
//
// Searches are throttled to 2/sec by default; the HTML endpoint bans
// clients that hammer it.
func NewFinder(searcher Searcher, opts ...Option) *Finder {
	f := &Finder{
		searcher:      searcher,
		limiter:       rate.NewLimiter(rate.Limit(2), 1),
		maxPerConcept: DefaultMaxPerConcept,
		maxConcepts:   DefaultMaxConcepts,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// queryVariants are the search phrasings tried for each concept.
var queryVariants = []string{
	"%s tutorial",
	"learn %s",
	"%s documentation",
	"%s course",
	"%s getting started guide",
}

// FindForConcept returns ranked learning resources for one concept.
//
// Individual query failures are logged and skipped; the concept only
// fails outright when the context is cancelled.
func (f *Finder) FindForConcept(ctx context.Context, concept string) ([]Resource, error) {
	seen := make(map[string]bool)
	// Non-nil so a concept with no hits serializes as [] rather than null.
	candidates := []Resource{}

	for _, variant := range queryVariants {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		query := strings.Replace(variant, "%s", concept, 1)
		hits, err := f.searcher.Search(ctx, query, f.maxPerConcept)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("SEARCH_QUERY_FAILED | concept=%q query=%q error=%v", concept, query, err)
			continue
		}

		for _, hit := range hits {
			key := canonicalURL(hit.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true

			if !keepResult(concept, hit) {
				continue
			}
			candidates = append(candidates, Resource{
				Title:       strings.TrimSpace(hit.Title),
				URL:         hit.URL,
				Description: util.Truncate(strings.TrimSpace(hit.Description), maxDescriptionLen),
				Source:      SourceWeb,
				score:       scoreResult(hit),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > f.maxPerConcept {
		candidates = candidates[:f.maxPerConcept]
	}
	return candidates, nil
}

// FindForPrerequisites finds resources for each prerequisite, keyed by
// prerequisite name. Only the first maxConcepts entries are searched; the
// caller passes them priority-ordered.
//
// A concept whose searches all fail simply maps to an empty list.
func (f *Finder) FindForPrerequisites(ctx context.Context, prereqs []analyzer.Prerequisite) (map[string][]Resource, error) {
	if len(prereqs) > f.maxConcepts {
		prereqs = prereqs[:f.maxConcepts]
	}

	out := make(map[string][]Resource, len(prereqs))
	for _, p := range prereqs {
		found, err := f.FindForConcept(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		out[p.Name] = found
		log.Printf("RESOURCES_FOUND | concept=%q count=%d", p.Name, len(found))
	}
	return out, nil
}

// =============================================================================
// FILTERING AND RANKING
// =============================================================================

// excludedHosts never make it into a resource list. Q&A threads answer one
// narrow question and teach poorly.
var excludedHosts = []string{
	"stackoverflow.com",
}

// highValueHosts are dedicated learning platforms and official docs.
var highValueHosts = []string{
	"freecodecamp.org",
	"codecademy.com",
	"khanacademy.org",
	"coursera.org",
	"udemy.com",
	"edx.org",
	"w3schools.com",
	"developer.mozilla.org",
	"docs.python.org",
	"go.dev",
	"realpython.com",
	"tutorialspoint.com",
	"geeksforgeeks.org",
}

// mediumValueHosts carry good content with more noise.
var mediumValueHosts = []string{
	"github.com",
	"medium.com",
	"dev.to",
	"towardsdatascience.com",
}

// educationalKeywords in a title suggest a teaching resource.
var educationalKeywords = []string{
	"tutorial",
	"guide",
	"learn",
	"course",
	"documentation",
	"introduction",
	"getting started",
	"beginner",
}

// keepResult decides whether a hit is worth ranking: excluded hosts are
// dropped, and the concept has to appear somewhere in the title or snippet.
func keepResult(concept string, hit search.Result) bool {
	host := hostOf(hit.URL)
	for _, excluded := range excludedHosts {
		if hostMatches(host, excluded) {
			return false
		}
	}

	haystack := strings.ToLower(hit.Title + " " + hit.Description)
	for _, word := range strings.Fields(strings.ToLower(concept)) {
		if strings.Contains(haystack, word) {
			return true
		}
	}
	return false
}

// scoreResult ranks a hit by source quality and title signal.
func scoreResult(hit search.Result) int {
	score := 0
	host := hostOf(hit.URL)

	for _, h := range highValueHosts {
		if hostMatches(host, h) {
			score += 10
			break
		}
	}
	for _, h := range mediumValueHosts {
		if hostMatches(host, h) {
			score += 5
			break
		}
	}

	title := strings.ToLower(hit.Title)
	for _, kw := range educationalKeywords {
		if strings.Contains(title, kw) {
			score += 3
			break
		}
	}
	return score
}

// hostOf extracts the lowercased host from a URL, tolerating bare hosts.
func hostOf(rawURL string) string {
	s := strings.ToLower(rawURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// hostMatches reports whether host is domain or a subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// canonicalURL normalizes a URL for dedup purposes.
func canonicalURL(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	s = strings.TrimSuffix(s, "/")
	return strings.ToLower(s)
}
