/*******************************************************************************
*
* Copyright 2024 GPU Scoring Tool Contributors
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

// Package normalize resolves a RawListing's free-text title to a
// CanonicalModel, trying exact alias lookup, then structured-text
// patterns, then approximate string matching, in that order (spec.md
// sec 4.3). Row-level work is embarrassingly parallel and is fanned
// out across a bounded worker pool while preserving input order, the
// same shape internal/collector/scrape.go uses for per-project
// scraping.
package normalize

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/atomic"
	"golang.org/x/text/unicode/norm"

	"github.com/lucienbrule/gpu-scoring-tool/internal/ml"
	"github.com/lucienbrule/gpu-scoring-tool/internal/model"
	"github.com/lucienbrule/gpu-scoring-tool/internal/registry"
)

// Tally counts how many rows resolved via each MatchType across a run.
// Fields are lock-free atomics because normalization fans rows out
// across a worker pool; a shared Tally is safe to pass to every worker.
type Tally struct {
	Exact atomic.Int64
	Regex atomic.Int64
	Fuzzy atomic.Int64
	None  atomic.Int64
}

// Snapshot returns a plain-value copy suitable for embedding in an
// ingest summary response.
func (t *Tally) Snapshot() map[string]int64 {
	return map[string]int64{
		"exact": t.Exact.Load(),
		"regex": t.Regex.Load(),
		"fuzzy": t.Fuzzy.Load(),
		"none":  t.None.Load(),
	}
}

func (t *Tally) record(mt model.MatchType) {
	switch mt {
	case model.MatchExact:
		t.Exact.Inc()
	case model.MatchRegex:
		t.Regex.Inc()
	case model.MatchFuzzy:
		t.Fuzzy.Inc()
	default:
		t.None.Inc()
	}
}

// matchCacheSize bounds the per-process LRU of normalized-title to
// match-result, absorbing the repeated titles a single scrape/CSV
// batch or long-lived process commonly sees without unbounded growth.
const matchCacheSize = 4096

type cachedMatch struct {
	canonical model.CanonicalModel
	matchType model.MatchType
	score     float64
	notes     string
}

// Normalizer resolves titles to canonical models against one Registry.
// It is safe for concurrent use: its only mutable state is the match
// cache, which is internally synchronized.
type Normalizer struct {
	reg        registry.Registry
	classifier ml.Classifier
	useML      bool
	cache      *lru.Cache
	cacheMu    sync.Mutex
}

// New builds a Normalizer bound to reg. classifier may be nil, in
// which case ml.NullClassifier is used; the classifier is only
// consulted when useML is true (spec.md sec 4.3: the ML signal is
// opt-in configuration, not an always-on stage).
func New(reg registry.Registry, classifier ml.Classifier, useML bool) *Normalizer {
	if classifier == nil {
		classifier = ml.NullClassifier{}
	}
	cache, err := lru.New(matchCacheSize)
	if err != nil {
		// lru.New only errors for a non-positive size, which matchCacheSize
		// never is; a panic here would indicate a code change broke that.
		panic(fmt.Sprintf("normalize: could not allocate match cache: %s", err))
	}
	return &Normalizer{reg: reg, classifier: classifier, useML: useML, cache: cache}
}

// Run is a pipeline.Stage: it resolves every RawListing's canonical
// model, in row order, using a bounded worker pool for the underlying
// fuzzy-match scan. tally, if non-nil, is updated with this run's
// per-MatchType counts.
func (n *Normalizer) Run(tally *Tally) func(ctx context.Context, in []model.RawListing) ([]model.NormalizedListing, error) {
	return func(ctx context.Context, in []model.RawListing) ([]model.NormalizedListing, error) {
		out := make([]model.NormalizedListing, len(in))

		workers := runtime.GOMAXPROCS(0)
		if workers > len(in) {
			workers = len(in)
		}
		if workers < 1 {
			workers = 1
		}

		indices := make(chan int)
		var wg sync.WaitGroup
		var firstErr error
		var errMu sync.Mutex

		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indices {
					nl, err := n.normalizeOne(in[i])
					if err != nil {
						errMu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						errMu.Unlock()
						continue
					}
					if tally != nil {
						tally.record(nl.MatchType)
					}
					out[i] = nl
				}
			}()
		}

	feed:
		for i := range in {
			select {
			case <-ctx.Done():
				firstErr = ctx.Err()
				break feed
			case indices <- i:
			}
		}
		close(indices)
		wg.Wait()

		if firstErr != nil {
			return nil, firstErr
		}
		return out, nil
	}
}

func (n *Normalizer) normalizeOne(raw model.RawListing) (model.NormalizedListing, error) {
	raw = raw.WithDefaults()
	nl := model.NormalizedListing{RawListing: raw}

	if raw.Model != "" {
		if _, ok := n.reg.Spec(raw.Model); ok {
			nl.CanonicalModel = raw.Model
			nl.MatchType = model.MatchExact
			nl.MatchScore = 1.0
			nl.MatchNotes = "pretagged:" + string(raw.Model)
			n.applyMLSignal(&nl)
			return nl, nil
		}
		nl.AddWarning("pretagged_unknown", fmt.Sprintf("pre-tagged model %q not in registry, falling back to title matching", raw.Model))
	}

	normalizedTitle := normalizeTitle(raw.Title)

	if cached, ok := n.lookupCache(normalizedTitle); ok {
		nl.CanonicalModel = cached.canonical
		nl.MatchType = cached.matchType
		nl.MatchScore = cached.score
		nl.MatchNotes = cached.notes
		if cached.matchType == model.MatchNone {
			nl.AddWarning("unresolved_title", fmt.Sprintf("could not resolve title %q to any canonical model", raw.Title))
		}
		n.applyMLSignal(&nl)
		return nl, nil
	}

	canon, mt, score, notes := n.resolve(normalizedTitle)
	n.storeCache(normalizedTitle, cachedMatch{canonical: canon, matchType: mt, score: score, notes: notes})

	nl.CanonicalModel = canon
	nl.MatchType = mt
	nl.MatchScore = score
	nl.MatchNotes = notes

	if mt == model.MatchNone {
		nl.AddWarning("unresolved_title", fmt.Sprintf("could not resolve title %q to any canonical model", raw.Title))
	}

	n.applyMLSignal(&nl)
	return nl, nil
}

// applyMLSignal consults the configured Classifier, if enabled, and
// attaches its verdict as annotation-only fields. It never changes
// CanonicalModel/MatchType/MatchScore, which remain whatever the
// deterministic resolution steps produced (spec.md sec 4.3).
func (n *Normalizer) applyMLSignal(nl *model.NormalizedListing) {
	if !n.useML {
		return
	}
	isGPU, score, err := n.classifier.PredictIsGPU(nl.Title, nl.BulkNotes)
	if err != nil {
		nl.AddWarning("ml_classifier_error", err.Error())
		return
	}
	nl.MLIsGPU = &isGPU
	nl.MLScore = &score
}

func (n *Normalizer) lookupCache(normalizedTitle string) (cachedMatch, bool) {
	n.cacheMu.Lock()
	defer n.cacheMu.Unlock()
	v, ok := n.cache.Get(normalizedTitle)
	if !ok {
		return cachedMatch{}, false
	}
	return v.(cachedMatch), true
}

func (n *Normalizer) storeCache(normalizedTitle string, m cachedMatch) {
	n.cacheMu.Lock()
	defer n.cacheMu.Unlock()
	n.cache.Add(normalizedTitle, m)
}

// resolve runs the three-tier resolution algorithm of spec.md sec 4.3
// against an already-normalized title.
func (n *Normalizer) resolve(normalizedTitle string) (model.CanonicalModel, model.MatchType, float64, string) {
	if canon, ok := n.reg.ResolveAlias(normalizedTitle); ok {
		return canon, model.MatchExact, 1.0, "alias:" + normalizedTitle
	}

	for _, p := range n.reg.Patterns() {
		if p.Regexp.MatchString(normalizedTitle) {
			return p.Canonical, model.MatchRegex, p.Confidence, "regex:" + p.Name
		}
	}

	canon, score, ok := n.bestFuzzyMatch(normalizedTitle)
	if ok && score >= n.reg.FuzzyThreshold() {
		return canon, model.MatchFuzzy, score, fmt.Sprintf("fuzzy:'%s'->%s@%.2f", normalizedTitle, canon, score)
	}

	return model.UnknownCanonical, model.MatchNone, 0.0, "none"
}

// bestFuzzyMatch computes a token-set Levenshtein similarity ratio
// between the title and every known alias surface form, returning the
// best-scoring canonical. Ties are broken by higher msrp_usd, then by
// alphabetical canonical, per spec.md sec 4.3 example 2.
func (n *Normalizer) bestFuzzyMatch(normalizedTitle string) (model.CanonicalModel, float64, bool) {
	titleKey := tokenSetKey(normalizedTitle)

	type candidate struct {
		canonical model.CanonicalModel
		score     float64
	}
	var best []candidate
	bestScore := -1.0

	for _, entry := range n.reg.AliasEntries() {
		score := tokenSetSimilarity(titleKey, tokenSetKey(entry.Surface))
		switch {
		case score > bestScore:
			bestScore = score
			best = []candidate{{entry.Canonical, score}}
		case score == bestScore:
			best = append(best, candidate{entry.Canonical, score})
		}
	}

	if len(best) == 0 {
		return "", 0, false
	}
	if len(best) == 1 {
		return best[0].canonical, best[0].score, true
	}

	sort.Slice(best, func(i, j int) bool {
		si, _ := n.reg.Spec(best[i].canonical)
		sj, _ := n.reg.Spec(best[j].canonical)
		if si.MSRPUSD != sj.MSRPUSD {
			return si.MSRPUSD > sj.MSRPUSD
		}
		return best[i].canonical < best[j].canonical
	})
	return best[0].canonical, best[0].score, true
}

func normalizeTitle(title string) string {
	folded := norm.NFKC.String(title)
	return strings.ToLower(strings.TrimSpace(folded))
}

// tokenSetKey sorts a string's whitespace-separated tokens and rejoins
// them, so that word-order differences ("A6000 RTX" vs "RTX A6000")
// don't depress the edit-distance similarity score.
func tokenSetKey(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// tokenSetSimilarity is 1 - (edit distance / max(len_a, len_b)), the
// token-set Levenshtein ratio spec.md sec 4.3 calls for.
func tokenSetSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}
