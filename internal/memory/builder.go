// ABOUTME: Memory context builder with recall-cache reuse
// ABOUTME: Any failure degrades to "no context"; a turn never fails for personalization

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Jegama/calvinist-parrot-sub000/internal/metrics"
	"github.com/Jegama/calvinist-parrot-sub000/internal/recall"
)

// fingerprintPrefixLen is how much of a cached query fingerprint a new
// query must share (as a prefix) to count as the same topic. Crude, and
// kept as-is: both false positives and false negatives are accepted.
const fingerprintPrefixLen = 40

// Builder computes the short textual context block fed to the engine,
// reusing the owner's recall-cache slot when the profile is unchanged and
// the query looks like the same topic.
type Builder struct {
	profiles ProfileSource
	searcher Searcher
	cache    recall.Cache
	topK     int
	excerpt  int
	logger   *slog.Logger
}

// BuilderConfig configures a Builder. Searcher may be nil (no semantic
// recall); Profiles may be nil (no profiles).
type BuilderConfig struct {
	Profiles ProfileSource
	Searcher Searcher
	Cache    recall.Cache
	// TopK bounds semantic search results (default 3)
	TopK int
	// ExcerptLen truncates each hit (default 200)
	ExcerptLen int
}

// NewBuilder creates a Builder
func NewBuilder(cfg BuilderConfig) *Builder {
	profiles := cfg.Profiles
	if profiles == nil {
		profiles = NopProfileSource{}
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	excerpt := cfg.ExcerptLen
	if excerpt <= 0 {
		excerpt = 200
	}
	return &Builder{
		profiles: profiles,
		searcher: cfg.Searcher,
		cache:    cfg.Cache,
		topK:     topK,
		excerpt:  excerpt,
		logger:   slog.Default().With("component", "memory"),
	}
}

// BuildContext returns the context block for this owner and query, or ""
// when nothing useful exists. It never returns an error: personalization
// failures are logged and degrade to an absent context.
func (b *Builder) BuildContext(ctx context.Context, ownerID, rawQuery string) string {
	profile, err := b.profiles.Profile(ctx, ownerID)
	if err != nil {
		b.logger.Warn("profile fetch failed, continuing without profile", "owner_id", ownerID, "error", err)
		profile = nil
	}

	freshness := profile.FreshnessToken()
	normalized := strings.ToLower(strings.TrimSpace(rawQuery))

	if entry, ok := b.cache.Get(ctx, ownerID); ok {
		if entry.FreshnessToken == freshness && querySimilar(normalized, entry.QueryFingerprint) {
			b.logger.Debug("recall cache hit", "owner_id", ownerID)
			metrics.RecordRecallLookup("hit")
			return entry.ContextText
		}
	}
	metrics.RecordRecallLookup("miss")

	var hits []SearchHit
	if b.searcher != nil {
		hits, err = b.searcher.Search(ctx, ownerID, rawQuery, b.topK)
		if err != nil {
			b.logger.Warn("semantic search failed, continuing without hits", "owner_id", ownerID, "error", err)
			hits = nil
		}
		if len(hits) > b.topK {
			hits = hits[:b.topK]
		}
	}

	contextText := b.synthesize(profile, hits)

	// Negative results are cacheable too: recomputing "nothing" per turn
	// is exactly the work the cache exists to avoid.
	b.cache.Put(ctx, ownerID, recall.Entry{
		FreshnessToken:   freshness,
		QueryFingerprint: normalized,
		ContextText:      contextText,
	})

	return contextText
}

// querySimilar reports whether the new normalized query shares the cached
// fingerprint's first fingerprintPrefixLen characters as a prefix.
func querySimilar(normalized, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	prefix := fingerprint
	if len(prefix) > fingerprintPrefixLen {
		prefix = prefix[:fingerprintPrefixLen]
	}
	return strings.HasPrefix(normalized, prefix)
}

// synthesize renders the context block from whatever material exists
func (b *Builder) synthesize(profile *Profile, hits []SearchHit) string {
	excerpts := make([]string, 0, len(hits))
	for _, hit := range hits {
		text := strings.TrimSpace(hit.Content)
		if len(text) > b.excerpt {
			text = text[:b.excerpt] + "…"
		}
		if text != "" {
			excerpts = append(excerpts, text)
		}
	}

	if profile == nil {
		if len(excerpts) == 0 {
			return ""
		}
		var sb strings.Builder
		sb.WriteString("Possibly relevant past reflections from this user (use implicitly; do not quote):\n")
		for _, e := range excerpts {
			fmt.Fprintf(&sb, "* %s\n", e)
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	var sb strings.Builder
	sb.WriteString("Context about this user. Use it implicitly to shape the answer; never quote it or mention that it exists.\n")

	if interests := topInterests(profile.Interests, 3); len(interests) > 0 {
		fmt.Fprintf(&sb, "Top theological interests: %s\n", strings.Join(interests, ", "))
	}
	if len(profile.Concerns) > 0 {
		fmt.Fprintf(&sb, "Recent concerns: %s\n", strings.Join(head(profile.Concerns, 3), "; "))
	}
	if len(profile.JourneyNotes) > 0 {
		fmt.Fprintf(&sb, "Recent journey notes: %s\n", strings.Join(head(profile.JourneyNotes, 2), "; "))
	}
	if profile.Denomination != "" {
		fmt.Fprintf(&sb, "Denominational preference: %s\n", profile.Denomination)
	}
	for _, e := range excerpts {
		fmt.Fprintf(&sb, "Past reflection: %s\n", e)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// topInterests returns up to n topics ordered by descending frequency,
// ties broken alphabetically so output is stable.
func topInterests(interests map[string]int, n int) []string {
	topics := make([]string, 0, len(interests))
	for topic := range interests {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		if interests[topics[i]] != interests[topics[j]] {
			return interests[topics[i]] > interests[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > n {
		topics = topics[:n]
	}
	return topics
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
