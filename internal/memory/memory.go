// ABOUTME: Collaborator interfaces and profile model for memory personalization
// ABOUTME: Profile storage and ranking live outside; this package only consumes them

package memory

import (
	"context"
	"time"
)

// Profile is an owner's long-term profile snapshot.
// UpdatedAt doubles as the freshness token: any profile change moves it,
// invalidating cached context computed against the old snapshot.
type Profile struct {
	UpdatedAt    time.Time
	Denomination string
	// Interests maps a theological topic to how often it has come up
	Interests map[string]int
	// Concerns are recent pastoral concerns, most recent first
	Concerns []string
	// JourneyNotes are recent faith-journey notes, most recent first
	JourneyNotes []string
}

// FreshnessToken renders the profile-change marker used for cache validation
func (p *Profile) FreshnessToken() string {
	if p == nil {
		return ""
	}
	return p.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// ProfileSource fetches an owner's profile.
// A (nil, nil) return means "no prior context" and is not an error.
type ProfileSource interface {
	Profile(ctx context.Context, ownerID string) (*Profile, error)
}

// SearchHit is one semantic recall result
type SearchHit struct {
	Content string
	Score   float64
}

// Searcher performs semantic search over an owner's stored memory items
type Searcher interface {
	Search(ctx context.Context, ownerID, query string, k int) ([]SearchHit, error)
}

// Updater ingests a completed turn's transcript into long-term memory.
// It runs as a detached background task; errors are logged-only by contract.
type Updater interface {
	Update(ctx context.Context, ownerID, transcript string) error
}

// NopProfileSource is used when no profile backend is configured
type NopProfileSource struct{}

// Profile always reports "no prior context"
func (NopProfileSource) Profile(context.Context, string) (*Profile, error) {
	return nil, nil
}
