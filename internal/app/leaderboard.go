package app

import (
	"sort"
	"sync"

	"github.com/soldier14/survey-runtime/internal/domain"
)

// placeholderName fills padded leaderboard rows.
const placeholderName = "---"

// Leaderboard maintains the bounded top-K of completed runs by score.
// Ties keep the earlier completion first, then fall back to display name;
// the sort is stable so reconciled history (read oldest-first) keeps its
// relative order even with equal timestamps.
type Leaderboard struct {
	mu              sync.Mutex
	limit           int
	showPlaceholder bool
	entries         []domain.LeaderboardEntry
}

func NewLeaderboard(settings domain.LeaderboardSettings) *Leaderboard {
	limit := settings.Limit
	if limit <= 0 {
		limit = 10
	}
	return &Leaderboard{limit: limit, showPlaceholder: settings.ShowPlaceholder}
}

// Seed replaces the retained set with reconciled history.
func (l *Leaderboard) Seed(entries []domain.LeaderboardEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries[:0], entries...)
	l.rankLocked()
}

// Record folds one new completion into the retained set.
func (l *Leaderboard) Record(entry domain.LeaderboardEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	l.rankLocked()
}

func (l *Leaderboard) rankLocked() {
	sort.SliceStable(l.entries, func(i, j int) bool {
		a, b := l.entries[i], l.entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CompletedAt.Equal(b.CompletedAt) {
			return a.CompletedAt.Before(b.CompletedAt)
		}
		return a.DisplayName < b.DisplayName
	})
	if len(l.entries) > l.limit {
		l.entries = l.entries[:l.limit]
	}
}

// Entries returns the displayable rows: the real top-K, padded with
// zero-score placeholders up to the limit when configured.
func (l *Leaderboard) Entries() []domain.LeaderboardEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]domain.LeaderboardEntry(nil), l.entries...)
	if l.showPlaceholder {
		for len(out) < l.limit {
			out = append(out, domain.LeaderboardEntry{DisplayName: placeholderName, Placeholder: true})
		}
	}
	return out
}
