package neukoelln

import "sort"

// ScoreEntry is one scoreboard row.
type ScoreEntry struct {
	PlayerID string
	Score    int
}

// Scoreboard keeps per-player kill counters merged by maximum. Updates
// can arrive out of order or duplicated over the relay; keeping the max
// seen per id makes the displayed value monotone.
type Scoreboard struct {
	scores map[string]int
}

func NewScoreboard() *Scoreboard {
	return &Scoreboard{scores: make(map[string]int)}
}

// Apply merges an inbound score_update. Reports whether the displayed
// value changed.
func (s *Scoreboard) Apply(playerID string, score int) bool {
	if score <= s.scores[playerID] {
		return false
	}
	s.scores[playerID] = score
	return true
}

// Increment records a kill attributed to playerID and returns the new
// counter, the value to broadcast.
func (s *Scoreboard) Increment(playerID string) int {
	s.scores[playerID]++
	return s.scores[playerID]
}

func (s *Scoreboard) Score(playerID string) int {
	return s.scores[playerID]
}

// Entries returns the scoreboard sorted by score descending, then id.
func (s *Scoreboard) Entries() []ScoreEntry {
	entries := make([]ScoreEntry, 0, len(s.scores))
	for id, score := range s.scores {
		entries = append(entries, ScoreEntry{PlayerID: id, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	return entries
}
