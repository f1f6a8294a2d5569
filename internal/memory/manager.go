// Package memory keeps the narrative context bounded regardless of game
// length: an append-only event log with a sliding window over the most
// recent events plus lexical retrieval of relevant older ones.
package memory

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/models"
)

// Config holds the memory tunables. WindowSize is k, RecallCount is m.
type Config struct {
	WindowSize  int
	RecallCount int
	// MinSimilarity filters retrieval candidates; events scoring below it
	// are never recalled.
	MinSimilarity float64
	// TokenBudget caps the total token count of the returned window.
	// Recalled events are dropped lowest-score-first when over budget.
	// Zero disables the cap.
	TokenBudget int
}

// Manager owns the append-only MemoryEvent log and derives MemoryWindow
// views from it. Past events are never mutated.
type Manager struct {
	cfg     Config
	events  []models.MemoryEvent
	counter *ai.TokenCounter
	logger  *zap.Logger
}

// NewManager creates an empty memory manager.
func NewManager(cfg Config, counter *ai.TokenCounter, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		counter: counter,
		logger:  logger.Named("Memory"),
	}
}

// Append adds a finalized turn event to the log. Turn indices must be
// non-decreasing (a rejected action records an event for the same turn).
func (m *Manager) Append(ev models.MemoryEvent) error {
	if n := len(m.events); n > 0 && ev.TurnIndex < m.events[n-1].TurnIndex {
		return fmt.Errorf("out-of-order memory event: turn %d after turn %d",
			ev.TurnIndex, m.events[n-1].TurnIndex)
	}
	m.events = append(m.events, ev)
	return nil
}

// Len returns the number of logged events.
func (m *Manager) Len() int { return len(m.events) }

// Events returns a copy of the full log for snapshotting.
func (m *Manager) Events() []models.MemoryEvent {
	return append([]models.MemoryEvent(nil), m.events...)
}

// Restore replaces the log from a snapshot. Turn-boundary only.
func (m *Manager) Restore(events []models.MemoryEvent) {
	m.events = append([]models.MemoryEvent(nil), events...)
}

// Window builds the bounded context for the current turn: the last k events
// in chronological order plus up to m older events relevant to the input.
// When retrieval has nothing to offer (young game, degenerate scores) the
// window degrades to recent-only — that is a narrower context, not an
// error.
func (m *Manager) Window(currentInput string) models.MemoryWindow {
	var w models.MemoryWindow

	split := len(m.events) - m.cfg.WindowSize
	if split < 0 {
		split = 0
	}
	w.Recent = append([]models.MemoryEvent(nil), m.events[split:]...)

	older := m.events[:split]
	if len(older) == 0 || m.cfg.RecallCount <= 0 {
		return m.enforceBudget(w)
	}

	queryTerms := tokenize(currentInput)
	if len(queryTerms) == 0 {
		return m.enforceBudget(w)
	}

	scores := scoreEvents(older, queryTerms)

	// Highest score first; ties broken by recency (higher turn index wins).
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return older[scores[i].idx].TurnIndex > older[scores[j].idx].TurnIndex
	})

	for _, sc := range scores {
		if sc.score < m.cfg.MinSimilarity || len(w.Recalled) >= m.cfg.RecallCount {
			break
		}
		w.Recalled = append(w.Recalled, older[sc.idx])
	}

	if len(w.Recalled) > 0 {
		m.logger.Debug("Recalled older events", zap.Int("count", len(w.Recalled)))
	}

	return m.enforceBudget(w)
}

type scored struct {
	idx   int
	score float64
}

// scoreEvents computes an idf-weighted token-overlap cosine between the
// query and every candidate summary. Purely lexical: no embedding backend
// to reach, so retrieval can never be "unreachable", only empty.
func scoreEvents(events []models.MemoryEvent, queryTerms map[string]struct{}) []scored {
	// Document frequency over the candidate set.
	df := make(map[string]int)
	eventTerms := make([]map[string]struct{}, len(events))
	for i, ev := range events {
		terms := tokenize(ev.Summary)
		eventTerms[i] = terms
		for t := range terms {
			df[t]++
		}
	}

	n := float64(len(events))
	idf := func(term string) float64 {
		d, ok := df[term]
		if !ok {
			return 0
		}
		return math.Log(1 + n/float64(d))
	}

	maxIDF := math.Log(1 + n)

	out := make([]scored, 0, len(events))
	for i, terms := range eventTerms {
		if len(terms) == 0 {
			continue
		}
		var overlap float64
		for t := range queryTerms {
			if _, ok := terms[t]; ok {
				overlap += idf(t)
			}
		}
		if overlap == 0 {
			continue
		}
		norm := math.Sqrt(float64(len(queryTerms))*float64(len(terms))) * maxIDF
		out = append(out, scored{idx: i, score: overlap / norm})
	}
	return out
}

// enforceBudget trims recalled events (lowest score first) until the window
// fits the token budget. Recent events are never trimmed here: k bounds
// them by construction.
func (m *Manager) enforceBudget(w models.MemoryWindow) models.MemoryWindow {
	if m.cfg.TokenBudget <= 0 || len(w.Recalled) == 0 {
		return w
	}

	total := 0
	for _, ev := range w.Recent {
		total += m.counter.Count(ev.Summary)
	}
	for _, ev := range w.Recalled {
		total += m.counter.Count(ev.Summary)
	}

	for total > m.cfg.TokenBudget && len(w.Recalled) > 0 {
		last := len(w.Recalled) - 1 // lowest score: list is sorted descending
		total -= m.counter.Count(w.Recalled[last].Summary)
		m.logger.Debug("Dropping recalled event over token budget",
			zap.Int("turnIndex", w.Recalled[last].TurnIndex))
		w.Recalled = w.Recalled[:last]
	}
	return w
}

// tokenize lowercases, strips punctuation and drops short filler words.
func tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(word) <= 2 {
			continue
		}
		out[word] = struct{}{}
	}
	return out
}
