package hostapi

import (
	"sort"
	"strings"
	"sync"
)

// VerseSet is an in-memory Verses, keyed by translation and reference.
type VerseSet struct {
	mu     sync.RWMutex
	verses map[string]map[string]Verse
}

// NewVerseSet creates a set holding vs.
func NewVerseSet(vs ...Verse) *VerseSet {
	s := &VerseSet{verses: make(map[string]map[string]Verse)}
	for _, v := range vs {
		s.Add(v)
	}
	return s
}

// Add stores v, replacing any verse with the same reference.
func (s *VerseSet) Add(v Verse) {
	tr := strings.ToUpper(v.Translation)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verses[tr] == nil {
		s.verses[tr] = make(map[string]Verse)
	}
	s.verses[tr][normalizeRef(v.Reference())] = v
}

func normalizeRef(ref string) string {
	return strings.ToLower(strings.Join(strings.Fields(ref), " "))
}

// FindVerse resolves ref such as "John 3:16".
func (s *VerseSet) FindVerse(ref, translation string) (Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verses[strings.ToUpper(translation)][normalizeRef(ref)]
	if !ok {
		return Verse{}, ErrNotFound
	}
	return v, nil
}

// VerseText returns only the text of ref.
func (s *VerseSet) VerseText(ref, translation string) (string, error) {
	v, err := s.FindVerse(ref, translation)
	if err != nil {
		return "", err
	}
	return v.Text, nil
}

// SearchVerses returns verses whose text contains every query word,
// scored by the fraction of the text the query covers. A non-positive
// limit returns all matches.
func (s *VerseSet) SearchVerses(query, translation string, limit int) ([]Verse, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	var out []Verse
	for _, v := range s.verses[strings.ToUpper(translation)] {
		text := strings.ToLower(v.Text)
		matched := true
		for _, w := range words {
			if !strings.Contains(text, w) {
				matched = false
				break
			}
		}
		if matched {
			v.Score = float64(len(strings.Join(words, " "))) / float64(len(text))
			out = append(out, v)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Reference() < out[j].Reference()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
