// Package similarity - нормализованное расстояние Левенштейна и поиск ближайшего значения.
package similarity

import (
	"fmt"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Ratio возвращает сходство строк в диапазоне [0, 1]: 1 - distance/max(len).
// Две пустые строки считаются идентичными.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Match - результат поиска ближайшего кандидата
type Match struct {
	Value string
	Index int
	Score float64
}

// Matcher ищет ближайший кандидат из фиксированного набора.
// Результаты запоминаются в LRU-кэше, повторяющиеся значения не пересчитываются.
type Matcher struct {
	candidates []string
	cache      *lru.Cache[string, Match]
}

// DefaultCacheSize - размер кэша по умолчанию
const DefaultCacheSize = 4096

// NewMatcher создает Matcher для набора кандидатов
func NewMatcher(candidates []string, cacheSize int) (*Matcher, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, Match](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create match cache: %w", err)
	}
	return &Matcher{candidates: candidates, cache: cache}, nil
}

// Closest возвращает кандидата с максимальным сходством.
// При равенстве побеждает первый кандидат. ok=false если кандидатов нет.
func (m *Matcher) Closest(value string) (Match, bool) {
	if len(m.candidates) == 0 {
		return Match{}, false
	}
	if cached, ok := m.cache.Get(value); ok {
		return cached, true
	}

	best := Match{Index: -1, Score: -1}
	for i, c := range m.candidates {
		score := Ratio(value, c)
		if score > best.Score {
			best = Match{Value: c, Index: i, Score: score}
			if score == 1 {
				break
			}
		}
	}

	m.cache.Add(value, best)
	return best, true
}

// Above возвращает ближайшего кандидата, если его сходство строго больше threshold
func (m *Matcher) Above(value string, threshold float64) (Match, bool) {
	match, ok := m.Closest(value)
	if !ok || match.Score <= threshold {
		return Match{}, false
	}
	return match, true
}
