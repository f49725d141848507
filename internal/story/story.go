// Package story turns a snapshot of trips into a multi-chapter narrative.
//
// Generation is a pure function of its input except for phrase selection,
// which goes through a Picker. Chapter count, order, day numbers, titles,
// locations, dates, images and the total day count are deterministic.
package story

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pkordes/triptales/internal/domain"
)

// shortNoteLength is the rune count below which a note gets a closing flourish.
const shortNoteLength = 50

// narrativeOpening matches notes that already start like a story. Opening
// words must be whole words, so "Iceland was cold" still gets a starter
// where a bare prefix match on "i" would leave it alone.
var narrativeOpening = regexp.MustCompile(`^(the|it|we|i|this|that|here|there)\b`)

// Picker chooses one index out of n options, 0 <= Pick(n) < n.
type Picker interface {
	Pick(n int) int
}

// RandomPicker picks uniformly at random.
type RandomPicker struct{}

func (RandomPicker) Pick(n int) int { return rand.IntN(n) }

// Generator builds stories with a fixed Picker.
type Generator struct {
	pick Picker
}

// NewGenerator returns a Generator using p. A nil p means RandomPicker.
func NewGenerator(p Picker) *Generator {
	if p == nil {
		p = RandomPicker{}
	}
	return &Generator{pick: p}
}

// Generate builds a story with random phrase selection.
func Generate(trips []domain.Trip, title string) domain.Story {
	return NewGenerator(nil).Generate(trips, title)
}

// EmptyStory is returned for an empty trip set.
func EmptyStory() domain.Story {
	return domain.Story{
		Title:     "Empty Journey",
		Subtitle:  "No memories to tell",
		Chapters:  []domain.Chapter{},
		TotalDays: 0,
	}
}

// Generate builds a story from trips, oldest date first. A non-empty title
// overrides the generated one. The input slice is not modified.
func (g *Generator) Generate(trips []domain.Trip, title string) domain.Story {
	if len(trips) == 0 {
		return EmptyStory()
	}

	sorted := slices.Clone(trips)
	slices.SortStableFunc(sorted, func(a, b domain.Trip) int {
		return a.Date.Compare(b.Date)
	})

	locations := distinctLocations(sorted)
	if title == "" {
		lead := locations[0]
		if lead == "" {
			lead = domain.DefaultLocation
		}
		title = "Journey to " + lead
		if len(locations) > 1 {
			title += " & Beyond"
		}
	}

	start, end := sorted[0].Date, sorted[len(sorted)-1].Date
	days := int(math.Ceil(end.Sub(start).Hours()/24)) + 1
	totalDays := max(1, days)

	chapters := make([]domain.Chapter, len(sorted))
	for i, t := range sorted {
		pos := positionOf(i, len(sorted))
		chapters[i] = domain.Chapter{
			Day:      i + 1,
			Title:    t.Title,
			Content:  g.content(t, pos),
			Image:    t.Image,
			Location: t.Location,
			Date:     t.Date,
		}
	}

	return domain.Story{
		Title:     title,
		Subtitle:  fmt.Sprintf("A %d-day adventure through %s", totalDays, strings.Join(locations, ", ")),
		Chapters:  chapters,
		TotalDays: totalDays,
	}
}

// distinctLocations returns locations in order of first appearance.
func distinctLocations(trips []domain.Trip) []string {
	seen := make(map[string]bool, len(trips))
	var out []string
	for _, t := range trips {
		if !seen[t.Location] {
			seen[t.Location] = true
			out = append(out, t.Location)
		}
	}
	return out
}

func (g *Generator) content(t domain.Trip, pos position) string {
	if t.Note != "" {
		return g.enhanceNote(t.Note, pos)
	}
	return g.describe(t, pos)
}

// enhanceNote frames a user note with a starter and, for short notes, an ender.
func (g *Generator) enhanceNote(note string, pos position) string {
	out := note
	lower := strings.ToLower(note)
	if !narrativeOpening.MatchString(lower) {
		out = g.choose(starters[pos]) + " " + lower
	}
	if utf8.RuneCountInString(note) < shortNoteLength {
		out += " " + g.choose(enders[pos])
	}
	return out
}

// describe writes a chapter for a trip without a note from its theme.
func (g *Generator) describe(t domain.Trip, pos position) string {
	sentence := g.choose(themeSentences[themeOf(t)])
	switch pos {
	case first:
		return fmt.Sprintf("The adventure began at %s. %s This was just the beginning of something special.", t.Location, sentence)
	case last:
		return fmt.Sprintf("The journey concluded at %s. %s A perfect ending to an unforgettable experience.", t.Location, sentence)
	default:
		return fmt.Sprintf("At %s, %s The adventure continued to unfold with each passing moment.", t.Location, sentence)
	}
}

func (g *Generator) choose(pool []string) string {
	return pool[g.pick.Pick(len(pool))]
}
