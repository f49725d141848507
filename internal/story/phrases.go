package story

import (
	"strings"

	"github.com/pkordes/triptales/internal/domain"
)

// position classifies a chapter by where it sits in the story.
type position int

const (
	first position = iota
	interior
	last
)

// positionOf puts a lone chapter in the first class.
func positionOf(i, n int) position {
	switch {
	case i == 0:
		return first
	case i == n-1:
		return last
	default:
		return interior
	}
}

var starters = map[position][]string{
	first:    {"The journey began with", "It all started when", "The adventure kicked off as"},
	interior: {"Then came the moment when", "The experience continued as", "Next up was"},
	last:     {"The journey concluded with", "Finally,", "The adventure ended as"},
}

var enders = map[position][]string{
	first:    {"Setting the tone for what was to come.", "A promising start to the adventure.", "The perfect beginning."},
	interior: {"Adding another layer to the experience.", "Each moment building on the last.", "The story continues to unfold."},
	last:     {"A fitting end to an incredible journey.", "The perfect conclusion.", "Memories to last a lifetime."},
}

type theme string

const (
	themeMountain theme = "mountain"
	themeBeach    theme = "beach"
	themeCity     theme = "city"
	themeCafe     theme = "cafe"
	themeTemple   theme = "temple"
	themeDefault  theme = "default"
)

var themeSentences = map[theme][]string{
	themeMountain: {"The peaks stood majestically against the sky.", "Mountain air filled the lungs with freshness.", "Heights that touched the clouds."},
	themeBeach:    {"Waves crashed gently on the shore.", "The ocean stretched endlessly into the horizon.", "Sand between toes and salt in the air."},
	themeCity:     {"Urban energy buzzed all around.", "City lights painted the night.", "Streets filled with life and stories."},
	themeCafe:     {"Warm aromas and cozy conversations.", "A perfect spot to pause and reflect.", "Simple pleasures in a busy world."},
	themeTemple:   {"Peace and serenity filled the space.", "Ancient wisdom whispered through the walls.", "A moment of spiritual connection."},
	themeDefault:  {"A moment worth remembering.", "Beauty found in unexpected places.", "Life's simple pleasures revealed."},
}

// themeRules are checked in order; the first match wins.
var themeRules = []struct {
	theme      theme
	onLocation bool
	keywords   []string
}{
	{themeMountain, true, []string{"mountain", "hill", "peak"}},
	{themeBeach, true, []string{"beach", "ocean", "sea"}},
	{themeCity, true, []string{"city", "town", "street"}},
	{themeCafe, false, []string{"cafe", "restaurant", "food"}},
	{themeTemple, false, []string{"temple", "church", "shrine"}},
}

// themeOf classifies a trip by keywords in its location, then its title.
func themeOf(t domain.Trip) theme {
	location := strings.ToLower(t.Location)
	title := strings.ToLower(t.Title)
	for _, r := range themeRules {
		text := title
		if r.onLocation {
			text = location
		}
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.theme
			}
		}
	}
	return themeDefault
}
