// Package weather classifies free-text weather conditions into the five
// dashboard categories by keyword.
package weather

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/alvdef/infoViz-8/internal/domain"
)

// Keywords lists the substrings that set each category flag. Matching is
// case-insensitive and categories are evaluated independently, so one
// condition can set several flags.
type Keywords struct {
	Rain  []string
	Snow  []string
	Fog   []string
	Clear []string
	Cloud []string
}

// BasicKeywords is used by the weather-bubble sample.
var BasicKeywords = Keywords{
	Rain:  []string{"rain", "storm", "shower", "thunder"},
	Snow:  []string{"snow", "sleet", "ice", "blizzard", "squalls", "pellets"},
	Fog:   []string{"fog", "mist", "haze"},
	Clear: []string{"clear", "fair"},
	Cloud: []string{"cloud", "overcast"},
}

// ExtendedKeywords covers the long tail of station conditions and is used by
// the dashboard sample.
var ExtendedKeywords = Keywords{
	Rain:  []string{"rain", "storm", "shower", "thunder", "drizzle", "t-storm", "hail"},
	Snow:  []string{"snow", "sleet", "ice", "blizzard", "squalls", "pellets", "wintry", "mix"},
	Fog:   []string{"fog", "mist", "haze", "smoke", "dust", "sand"},
	Clear: []string{"clear", "fair"},
	Cloud: []string{"cloud", "overcast"},
}

// Classifier matches conditions against a keyword set. It is not safe for
// concurrent use.
type Classifier struct {
	fold  cases.Caser
	rain  []string
	snow  []string
	fog   []string
	clear []string
	cloud []string
}

// NewClassifier folds the keyword set once up front.
func NewClassifier(kw Keywords) *Classifier {
	c := &Classifier{fold: cases.Fold()}
	c.rain = c.foldAll(kw.Rain)
	c.snow = c.foldAll(kw.Snow)
	c.fog = c.foldAll(kw.Fog)
	c.clear = c.foldAll(kw.Clear)
	c.cloud = c.foldAll(kw.Cloud)
	return c
}

func (c *Classifier) foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, c.fold.String(w))
		}
	}
	return out
}

// Classify returns the category flags for condition.
func (c *Classifier) Classify(condition string) domain.WeatherFlags {
	s := c.fold.String(condition)
	return domain.WeatherFlags{
		Rain:  containsAny(s, c.rain),
		Snow:  containsAny(s, c.snow),
		Fog:   containsAny(s, c.fog),
		Clear: containsAny(s, c.clear),
		Cloud: containsAny(s, c.cloud),
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
