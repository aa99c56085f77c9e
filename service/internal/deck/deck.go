// Package deck loads the seed catalog shipped with the service.
package deck

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jason-s-yu/badluck/service/internal/models"
)

//go:embed cards.yaml
var defaultCatalog []byte

type file struct {
	Theme string  `yaml:"theme"`
	Cards []entry `yaml:"cards"`
}

type entry struct {
	Name         string  `yaml:"name"`
	BadLuckIndex float64 `yaml:"badLuckIndex"`
	Theme        string  `yaml:"theme"`
}

// Default returns the embedded catalog.
func Default() ([]models.Card, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a catalog file. Cards get their image URL from the slug of
// their name; a card without its own theme inherits the file theme.
func Parse(data []byte) ([]models.Card, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	cards := make([]models.Card, 0, len(f.Cards))
	for i, e := range f.Cards {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("card %d: empty name", i)
		}
		theme := e.Theme
		if theme == "" {
			theme = f.Theme
		}
		cards = append(cards, models.Card{
			Name:         name,
			ImageURL:     ImageURL(name),
			BadLuckIndex: e.BadLuckIndex,
			Theme:        theme,
		})
	}
	if err := Validate(cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// Validate rejects a catalog in which two cards share a BadLuckIndex or a
// name. Ranking has no answer for ties, and reseeding matches cards by name.
func Validate(cards []models.Card) error {
	seen := make(map[float64]string, len(cards))
	names := make(map[string]bool, len(cards))
	for _, c := range cards {
		if prev, dup := seen[c.BadLuckIndex]; dup {
			return fmt.Errorf("duplicate badLuckIndex %v: %q and %q", c.BadLuckIndex, prev, c.Name)
		}
		if names[c.Name] {
			return fmt.Errorf("duplicate card name %q", c.Name)
		}
		seen[c.BadLuckIndex] = c.Name
		names[c.Name] = true
	}
	return nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name, drops apostrophes and joins the remaining words
// with underscores.
func Slug(name string) string {
	s := strings.ToLower(name)
	s = strings.NewReplacer("’", "", "'", "").Replace(s)
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// ImageURL is where the client finds the card picture.
func ImageURL(name string) string {
	return "/images/cards/" + Slug(name) + ".png"
}
