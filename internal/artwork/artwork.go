// Package artwork maps card names to image URLs for the supported themes.
package artwork

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/deck"
)

type Theme string

const (
	ThemeClassic Theme = "classic"
	ThemeModern  Theme = "modern"

	DefaultTheme = ThemeClassic
)

var Themes = []Theme{ThemeClassic, ThemeModern}

var ErrUnknownTheme = apperr.New(apperr.KindValidation, "unknown-theme", "unknown artwork theme")
var ErrUnknownCard = apperr.New(apperr.KindNotFound, "card-not-found", "no card with that id")

type Resolver struct {
	base string
}

// NewResolver serves images under baseURL, e.g. https://cdn.example.com/cards.
func NewResolver(baseURL string) (*Resolver, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("artwork base url: %w", err)
	}
	if u.Scheme == "" && !strings.HasPrefix(baseURL, "/") {
		return nil, fmt.Errorf("artwork base url %q: must be absolute or start with /", baseURL)
	}
	return &Resolver{base: strings.TrimRight(baseURL, "/")}, nil
}

func ParseTheme(s string) (Theme, error) {
	if s == "" {
		return DefaultTheme, nil
	}
	t := Theme(strings.ToLower(s))
	if !slices.Contains(Themes, t) {
		return "", ErrUnknownTheme
	}
	return t, nil
}

func (r *Resolver) URL(cardName string, theme Theme) string {
	return r.base + "/" + string(theme) + "/" + Slug(cardName) + ".png"
}

type CardArt struct {
	deck.Card
	ImageURL string `json:"image_url"`
}

// Catalog returns the full deck in id order with image URLs for theme.
func (r *Resolver) Catalog(theme Theme) []CardArt {
	cards := deck.AllCards()
	out := make([]CardArt, len(cards))
	for i, c := range cards {
		out[i] = CardArt{Card: c, ImageURL: r.URL(c.Name, theme)}
	}
	return out
}

func (r *Resolver) Card(id int, theme Theme) (CardArt, error) {
	c, ok := deck.ByID(id)
	if !ok {
		return CardArt{}, ErrUnknownCard
	}
	return CardArt{Card: c, ImageURL: r.URL(c.Name, theme)}, nil
}

// Slug folds accents and punctuation: "El Corazón" -> "el-corazon".
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
