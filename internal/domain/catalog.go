package domain

// Genre is a catalog genre tag attached to a game.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// CatalogItem is a game as returned by the catalog provider.
type CatalogItem struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	BackgroundImage *string `json:"background_image,omitempty"`
	Genres          []Genre `json:"genres"`
}

func (c *CatalogItem) GenreNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Genres))
	for _, g := range c.Genres {
		names = append(names, g.Name)
	}
	return names
}

// CatalogPlatform is a platform entry with its game count.
type CatalogPlatform struct {
	ID         int    `json:"id"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	GamesCount int    `json:"games_count"`
}
