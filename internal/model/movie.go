package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Movie is a catalog entry cached from the external movie database.  It is
// inserted the first time a show references it and never updated after.
//
// Fields:
//  ID               – external catalog identifier (TMDB id as a string).
//  Title            – display title.
//  Overview         – synopsis.
//  PosterPath       – relative poster image path on the catalog CDN.
//  BackdropPath     – relative backdrop image path.
//  ReleaseDate      – release date as reported by the catalog (YYYY-MM-DD).
//  OriginalLanguage – ISO 639-1 code.
//  Tagline          – short promotional line.
//  Genres           – genre list.
//  Casts            – cast list, in billing order.
//  VoteAverage      – catalog rating.
//  Runtime          – length in minutes.
type Movie struct {
	ID               string    `db:"id" json:"_id"`
	Title            string    `db:"title" json:"title"`
	Overview         string    `db:"overview" json:"overview"`
	PosterPath       string    `db:"poster_path" json:"poster_path"`
	BackdropPath     string    `db:"backdrop_path" json:"backdrop_path"`
	ReleaseDate      string    `db:"release_date" json:"release_date"`
	OriginalLanguage string    `db:"original_language" json:"original_language"`
	Tagline          string    `db:"tagline" json:"tagline"`
	Genres           Genres    `db:"genres" json:"genres"`
	Casts            Casts     `db:"casts" json:"casts"`
	VoteAverage      float64   `db:"vote_average" json:"vote_average"`
	Runtime          int       `db:"runtime" json:"runtime"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Cast struct {
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path"`
}

// Genres and Casts are stored as JSON columns.
type Genres []Genre
type Casts []Cast

func (g Genres) Value() (driver.Value, error) { return jsonValue(g) }
func (g *Genres) Scan(src any) error        { return jsonScan(src, g) }
func (c Casts) Value() (driver.Value, error)  { return jsonValue(c) }
func (c *Casts) Scan(src any) error         { return jsonScan(src, c) }

func jsonValue[T any](v []T) (driver.Value, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src any, dst any) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	}
	return errors.New("unsupported JSON column type")
}
