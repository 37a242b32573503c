package hostapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned by services not wired into this process.
var ErrUnavailable = errors.New("service unavailable")

// ErrNotFound is returned when a verse reference does not resolve.
var ErrNotFound = errors.New("verse not found")

// Verse is one verse of one translation.
type Verse struct {
	Book        string  `json:"book"`
	Chapter     int     `json:"chapter"`
	Number      int     `json:"verse"`
	Text        string  `json:"text"`
	Translation string  `json:"translation"`
	Score       float64 `json:"score,omitempty"`
}

// Reference returns the human form, e.g. "John 3:16".
func (v Verse) Reference() string {
	return fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.Number)
}

// Verses looks up verse text.
type Verses interface {
	FindVerse(ref, translation string) (Verse, error)
	VerseText(ref, translation string) (string, error)
	SearchVerses(query, translation string, limit int) ([]Verse, error)
}

// Favorites stores favorite verse references grouped into collections.
type Favorites interface {
	AddFavorite(collection, ref string) error
	RemoveFavorite(collection, ref string) error
	Favorites(collection string) []string
	Collections() []string
}

// Event is one message on the application event bus.
type Event struct {
	Type   string
	Source string
	Data   map[string]string
	Time   time.Time
}

// Handler receives events.
type Handler func(Event)

// Events is the application event bus.
type Events interface {
	Publish(eventType string, data map[string]string)
	Subscribe(eventType string, h Handler) string
	Unsubscribe(id string) bool
}

// Facade bundles the host services handed to plugins.
type Facade struct {
	Verses    Verses
	Favorites Favorites
	Events    Events
	Log       *logrus.Logger
}

// NewFacade returns a facade with unavailable verses, in-memory favorites
// and a fresh bus.
func NewFacade(log *logrus.Logger) *Facade {
	if log == nil {
		log = logrus.New()
	}
	return &Facade{
		Verses:    Unavailable{},
		Favorites: NewMemoryFavorites(),
		Events:    NewBus(log),
		Log:       log,
	}
}

// Unavailable is a Verses that has no verse store behind it.
type Unavailable struct{}

func (Unavailable) FindVerse(string, string) (Verse, error)  { return Verse{}, ErrUnavailable }
func (Unavailable) VerseText(string, string) (string, error) { return "", ErrUnavailable }
func (Unavailable) SearchVerses(string, string, int) ([]Verse, error) {
	return nil, ErrUnavailable
}
