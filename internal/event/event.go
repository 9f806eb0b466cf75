// Package event generates synthetic analytics events for the ingestion endpoint.
//
// A [Generator] builds its identifier pools once at construction and only reads
// them afterwards, so [Generator.Generate] may be called from many goroutines.
package event

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Event is the JSON payload accepted by the gateway's /event endpoint.
type Event struct {
	AppID       string         `json:"appId"`
	AnonymousID string         `json:"anonymousId"`
	SessionID   string         `json:"sessionId"`
	UserID      string         `json:"userId"`
	Timestamp   time.Time      `json:"timestamp"`
	EventType   string         `json:"eventType"`
	Source      string         `json:"source"`
	Metadata    map[string]any `json:"metadata"`
}

// Producer supplies events to the dispatch engine.
// Implementations must be safe for concurrent use.
type Producer interface {
	Generate() Event
}

const (
	userPoolSize    = 100
	sessionPoolSize = 500
)

var (
	eventTypes = []string{
		"page_view", "button_click", "form_submit", "purchase",
		"signup", "login", "logout", "search", "add_to_cart", "checkout",
	}
	sources   = []string{"web", "mobile", "api", "analytics"}
	browsers  = []string{"Chrome", "Firefox", "Safari", "Edge", "Opera"}
	osList    = []string{"Windows", "macOS", "Linux", "iOS", "Android"}
	devices   = []string{"Desktop", "Mobile", "Tablet"}
	locales   = []string{"en-US", "en-GB", "fr-FR", "de-DE", "es-ES", "ja-JP", "zh-CN"}
	timezones = []string{"UTC", "America/New_York", "Europe/London", "Asia/Tokyo", "Australia/Sydney"}
	pages     = []string{"home", "products", "about", "contact"}
	referrers = []string{"https://google.com", "https://facebook.com", "direct", "https://twitter.com", "email"}
	screens   = []string{"1920x1080", "1366x768", "1440x900", "375x667"}
	viewports = []string{"1200x800", "375x667", "768x1024"}
	networks  = []string{"wifi", "cellular", "ethernet"}
	queries   = []string{"analytics", "dashboard", "reports", "data"}
	buttons   = []string{"submit", "cancel", "save", "delete"}
	forms     = []string{"contact", "signup", "login", "checkout"}
)

// Generator produces realistic events.
type Generator struct {
	appID      string
	randomApps bool
	users      []string
	sessions   []string
	now        func() time.Time
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator creates a generator. When randomApps is true each event picks one of
// the known application IDs; otherwise every event carries appID.
func NewGenerator(appID string, randomApps bool, opts ...Option) (*Generator, error) {
	if !randomApps && appID == "" {
		return nil, fmt.Errorf("app id is required when random app selection is disabled")
	}
	g := &Generator{
		appID:      appID,
		randomApps: randomApps,
		users:      newIDPool(userPoolSize),
		sessions:   newIDPool(sessionPoolSize),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func newIDPool(size int) []string {
	pool := make([]string, size)
	for i := range pool {
		pool[i] = uuid.NewString()
	}
	return pool
}

// Generate returns a new event.
func (g *Generator) Generate() Event {
	appID := g.appID
	if g.randomApps {
		appID = RandomAppID()
	}
	return Event{
		AppID:       appID,
		AnonymousID: uuid.NewString(),
		SessionID:   pick(g.sessions),
		UserID:      pick(g.users),
		Timestamp:   g.now().UTC(),
		EventType:   pick(eventTypes),
		Source:      pick(sources),
		Metadata:    generateMetadata(),
	}
}

func generateMetadata() map[string]any {
	md := map[string]any{
		"page_url":          "https://example.com/" + pick(pages),
		"referrer":          pick(referrers),
		"user_agent":        fmt.Sprintf("Mozilla/5.0 (%s) %s", pick(osList), pick(browsers)),
		"screen_resolution": pick(screens),
		"viewport_size":     pick(viewports),
		"connection_type":   pick(networks),
		"device_type":       pick(devices),
		"browser":           pick(browsers),
		"os":                pick(osList),
		"locale":            pick(locales),
		"timezone":          pick(timezones),
	}

	// One of five event-specific blocks; the last adds nothing.
	switch rand.IntN(5) {
	case 0:
		md["product_id"] = uuid.NewString()
		md["price"] = math.Round((10+rand.Float64()*990)*100) / 100
	case 1:
		md["search_query"] = pick(queries)
	case 2:
		md["button_name"] = pick(buttons)
	case 3:
		md["form_name"] = pick(forms)
	}
	return md
}

func pick(values []string) string {
	return values[rand.IntN(len(values))]
}
