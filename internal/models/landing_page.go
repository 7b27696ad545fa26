package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Transition duration bounds and default, in milliseconds
const (
	MinTransitionDuration     = 1000
	MaxTransitionDuration     = 60000
	DefaultTransitionDuration = 8000
)

// TransitionEffect is the animation used between slides
type TransitionEffect string

const (
	TransitionFade  TransitionEffect = "fade"
	TransitionSlide TransitionEffect = "slide"
	TransitionZoom  TransitionEffect = "zoom"
)

// Valid reports whether e is a known effect
func (e TransitionEffect) Valid() bool {
	switch e {
	case TransitionFade, TransitionSlide, TransitionZoom:
		return true
	}
	return false
}

// Slide is one image in a landing page slideshow
type Slide struct {
	ImageURL    string `json:"imageUrl"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Order       int    `json:"order"`
	IsActive    bool   `json:"isActive"`
}

// Slides is stored as a single JSONB array
type Slides []Slide

// Value implements driver.Valuer
func (s Slides) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *Slides) Scan(value interface{}) error {
	*s = Slides{}
	return scanJSON(value, s)
}

// Styling holds presentation settings for the kiosk renderer
type Styling struct {
	BackgroundColor string  `json:"backgroundColor"`
	OverlayOpacity  float64 `json:"overlayOpacity"`
}

// DefaultStyling is applied to new landing pages
var DefaultStyling = Styling{BackgroundColor: "#000000"}

// Value implements driver.Valuer
func (s Styling) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *Styling) Scan(value interface{}) error {
	*s = Styling{}
	return scanJSON(value, s)
}

// LandingPage is the content assigned to one or more kiosks
type LandingPage struct {
	BaseModel

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	// A device id appears in at most one page's DeviceIDs.
	DeviceIDs []string `json:"deviceIds" db:"device_ids"`
	Slides    Slides   `json:"slides" db:"slides"`

	TransitionDuration int              `json:"transitionDuration" db:"transition_duration"`
	TransitionEffect   TransitionEffect `json:"transitionEffect" db:"transition_effect"`
	Styling            Styling          `json:"styling" db:"styling"`
	Tags               []string         `json:"tags" db:"tags"`

	IsDefault bool `json:"isDefault" db:"is_default"`
	IsActive  bool `json:"isActive" db:"is_active"`
}

// DeviceCount is the number of assigned devices
func (p *LandingPage) DeviceCount() int {
	return len(p.DeviceIDs)
}

// SlideCount is the number of active slides
func (p *LandingPage) SlideCount() int {
	n := 0
	for _, s := range p.Slides {
		if s.IsActive {
			n++
		}
	}
	return n
}

// HasDevice reports whether deviceID is assigned to this page
func (p *LandingPage) HasDevice(deviceID string) bool {
	for _, id := range p.DeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// MarshalJSON adds the derived counters to the stored fields.
func (p LandingPage) MarshalJSON() ([]byte, error) {
	type plain LandingPage
	deviceIDs := p.DeviceIDs
	if deviceIDs == nil {
		deviceIDs = []string{}
	}
	slides := p.Slides
	if slides == nil {
		slides = Slides{}
	}
	out := struct {
		plain
		DeviceIDs   []string `json:"deviceIds"`
		Slides      Slides   `json:"slides"`
		DeviceCount int      `json:"deviceCount"`
		SlideCount  int      `json:"slideCount"`
	}{
		plain:       plain(p),
		DeviceIDs:   deviceIDs,
		Slides:      slides,
		DeviceCount: p.DeviceCount(),
		SlideCount:  p.SlideCount(),
	}
	return json.Marshal(out)
}

// Clone returns a deep copy safe to hand across store boundaries.
func (p *LandingPage) Clone() *LandingPage {
	c := *p
	if p.DeviceIDs != nil {
		c.DeviceIDs = append([]string(nil), p.DeviceIDs...)
	}
	if p.Slides != nil {
		c.Slides = append(Slides(nil), p.Slides...)
	}
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	return &c
}
