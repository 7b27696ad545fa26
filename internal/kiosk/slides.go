package kiosk

import (
	"strings"

	"github.com/inmapper/kiosk-server/internal/models"
)

// SlideInput is a slide as submitted by an operator. Order is ignored.
type SlideInput struct {
	ImageURL    string `json:"imageUrl"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Order       int    `json:"order,omitempty"`
}

// NormalizeSlides drops entries without an image and ranks the survivors
// 0..n-1 in submission order.
func NormalizeSlides(raw []SlideInput) models.Slides {
	slides := make(models.Slides, 0, len(raw))
	for _, in := range raw {
		url := strings.TrimSpace(in.ImageURL)
		if url == "" {
			continue
		}
		slides = append(slides, models.Slide{
			ImageURL:    url,
			Title:       in.Title,
			Description: in.Description,
			Link:        in.Link,
			Order:       len(slides),
			IsActive:    true,
		})
	}
	return slides
}
