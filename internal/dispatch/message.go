package dispatch

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Message is the authored notification sent to every active subscriber of a tenant.
type Message struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Icon   string `json:"icon,omitempty"`
	Image  string `json:"image,omitempty"`
	URL    string `json:"url,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Author string `json:"author,omitempty"`
}

// Validate checks that title and body are present. Every other field is
// passed through untouched; icon and image may be any string a client can load.
func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Title, validation.Required),
		validation.Field(&m.Body, validation.Required),
	)
}

func (m Message) normalized() Message {
	m.Title = strings.TrimSpace(m.Title)
	m.Body = strings.TrimSpace(m.Body)
	m.Icon = strings.TrimSpace(m.Icon)
	m.Image = strings.TrimSpace(m.Image)
	m.URL = strings.TrimSpace(m.URL)
	m.Tag = strings.TrimSpace(m.Tag)
	m.Author = strings.TrimSpace(m.Author)
	return m
}
