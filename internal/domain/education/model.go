package education

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
)

type Type string

const (
	TypeArticle      Type = "article"
	TypeVideo        Type = "video"
	TypePresentation Type = "presentation"
)

func (t Type) Valid() bool {
	switch t {
	case TypeArticle, TypeVideo, TypePresentation:
		return true
	}
	return false
}

// Material is an item of the patient education library.
type Material struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Type         Type      `json:"type"`
	Content      *string   `json:"content,omitempty"`
	FileURL      *string   `json:"file_url,omitempty"`
	VideoURL     *string   `json:"video_url,omitempty"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	Category     string    `json:"category"`
	AuthorID     uuid.UUID `json:"author_id"`
	IsPublished  bool      `json:"is_published"`
	PublishDate  time.Time `json:"publish_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Input is the write payload; nil fields are left unchanged on update.
type Input struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Type         *Type      `json:"type"`
	Content      *string    `json:"content"`
	FileURL      *string    `json:"file_url"`
	VideoURL     *string    `json:"video_url"`
	ThumbnailURL *string    `json:"thumbnail_url"`
	Category     *string    `json:"category"`
	IsPublished  *bool      `json:"is_published"`
	PublishDate  *time.Time `json:"publish_date"`
}

func setOptional(dst **string, src *string) {
	if src == nil {
		return
	}
	if v := strings.TrimSpace(*src); v != "" {
		*dst = &v
	} else {
		*dst = nil
	}
}

func (in Input) Apply(m *Material) error {
	if in.Title != nil {
		m.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.Type != nil {
		m.Type = *in.Type
	}
	if in.Category != nil {
		m.Category = strings.TrimSpace(*in.Category)
	}
	setOptional(&m.Content, in.Content)
	setOptional(&m.FileURL, in.FileURL)
	setOptional(&m.VideoURL, in.VideoURL)
	setOptional(&m.ThumbnailURL, in.ThumbnailURL)
	if in.IsPublished != nil {
		m.IsPublished = *in.IsPublished
	}
	if in.PublishDate != nil {
		m.PublishDate = *in.PublishDate
	}
	return m.validate()
}

// validate enforces the common fields plus the payload each type needs.
func (m *Material) validate() error {
	switch {
	case m.Title == "":
		return apperr.Validation("title is required")
	case m.Description == "":
		return apperr.Validation("description is required")
	case m.Category == "":
		return apperr.Validation("category is required")
	case !m.Type.Valid():
		return apperr.Validationf("type must be one of %q, %q, %q", TypeArticle, TypeVideo, TypePresentation)
	}
	switch m.Type {
	case TypeArticle:
		if m.Content == nil {
			return apperr.Validation("articles require content")
		}
	case TypeVideo:
		if m.VideoURL == nil {
			return apperr.Validation("videos require video_url")
		}
	case TypePresentation:
		if m.FileURL == nil {
			return apperr.Validation("presentations require file_url")
		}
	}
	return nil
}

// ListFilter narrows listings. PublishedOnly hides drafts and scheduled items.
type ListFilter struct {
	Type          Type
	Category      string
	PublishedOnly bool
	Now           time.Time
}
