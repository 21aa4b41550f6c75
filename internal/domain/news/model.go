package news

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medclinic/clinic/internal/platform/apperr"
)

type Type string

const (
	TypeNews      Type = "news"
	TypePromotion Type = "promotion"
)

func (t Type) Valid() bool { return t == TypeNews || t == TypePromotion }

type Item struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	ImageURL    *string    `json:"image_url,omitempty"`
	Type        Type       `json:"type"`
	PublishDate time.Time  `json:"publish_date"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	IsActive    bool       `json:"is_active"`
	AuthorID    uuid.UUID  `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// VisibleAt reports whether the item is shown to the public at now.
func (it *Item) VisibleAt(now time.Time) bool {
	if !it.IsActive || it.PublishDate.After(now) {
		return false
	}
	return it.ExpiryDate == nil || it.ExpiryDate.After(now)
}

// Input is the write payload; nil fields are left unchanged on update.
type Input struct {
	Title       *string    `json:"title"`
	Content     *string    `json:"content"`
	ImageURL    *string    `json:"image_url"`
	Type        *Type      `json:"type"`
	PublishDate *time.Time `json:"publish_date"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	IsActive    *bool      `json:"is_active"`
}

func (in Input) Apply(it *Item) error {
	if in.Title != nil {
		it.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		it.Content = strings.TrimSpace(*in.Content)
	}
	if in.ImageURL != nil {
		if v := strings.TrimSpace(*in.ImageURL); v != "" {
			it.ImageURL = &v
		} else {
			it.ImageURL = nil
		}
	}
	if in.Type != nil {
		it.Type = *in.Type
	}
	if in.PublishDate != nil {
		it.PublishDate = *in.PublishDate
	}
	if in.ExpiryDate != nil {
		exp := *in.ExpiryDate
		it.ExpiryDate = &exp
	}
	if in.IsActive != nil {
		it.IsActive = *in.IsActive
	}

	switch {
	case it.Title == "":
		return apperr.Validation("title is required")
	case it.Content == "":
		return apperr.Validation("content is required")
	case !it.Type.Valid():
		return apperr.Validationf("type must be %q or %q", TypeNews, TypePromotion)
	case it.ExpiryDate != nil && !it.ExpiryDate.After(it.PublishDate):
		return apperr.Validation("expiry_date must be after publish_date")
	}
	return nil
}

// ListFilter narrows listings. VisibleAt, when set, keeps only items the
// public can see at that instant.
type ListFilter struct {
	Type      Type
	VisibleAt *time.Time
}
