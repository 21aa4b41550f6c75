package education

import (
	"testing"

	"github.com/medclinic/clinic/internal/platform/apperr"
)

func TestInputApply_TypeChange(t *testing.T) {
	content := "Wash your hands."
	m := &Material{
		Title:       "Hygiene",
		Description: "Basics",
		Category:    "Prevention",
		Type:        TypeArticle,
		Content:     &content,
	}

	// Switching to video without a URL leaves the payload incomplete.
	video := TypeVideo
	if err := (Input{Type: &video}).Apply(m); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	m.Type = TypeArticle
	url := "https://videos.example/hygiene"
	if err := (Input{Type: &video, VideoURL: &url}).Apply(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.VideoURL == nil || *m.VideoURL != url {
		t.Errorf("VideoURL = %v", m.VideoURL)
	}
}

func TestInputApply_BlankClearsOptional(t *testing.T) {
	content := "text"
	thumb := "https://img.example/t.png"
	m := &Material{
		Title: "T", Description: "D", Category: "C",
		Type: TypeArticle, Content: &content, ThumbnailURL: &thumb,
	}

	blank := "  "
	if err := (Input{ThumbnailURL: &blank}).Apply(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ThumbnailURL != nil {
		t.Errorf("expected thumbnail cleared, got %q", *m.ThumbnailURL)
	}

	if err := (Input{Content: &blank}).Apply(m); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("clearing article content should fail, got %v", err)
	}
}

func TestType_Valid(t *testing.T) {
	for _, typ := range []Type{TypeArticle, TypeVideo, TypePresentation} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("podcast").Valid() {
		t.Error("podcast should be invalid")
	}
}
