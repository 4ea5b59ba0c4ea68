package editor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"writer-backend/internal/content"
)

const (
	newSectionTitle   = "New Section"
	newSectionContent = "Add content description here"
)

// StructureSession holds an outline being edited together with the item
// revision it was opened at.
type StructureSession struct {
	ID        string                   `json:"id"`
	ItemID    string                   `json:"itemId"`
	UserID    string                   `json:"userId"`
	Revision  int64                    `json:"revision"`
	Version   int64                    `json:"version"`
	Payload   content.StructurePayload `json:"payload"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

func (s *StructureSession) SetTitle(text string) {
	s.Payload.Title = text
}

// EditSection replaces the title or content of one section.
func (s *StructureSession) EditSection(id, field, value string) error {
	i := s.Payload.IndexOf(id)
	if i < 0 {
		return ErrSectionNotFound
	}
	switch field {
	case "title":
		s.Payload.Sections[i].Title = value
	case "content":
		s.Payload.Sections[i].Content = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	return nil
}

// AddSection appends a placeholder section and returns it.
func (s *StructureSession) AddSection() content.Section {
	sec := content.Section{
		ID:       uuid.NewString(),
		Title:    newSectionTitle,
		Content:  newSectionContent,
		Position: len(s.Payload.Sections),
	}
	s.Payload.Sections = append(s.Payload.Sections, sec)
	return sec
}

func (s *StructureSession) RemoveSection(id string) error {
	i := s.Payload.IndexOf(id)
	if i < 0 {
		return ErrSectionNotFound
	}
	s.Payload.Sections = append(s.Payload.Sections[:i], s.Payload.Sections[i+1:]...)
	s.renumber()
	return nil
}

// Reorder moves the section at from to index to. Out of range indices leave
// the outline untouched.
func (s *StructureSession) Reorder(from, to int) error {
	n := len(s.Payload.Sections)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: from=%d to=%d len=%d", ErrIndexOutOfRange, from, to, n)
	}
	if from == to {
		return nil
	}
	moved := s.Payload.Sections[from]
	sections := append(s.Payload.Sections[:from:from], s.Payload.Sections[from+1:]...)
	sections = append(sections[:to], append([]content.Section{moved}, sections[to:]...)...)
	s.Payload.Sections = sections
	s.renumber()
	return nil
}

// Approve returns the canonical outline, or validation errors when a
// section is missing a title or there are none.
func (s *StructureSession) Approve() (content.StructurePayload, error) {
	if err := s.Payload.CheckApprovable(); err != nil {
		return content.StructurePayload{}, err
	}
	out := s.Payload.Clone()
	out.Normalize()
	return out, nil
}

func (s *StructureSession) renumber() {
	for i := range s.Payload.Sections {
		s.Payload.Sections[i].Position = i
	}
}
