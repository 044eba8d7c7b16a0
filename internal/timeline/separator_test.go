package timeline

import (
	"testing"

	"github.com/matheus3301/chatline/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSeparatorPlace(t *testing.T) {
	tests := []struct {
		name     string
		anchor   domain.MessageID
		messages []domain.MessageID
		want     int
		wantOK   bool
	}{
		{"no anchor", 0, ids(3, 2, 1), 0, false},
		{"middle", 2, ids(3, 2, 1), 2, true},
		{"newest", 3, ids(3, 2, 1), 1, true},
		{"oldest appends", 1, ids(3, 2, 1), 3, true},
		{"anchor deleted", 4, ids(3, 2, 1), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSeparator()
			s.SetAnchor(tt.anchor)
			got, ok := s.Place(tt.messages)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeparatorDrop(t *testing.T) {
	s := NewSeparator()
	s.SetAnchor(2)
	s.Drop()
	_, ok := s.Place(ids(3, 2, 1))
	assert.False(t, ok)

	s.SetAnchor(2)
	_, ok = s.Place(ids(3, 2, 1))
	assert.True(t, ok, "a new session starts with a fresh anchor")
}
