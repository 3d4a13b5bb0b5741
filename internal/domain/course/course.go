package course

import (
	"errors"

	"github.com/lumenlearn/backend/internal/id"
)

// Course groups related review cards for one subject.
type Course struct {
	ID   string
	Name string
}

// New creates a Course with a generated ID.
func New(name string) (*Course, error) {
	if name == "" {
		return nil, errors.New("course name is required")
	}
	return &Course{
		ID:   id.NewPrefixed("course"),
		Name: name,
	}, nil
}
