package internal

import (
	"github.com/google/uuid"
)

// NewSessionID returns a random (version 4) UUID string. It carries 122
// random bits and never contains a key separator.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
