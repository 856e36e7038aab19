package models

import (
	"github.com/google/uuid"
)

// assignID fills a zero primary key before insert so rows carry an id
// regardless of the database's default expression support.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
