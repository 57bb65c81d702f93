// Package id generates external identifiers for records exposed outside
// their internal auto-increment primary key.
package id

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 21

const PrefixAttempt = "att"

func New(prefix string) string {
	id, err := nanoid.New(DefaultLength)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

// NewAttempt generates an external ID for an AuthAttempt row.
func NewAttempt() string { return New(PrefixAttempt) }
