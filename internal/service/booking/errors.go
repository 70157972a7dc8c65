package booking

import "errors"

var (
	// ErrSlotNotFound covers every validation failure on a requested slot.
	// Callers cannot distinguish "never existed" from "not bookable", so an
	// attacker probing the public surface learns nothing either.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotAlreadyTaken marks a slot that was valid but lost the race.
	ErrSlotAlreadyTaken = errors.New("slot already taken")

	// ErrInvalidLink marks a signed public link that failed verification.
	ErrInvalidLink = errors.New("invalid link")
)
