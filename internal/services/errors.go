// Package services implements the daily draw engine: the weighted fortune
// draw and the group lottery with bounded rerolls.
//
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers. Translating
// them into chat replies or HTTP status codes is done by the caller.
package services

import "errors"

var (
	// ErrNoCandidates is returned by a lottery draw when the group has no
	// member other than the initiator.
	ErrNoCandidates = errors.New("no lottery candidates")

	// ErrNoRecord is returned by a reroll when the initiator has not drawn
	// today.
	ErrNoRecord = errors.New("no lottery record found")

	// ErrNoWeights is returned when the fortune table is empty or its weights
	// do not sum to a positive total.
	ErrNoWeights = errors.New("fortune weight table is empty")
)
