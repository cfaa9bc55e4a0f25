package domain

import "github.com/jonboulle/clockwork"

// clock stamps snapshots with their build time. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock replaces the snapshot time source. Pass nil to restore the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
