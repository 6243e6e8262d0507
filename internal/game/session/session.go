// Package session tracks the combats open in this process. Each open combat
// owns its own store, scheduler, resolver and synchronizer, so combats never
// contend for each other's locks.
package session

import (
	"github.com/cory-johannsen/encounter/internal/game/combat"
	"github.com/cory-johannsen/encounter/internal/snapshot"
)

// Session is one open combat.
type Session struct {
	// ID is the combat ID.
	ID string
	// CampaignID is the campaign the combat was opened under.
	CampaignID string

	Store     *combat.Store
	Scheduler *combat.Scheduler
	Resolver  *combat.Resolver
	Sync      *snapshot.Synchronizer
	// AutoSaver saves the store while it is dirty. It is not started by the
	// Manager; callers run it as a service.
	AutoSaver *snapshot.AutoSaver
}
