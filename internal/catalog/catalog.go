// Package catalog holds the static critter roster. The roster is
// configuration, not runtime state: every lookup table is built once at
// init and never mutated.
package catalog

import (
	"fmt"

	"github.com/critterdex/critterdex/internal/model"
)

// RegionVerdania is the catalog region whose completion drives the
// collection milestone.
const RegionVerdania = "verdania"

var (
	byID     map[int]model.Critter
	byTier   map[model.Tier][]model.Critter
	byRegion map[string][]int
)

func init() {
	byID = make(map[int]model.Critter, len(verdania))
	byTier = make(map[model.Tier][]model.Critter)
	byRegion = make(map[string][]int)
	for _, c := range verdania {
		if _, dup := byID[c.ID]; dup {
			panic(fmt.Sprintf("catalog: duplicate critter id %d", c.ID))
		}
		byID[c.ID] = c
		byTier[c.Tier] = append(byTier[c.Tier], c)
		byRegion[c.Region] = append(byRegion[c.Region], c.ID)
	}
}

// ByID returns the catalog entry for id.
func ByID(id int) (model.Critter, bool) {
	c, ok := byID[id]
	return c, ok
}

// ByTier returns all critters of a tier, in catalog order. The returned
// slice is shared; callers must not mutate it.
func ByTier(t model.Tier) []model.Critter {
	return byTier[t]
}

// All returns the full roster in catalog order.
func All() []model.Critter {
	return verdania
}

// RegionIDs returns the critter ids belonging to a region.
func RegionIDs(region string) []int {
	return byRegion[region]
}

// RegionSize returns how many critters a region holds. The collection
// milestone fires when a player (or a room dex) reaches this count of
// unique ids for the region.
func RegionSize(region string) int {
	return len(byRegion[region])
}

// GatedMission returns the mission gating a critter, or "" when the
// critter spawns freely.
func GatedMission(id int) string {
	c, ok := byID[id]
	if !ok {
		return ""
	}
	return c.Mission
}
