package catalog

import "github.com/critterdex/critterdex/internal/model"

// The Verdania roster. Tier C is a line's first stage, B the middle stage,
// A the final or special stage, S the legendaries. Gated legendaries carry
// the mission a room must complete before they spawn wild.
var verdania = []model.Critter{
	{ID: 1, Name: "Sproutle", Tier: model.TierC, Region: RegionVerdania},
	{ID: 2, Name: "Thornbud", Tier: model.TierB, Region: RegionVerdania},
	{ID: 3, Name: "Bramblux", Tier: model.TierA, Region: RegionVerdania},
	{ID: 4, Name: "Cindercub", Tier: model.TierC, Region: RegionVerdania},
	{ID: 5, Name: "Pyrelynx", Tier: model.TierB, Region: RegionVerdania},
	{ID: 6, Name: "Infernyx", Tier: model.TierA, Region: RegionVerdania},
	{ID: 7, Name: "Dribblet", Tier: model.TierC, Region: RegionVerdania},
	{ID: 8, Name: "Torrentle", Tier: model.TierB, Region: RegionVerdania},
	{ID: 9, Name: "Maelstrom", Tier: model.TierA, Region: RegionVerdania},
	{ID: 10, Name: "Puffit", Tier: model.TierC, Region: RegionVerdania},
	{ID: 11, Name: "Cumulon", Tier: model.TierB, Region: RegionVerdania},
	{ID: 12, Name: "Nimbusking", Tier: model.TierA, Region: RegionVerdania},
	{ID: 13, Name: "Grubbin", Tier: model.TierC, Region: RegionVerdania},
	{ID: 14, Name: "Cocoonda", Tier: model.TierB, Region: RegionVerdania},
	{ID: 15, Name: "Mothrene", Tier: model.TierA, Region: RegionVerdania},
	{ID: 16, Name: "Pebblit", Tier: model.TierC, Region: RegionVerdania},
	{ID: 17, Name: "Bouldern", Tier: model.TierB, Region: RegionVerdania},
	{ID: 18, Name: "Cragolith", Tier: model.TierA, Region: RegionVerdania},
	{ID: 19, Name: "Sparklet", Tier: model.TierC, Region: RegionVerdania},
	{ID: 20, Name: "Voltaic", Tier: model.TierB, Region: RegionVerdania},
	{ID: 21, Name: "Fulminar", Tier: model.TierA, Region: RegionVerdania},
	{ID: 22, Name: "Frostfin", Tier: model.TierC, Region: RegionVerdania},
	{ID: 23, Name: "Glacielle", Tier: model.TierB, Region: RegionVerdania},
	{ID: 24, Name: "Borealisk", Tier: model.TierA, Region: RegionVerdania},
	{ID: 25, Name: "Mossling", Tier: model.TierC, Region: RegionVerdania},
	{ID: 26, Name: "Fernwhisk", Tier: model.TierB, Region: RegionVerdania},
	{ID: 27, Name: "Sylvarch", Tier: model.TierA, Region: RegionVerdania},
	{ID: 28, Name: "Dustmote", Tier: model.TierC, Region: RegionVerdania},
	{ID: 29, Name: "Siltshade", Tier: model.TierB, Region: RegionVerdania},
	{ID: 30, Name: "Duneveil", Tier: model.TierA, Region: RegionVerdania},
	{ID: 31, Name: "Chirpip", Tier: model.TierC, Region: RegionVerdania},
	{ID: 32, Name: "Trillwing", Tier: model.TierB, Region: RegionVerdania},
	{ID: 33, Name: "Arioso", Tier: model.TierA, Region: RegionVerdania},
	{ID: 34, Name: "Murklet", Tier: model.TierC, Region: RegionVerdania},
	{ID: 35, Name: "Gloomurk", Tier: model.TierB, Region: RegionVerdania},
	{ID: 36, Name: "Umbrage", Tier: model.TierA, Region: RegionVerdania},
	{ID: 37, Name: "Tidbit", Tier: model.TierC, Region: RegionVerdania},
	{ID: 38, Name: "Nibblon", Tier: model.TierB, Region: RegionVerdania},
	{ID: 39, Name: "Gorgemaw", Tier: model.TierA, Region: RegionVerdania},
	{ID: 40, Name: "Wispette", Tier: model.TierC, Region: RegionVerdania},
	{ID: 41, Name: "Lanternox", Tier: model.TierB, Region: RegionVerdania},
	{ID: 42, Name: "Pharolyx", Tier: model.TierA, Region: RegionVerdania},
	{ID: 43, Name: "Burrowit", Tier: model.TierC, Region: RegionVerdania},
	{ID: 44, Name: "Tunnelisk", Tier: model.TierB, Region: RegionVerdania},
	{ID: 45, Name: "Terradon", Tier: model.TierA, Region: RegionVerdania},
	{ID: 46, Name: "Bubbla", Tier: model.TierC, Region: RegionVerdania},
	{ID: 47, Name: "Fizzern", Tier: model.TierB, Region: RegionVerdania},
	{ID: 48, Name: "Geyserex", Tier: model.TierA, Region: RegionVerdania},
	{ID: 49, Name: "Twigbit", Tier: model.TierC, Region: RegionVerdania},
	{ID: 50, Name: "Branchard", Tier: model.TierB, Region: RegionVerdania},
	{ID: 51, Name: "Oakenward", Tier: model.TierA, Region: RegionVerdania},
	{ID: 52, Name: "Slushpup", Tier: model.TierC, Region: RegionVerdania},
	{ID: 53, Name: "Sleetour", Tier: model.TierB, Region: RegionVerdania},
	{ID: 54, Name: "Avalanx", Tier: model.TierA, Region: RegionVerdania},
	{ID: 55, Name: "Glimmerig", Tier: model.TierC, Region: RegionVerdania},
	{ID: 56, Name: "Prismoth", Tier: model.TierB, Region: RegionVerdania},
	{ID: 57, Name: "Spectrarch", Tier: model.TierA, Region: RegionVerdania},
	{ID: 58, Name: "Squaggle", Tier: model.TierC, Region: RegionVerdania},
	{ID: 59, Name: "Inkoral", Tier: model.TierB, Region: RegionVerdania},
	{ID: 60, Name: "Abyssin", Tier: model.TierA, Region: RegionVerdania},
	{ID: 61, Name: "Hummbly", Tier: model.TierC, Region: RegionVerdania},
	{ID: 62, Name: "Buzzerk", Tier: model.TierB, Region: RegionVerdania},
	{ID: 63, Name: "Swarmonarch", Tier: model.TierA, Region: RegionVerdania},
	{ID: 64, Name: "Pipsqueak", Tier: model.TierC, Region: RegionVerdania},
	{ID: 65, Name: "Rattlerook", Tier: model.TierB, Region: RegionVerdania},
	{ID: 66, Name: "Diregnaw", Tier: model.TierA, Region: RegionVerdania},
	{ID: 67, Name: "Emberwing", Tier: model.TierS, Region: RegionVerdania, Mission: "mission_emberwing"},
	{ID: 68, Name: "Galestrike", Tier: model.TierS, Region: RegionVerdania, Mission: "mission_galestrike"},
	{ID: 69, Name: "Permafryst", Tier: model.TierS, Region: RegionVerdania, Mission: "mission_permafryst"},
	{ID: 70, Name: "Nullmind", Tier: model.TierS, Region: RegionVerdania, Mission: "mission_nullmind"},
	{ID: 71, Name: "Dreamweft", Tier: model.TierS, Region: RegionVerdania},
	{ID: 72, Name: "Chronovore", Tier: model.TierS, Region: RegionVerdania},
}
