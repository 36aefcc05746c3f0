// Package identity generates human-memorable mnemonic tokens used for
// session ids and durable participant ids.
//
// Tokens have the shape AdjectiveColorAnimalNoun ("HappyBlueWhaleStorm"),
// each word chosen uniformly at random from a fixed list. With the current
// lists that is 40*30*40*40 = 1,920,000 combinations (~21 bits), enough to
// avoid casual collisions between people sharing links, not a security
// boundary.
package identity

import (
	"math/rand/v2"
	"regexp"
)

var adjectives = []string{
	"Happy", "Brave", "Clever", "Swift", "Mighty", "Gentle", "Wise", "Bold",
	"Bright", "Calm", "Eager", "Fancy", "Jolly", "Kind", "Lively", "Noble",
	"Quick", "Silent", "Witty", "Zesty", "Cosmic", "Electric", "Mystic", "Royal",
	"Sunny", "Lucky", "Dizzy", "Funky", "Jazzy", "Peppy", "Shiny", "Stellar",
	"Wild", "Cozy", "Daring", "Epic", "Fierce", "Golden", "Humble", "Icy",
}

var colors = []string{
	"Red", "Blue", "Green", "Yellow", "Purple", "Orange", "Pink", "Cyan",
	"Magenta", "Lime", "Teal", "Indigo", "Violet", "Crimson", "Azure", "Jade",
	"Amber", "Ruby", "Emerald", "Sapphire", "Gold", "Silver", "Bronze", "Pearl",
	"Coral", "Mint", "Rose", "Ivory", "Ebony", "Scarlet",
}

var animals = []string{
	"Whale", "Eagle", "Tiger", "Dragon", "Phoenix", "Wolf", "Bear", "Fox",
	"Hawk", "Lion", "Panda", "Otter", "Raven", "Shark", "Dolphin", "Falcon",
	"Jaguar", "Lynx", "Moose", "Owl", "Penguin", "Rabbit", "Seal", "Turtle",
	"Zebra", "Koala", "Lemur", "Gecko", "Crane", "Bison", "Cougar", "Ferret",
	"Gazelle", "Heron", "Iguana", "Marmot", "Mantis", "Narwhal", "Alpaca", "Badger",
}

var nouns = []string{
	"Storm", "Mountain", "River", "Forest", "Ocean", "Thunder", "Lightning", "Cloud",
	"Star", "Moon", "Sun", "Wind", "Rain", "Snow", "Fire", "Earth",
	"Sky", "Wave", "Reef", "Valley", "Peak", "Coast", "Dawn", "Dusk",
	"Meadow", "Brook", "Canyon", "Desert", "Glacier", "Island", "Lake", "Savanna",
	"Tundra", "Volcano", "Waterfall", "Aurora", "Comet", "Eclipse", "Horizon", "Nebula",
}

// tokenPattern matches the PascalCase-letters-only token shape.
// 4-60 characters, letters only, leading uppercase.
var tokenPattern = regexp.MustCompile(`^[A-Z][a-zA-Z]{3,59}$`)

// Generate returns a new mnemonic token.
func Generate() string {
	return adjectives[rand.IntN(len(adjectives))] +
		colors[rand.IntN(len(colors))] +
		animals[rand.IntN(len(animals))] +
		nouns[rand.IntN(len(nouns))]
}

// IsWellFormed reports whether s has the mnemonic token shape. It does not
// check that the words come from the generator's lists; client-chosen
// tokens only need to look like tokens.
func IsWellFormed(s string) bool {
	return tokenPattern.MatchString(s)
}

// Combinations returns the number of distinct tokens Generate can produce.
func Combinations() int {
	return len(adjectives) * len(colors) * len(animals) * len(nouns)
}
