// Package roomname makes up memorable room names for ad-hoc meetings.
package roomname

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var adjectives = []string{
	"amber", "brave", "calm", "cozy", "crisp", "dusty", "eager", "fuzzy", "gentle", "golden",
	"hazy", "jolly", "keen", "lively", "mellow", "misty", "nimble", "plucky", "quiet", "rapid",
	"rusty", "shiny", "silver", "sleepy", "snowy", "sunny", "swift", "tidy", "vivid", "witty",
}

var animals = []string{
	"badger", "beaver", "bison", "crane", "dolphin", "falcon", "ferret", "gecko", "heron", "ibis",
	"koala", "lemur", "lynx", "marmot", "narwhal", "ocelot", "otter", "panda", "pelican", "puffin",
	"quokka", "raccoon", "robin", "salmon", "seal", "sparrow", "tapir", "toucan", "walrus", "wombat",
}

var things = []string{
	"anchor", "biscuit", "canyon", "comet", "cottage", "dumpling", "ember", "falafel", "harbor", "kettle",
	"lantern", "maple", "meadow", "muffin", "nebula", "noodle", "orbit", "pebble", "pepper", "puddle",
	"quiche", "ramen", "ridge", "rocket", "sprout", "taco", "thimble", "waffle", "willow", "zephyr",
}

// Generate returns three random words joined by hyphens, e.g.
// "sleepy-otter-lantern". The result is already a valid room name.
func Generate() string {
	words := []string{pick(adjectives), pick(animals), pick(things)}
	return strings.Join(words, "-")
}

func pick(list []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
	if err != nil {
		panic("roomname: crypto/rand failed: " + err.Error())
	}
	return list[n.Int64()]
}
