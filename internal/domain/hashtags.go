package domain

import "strings"

// MaxHashtags caps the tags attached to one published caption.
const MaxHashtags = 25

const (
	poolPick         = 8
	regionalPoolPick = 5
)

// DefaultHashtagPools is the seed data written by seed-hashtags.
var DefaultHashtagPools = []HashtagPool{
	{Name: "trending", Active: true, Tags: []string{
		"indianmemes", "desihumor", "hindimemes", "reelkarofeelkaro", "funnyindia",
		"memesindia", "reelsindia", "memeindia", "dankmemesindia", "trendingreels",
	}},
	{Name: "evergreen", Active: true, Tags: []string{
		"relatable", "desivibes", "desiculture", "memepage", "lolindia",
		"indiangags", "dailyfunny", "memesofinstagram", "chillvibes", "pettyhumor",
	}},
	{Name: "niche", Active: true, Tags: []string{
		"engineerlife", "collegememes", "hostellifeindia", "delhimetro", "bangaloretraffic",
		"mumbaidreams", "startupmemes", "itlife", "officehumor", "chaiaddict",
	}},
	{Name: "regional", Active: true, Tags: []string{
		"dilseindian", "delhivibes", "bangalorelife", "mumbaivibes", "cricketlover", "bollywoodmemes",
	}},
}

// RotateHashtags picks tags from each active pool starting at an offset
// derived from seed, so neighbouring posts get different selections.
func RotateHashtags(pools []HashtagPool, seed int64) []string {
	if seed < 0 {
		seed = -seed
	}
	var picks []string
	for i, pool := range pools {
		tags := NormalizeHashtags(pool.Tags)
		if !pool.Active || len(tags) == 0 {
			continue
		}
		offset := int((seed + int64(i)*3) % int64(len(tags)))
		rotated := append(append([]string{}, tags[offset:]...), tags[:offset]...)
		n := poolPick
		if strings.EqualFold(pool.Name, "regional") {
			n = regionalPoolPick
		}
		if n > len(rotated) {
			n = len(rotated)
		}
		picks = append(picks, rotated[:n]...)
	}
	return picks
}

// PublishHashtags merges the item's own tags with rotated pool tags, capped at MaxHashtags.
func PublishHashtags(own []string, pools []HashtagPool, seed int64) []string {
	merged := NormalizeHashtags(append(append([]string{}, own...), RotateHashtags(pools, seed)...))
	if len(merged) > MaxHashtags {
		merged = merged[:MaxHashtags]
	}
	return merged
}
