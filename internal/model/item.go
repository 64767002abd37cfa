/*
Package model defines the core feed data types shared by ranking, learning and
the queue.

Items are owned by the catalog; the ranking core only reads their counters.
*/
package model

import (
	"regexp"
	"strings"
)

// hashtagPattern matches "#word" tokens in a free-text description.
var hashtagPattern = regexp.MustCompile(`#\w+`)

// Creator identifies the author of an item.
type Creator struct {
	// ID is the stable creator identifier.
	ID string `json:"id"`

	// Username is the display handle.
	Username string `json:"username,omitempty"`

	// Followers is the follower count used for the creator tier.
	Followers int64 `json:"followers"`
}

// Item is a single short video in the catalog.
type Item struct {
	// ID is unique within a catalog.
	ID string `json:"id"`

	// Creator is the author of the item.
	Creator Creator `json:"creator"`

	// Description is free text; hashtags are extracted from it.
	Description string `json:"description"`

	// Likes, Comments and Shares are engagement counters maintained externally.
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`

	// MediaURL is an opaque reference to the playable media.
	MediaURL string `json:"mediaUrl,omitempty"`
}

// Hashtags returns the lowercased hashtags of the item description.
func (i Item) Hashtags() []string {
	return ExtractHashtags(i.Description)
}

// ExtractHashtags returns every "#word" token in text, lowercased, in order of
// appearance. Duplicates are kept.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	tags := make([]string, len(matches))
	for i, m := range matches {
		tags[i] = strings.ToLower(m)
	}
	return tags
}

// Dedupe returns items with repeated IDs removed, keeping the first occurrence.
func Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// IDs returns the identifiers of items in order.
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
