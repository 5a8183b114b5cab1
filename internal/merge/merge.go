package merge

import (
	"slices"
	"time"

	"nitedsync/internal/core"
)

// Posts combines cached posts with a fresh remote snapshot: deduplicated by
// id with the remote version winning, sorted by CreatedAt descending. A
// missing or negative timestamp sorts as epoch 0; nothing here can panic on
// malformed input.
func Posts(local, remote []core.Post) []core.Post {
	index := map[string]core.Post{}
	order := make([]string, 0, len(local)+len(remote))

	for _, post := range local {
		if _, seen := index[post.ID]; !seen {
			order = append(order, post.ID)
		}
		index[post.ID] = post
	}
	for _, post := range remote {
		if _, seen := index[post.ID]; !seen {
			order = append(order, post.ID)
		}
		index[post.ID] = post
	}

	merged := make([]core.Post, 0, len(order))
	for _, id := range order {
		merged = append(merged, index[id])
	}

	slices.SortStableFunc(merged, func(a, b core.Post) int {
		return compareDesc(a.CreatedAt, b.CreatedAt)
	})
	return merged
}

// Stories merges like Posts and additionally drops stories past their 24
// hour window, both before and after the merge.
func Stories(now time.Time, local, remote []core.Story) []core.Story {
	index := map[string]core.Story{}
	order := make([]string, 0, len(local)+len(remote))

	add := func(story core.Story) {
		if story.Expired(now) {
			return
		}
		if _, seen := index[story.ID]; !seen {
			order = append(order, story.ID)
		}
		index[story.ID] = story
	}

	for _, story := range local {
		add(story)
	}
	for _, story := range remote {
		add(story)
	}

	merged := make([]core.Story, 0, len(order))
	for _, id := range order {
		if story := index[id]; !story.Expired(now) {
			merged = append(merged, story)
		}
	}

	slices.SortStableFunc(merged, func(a, b core.Story) int {
		return compareDesc(a.CreatedAt, b.CreatedAt)
	})
	return merged
}

func compareDesc(a, b int64) int {
	if a < 0 {
		a = 0
	}
	if b < 0 {
		b = 0
	}
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
