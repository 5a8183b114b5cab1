package social

import (
	"slices"

	"github.com/samber/lo"

	"nitedsync/internal/core"
)

// ToggleEdge flips the follow edge between follower and followee in both
// adjacency maps, in place. Entries are matched through EntryKey, so legacy
// entry formats still count as the same edge. Returns true when the edge
// exists after the toggle.
func ToggleEdge(following, followers map[string][]core.FollowEntry, follower, followee core.FollowEntry) (bool, error) {
	followerKey := EntryKey(follower)
	followeeKey := EntryKey(followee)
	if followerKey == followeeKey {
		return false, core.ErrSelfFollow
	}

	list := following[followerKey]
	idx := slices.IndexFunc(list, func(e core.FollowEntry) bool {
		return EntryKey(e) == followeeKey
	})

	followed := idx < 0
	if followed {
		following[followerKey] = append(list, followee)

		exists := slices.ContainsFunc(followers[followeeKey], func(e core.FollowEntry) bool {
			return EntryKey(e) == followerKey
		})
		if !exists {
			followers[followeeKey] = append(followers[followeeKey], follower)
		}
	} else {
		following[followerKey] = slices.Delete(list, idx, idx+1)
		followers[followeeKey] = lo.Reject(followers[followeeKey], func(e core.FollowEntry, _ int) bool {
			return EntryKey(e) == followerKey
		})
	}

	return followed, nil
}
