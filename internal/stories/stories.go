package stories

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"nitedsync/internal/cache"
	"nitedsync/internal/core"
	"nitedsync/internal/remote"
	"nitedsync/internal/session"
)

// Service creates and serves stories. A story expires 24 hours after
// creation: it is excluded from display but never deleted.
type Service struct {
	Logger  *slog.Logger
	Cache   *cache.Store
	Remote  *remote.NATS
	Session *session.Session
}

func (s *Service) Init(context.Context) error {
	s.Logger = s.Logger.With("component", "stories.Service")
	return nil
}

// Create stores a new story authored by the session user, typically from a
// completed media upload.
func (s *Service) Create(ctx context.Context, media core.Media) (core.Story, error) {
	if !s.Session.Authenticated() {
		return core.Story{}, core.ErrNotAuthenticated
	}

	story := core.Story{
		ID:          uuid.NewString(),
		AuthorID:    s.Session.UserKey,
		AuthorName:  s.Session.Name,
		AuthorPhoto: s.Session.Photo,
		Media:       media,
		CreatedAt:   time.Now().UnixMilli(),
	}

	stories := append(s.Cache.Stories(ctx), story)
	if err := s.Cache.StoreStories(ctx, stories); err != nil {
		return core.Story{}, err
	}

	payload, err := json.Marshal(story)
	if err != nil {
		return core.Story{}, err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.Remote.Bucket(remote.BucketStories).Put(ctx, story.ID, payload); err != nil {
			s.Logger.Error("failed to mirror story", "story", story.ID, "error", err)
		}
	}()

	return story, nil
}

// Active returns the cached stories still inside their display window.
func (s *Service) Active(ctx context.Context, now time.Time) []core.Story {
	return lo.Reject(s.Cache.Stories(ctx), func(story core.Story, _ int) bool {
		return story.Expired(now)
	})
}

// MarkViewed records that the session user viewed a story.
func (s *Service) MarkViewed(ctx context.Context, storyID string) error {
	if !s.Session.Authenticated() {
		return core.ErrNotAuthenticated
	}
	viewer := s.Session.UserKey
	viewedAt := time.Now().UnixMilli()

	return s.Remote.Bucket(remote.BucketStories).Update(ctx, storyID, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, core.ErrKeyNotFound
		}
		var story core.Story
		if err := json.Unmarshal(current, &story); err != nil {
			return nil, err
		}
		if story.Viewers == nil {
			story.Viewers = map[string]int64{}
		}
		story.Viewers[viewer] = viewedAt
		return json.Marshal(story)
	})
}
