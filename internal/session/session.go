package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"nitedsync/internal/cache"
	"nitedsync/internal/config"
	"nitedsync/internal/core"
	"nitedsync/internal/social"
)

// Session is the identity and start time of the running sync session. It is
// constructed once at startup; everything that used to live in ambient
// module state hangs off services owning a *Session instead.
type Session struct {
	Logger *slog.Logger
	Config *config.Config
	Cache  *cache.Store

	UserKey   string
	Name      string
	Email     string
	Photo     string
	StartedAt time.Time
}

func (s *Session) Init(ctx context.Context) error {
	s.StartedAt = time.Now()

	profile, ok := s.Cache.CurrentUser(ctx)
	if s.Config.UserKey != "" {
		profile = core.Profile{
			Key:   s.Config.UserKey,
			Name:  s.Config.UserName,
			Email: s.Config.UserEmail,
			Photo: s.Config.UserPhoto,
		}
		ok = true
	}

	if !ok {
		s.Logger.Warn("no user identity configured, running unauthenticated")
		return nil
	}

	s.UserKey = social.CanonicalKey(profile.Key)
	s.Name = profile.Name
	s.Email = profile.Email
	s.Photo = profile.Photo

	profile.Key = s.UserKey
	profile.LastActive = s.StartedAt.UnixMilli()
	if err := s.Cache.StoreCurrentUser(ctx, profile); err != nil {
		return err
	}

	s.Logger.Info("session started", "user", s.UserKey)
	return nil
}

// PublishProfile mirrors the session profile into the remote profile
// namespace, keyed by the canonical user key, so other clients can resolve
// this user without scanning their posts. No-op when unauthenticated.
func (s *Session) PublishProfile(ctx context.Context, profiles core.TreeStore) error {
	if !s.Authenticated() {
		return nil
	}

	payload, err := json.Marshal(core.Profile{
		Key:        s.UserKey,
		Name:       s.Name,
		Email:      s.Email,
		Photo:      s.Photo,
		LastActive: s.StartedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return profiles.Put(ctx, s.UserKey, payload)
}

// Authenticated reports whether mutations are allowed this session.
func (s *Session) Authenticated() bool {
	return s.UserKey != ""
}

// Actor is the notification actor describing the session user.
func (s *Session) Actor() core.Actor {
	return core.Actor{Name: s.Name, Photo: s.Photo}
}
