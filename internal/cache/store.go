package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"nitedsync/internal/config"
	"nitedsync/internal/core"
)

// Snapshot keys mirror the browser storage keys of the original client.
const (
	KeyPosts     = "nitedcrypto_posts"
	KeyStories   = "nitedcrypto_stories"
	KeyFollowing = "nitedcrypto_following"
	KeyFollowers = "nitedcrypto_followers"
	KeyUser      = "currentUser"
)

type snapshot struct {
	Key       string `gorm:"primaryKey"`
	Data      []byte
	UpdatedAt time.Time
}

func (snapshot) TableName() string {
	return "snapshots"
}

// Store is the local cache: full-replace JSON snapshots in an embedded
// sqlite file, one row per collection.
type Store struct {
	Logger *slog.Logger
	Config *config.Config

	db *gorm.DB
}

func (s *Store) Init(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(s.Config.CachePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&snapshot{}); err != nil {
		return err
	}

	s.db = db
	s.Logger = s.Logger.With("component", "cache.Store")

	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Shutdown(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil
	}
	return sqlDB.Close()
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var row snapshot
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

func (s *Store) Store(ctx context.Context, key string, value []byte) error {
	row := snapshot{Key: key, Data: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&snapshot{}).Order("key").Pluck("key", &keys).Error
	return keys, err
}

// Posts decodes the cached post snapshot. Malformed rows yield an empty
// slice, never an error; individual posts are normalized on the way out.
func (s *Store) Posts(ctx context.Context) []core.Post {
	var posts []core.Post
	s.load(ctx, KeyPosts, &posts)
	for i := range posts {
		posts[i].Normalize()
	}
	return posts
}

func (s *Store) StorePosts(ctx context.Context, posts []core.Post) error {
	return s.store(ctx, KeyPosts, posts)
}

func (s *Store) Stories(ctx context.Context) []core.Story {
	var stories []core.Story
	s.load(ctx, KeyStories, &stories)
	return stories
}

func (s *Store) StoreStories(ctx context.Context, stories []core.Story) error {
	return s.store(ctx, KeyStories, stories)
}

// Following returns the cached following adjacency lists keyed by follower.
func (s *Store) Following(ctx context.Context) map[string][]core.FollowEntry {
	return s.adjacency(ctx, KeyFollowing)
}

func (s *Store) StoreFollowing(ctx context.Context, lists map[string][]core.FollowEntry) error {
	return s.store(ctx, KeyFollowing, lists)
}

// Followers returns the cached followers adjacency lists keyed by followee.
func (s *Store) Followers(ctx context.Context) map[string][]core.FollowEntry {
	return s.adjacency(ctx, KeyFollowers)
}

func (s *Store) StoreFollowers(ctx context.Context, lists map[string][]core.FollowEntry) error {
	return s.store(ctx, KeyFollowers, lists)
}

func (s *Store) CurrentUser(ctx context.Context) (core.Profile, bool) {
	var profile core.Profile
	if !s.load(ctx, KeyUser, &profile) || profile.Key == "" {
		return core.Profile{}, false
	}
	return profile, true
}

func (s *Store) StoreCurrentUser(ctx context.Context, profile core.Profile) error {
	return s.store(ctx, KeyUser, profile)
}

func (s *Store) adjacency(ctx context.Context, key string) map[string][]core.FollowEntry {
	lists := map[string][]core.FollowEntry{}
	s.load(ctx, key, &lists)
	if lists == nil {
		lists = map[string][]core.FollowEntry{}
	}
	return lists
}

func (s *Store) load(ctx context.Context, key string, out any) bool {
	data, err := s.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, core.ErrKeyNotFound) {
			s.Logger.Error("failed to load snapshot", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.Logger.Error("corrupt snapshot, ignoring", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) store(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Store(ctx, key, data)
}
