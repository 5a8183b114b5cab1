package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"nitedsync/internal/core"
	"nitedsync/internal/remote"
	"nitedsync/internal/session"
	"nitedsync/internal/social"
)

// ThreadID derives the shared thread id for two participants: canonical
// keys in lexicographic order joined with "_", so both sides resolve the
// same thread.
func ThreadID(a, b string) string {
	first := social.CanonicalKey(a)
	second := social.CanonicalKey(b)
	if first < second {
		return first + "_" + second
	}
	return second + "_" + first
}

func messageKey(threadID, messageID string) string {
	return threadID + ".messages." + messageID
}

func summaryKey(userKey, otherKey string) string {
	return "threads." + userKey + "." + otherKey
}

// Service sends and observes direct messages. Messages live under the
// thread's namespace; a per-user thread summary is upserted for both
// participants so either side can list its conversations.
type Service struct {
	Logger  *slog.Logger
	Remote  *remote.NATS
	Session *session.Session
}

func (s *Service) Init(context.Context) error {
	s.Logger = s.Logger.With("component", "chat.Service")
	return nil
}

// Send writes a message from the session user to the receiver. The two
// summary upserts are independent, best-effort writes.
func (s *Service) Send(ctx context.Context, receiverKey, text string) (core.ChatMessage, error) {
	if !s.Session.Authenticated() {
		return core.ChatMessage{}, core.ErrNotAuthenticated
	}

	senderKey := s.Session.UserKey
	receiverKey = social.CanonicalKey(receiverKey)
	threadID := ThreadID(senderKey, receiverKey)

	message := core.ChatMessage{
		ID:          uuid.NewString(),
		SenderKey:   senderKey,
		ReceiverKey: receiverKey,
		Text:        text,
		CreatedAt:   time.Now().UnixMilli(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return core.ChatMessage{}, err
	}
	if err := s.Remote.Bucket(remote.BucketChats).Put(ctx, messageKey(threadID, message.ID), payload); err != nil {
		return core.ChatMessage{}, fmt.Errorf("failed to send message: %w", err)
	}

	s.upsertSummary(senderKey, receiverKey, threadID, message, false)
	s.upsertSummary(receiverKey, senderKey, threadID, message, true)

	return message, nil
}

// Messages returns the current messages of a thread sorted by creation
// time. Corrupt records are skipped.
func (s *Service) Messages(ctx context.Context, otherKey string) ([]core.ChatMessage, error) {
	threadID := ThreadID(s.Session.UserKey, otherKey)
	tree := s.Remote.Bucket(remote.BucketChats)

	keys, err := tree.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var messages []core.ChatMessage
	prefix := threadID + ".messages."
	for _, key := range keys {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		value, err := tree.Get(ctx, key)
		if err != nil {
			continue
		}
		var message core.ChatMessage
		if err := json.Unmarshal(value, &message); err != nil {
			s.Logger.Error("corrupt chat message, skipping", "key", key, "error", err)
			continue
		}
		messages = append(messages, message)
	}

	sortMessages(messages)
	return messages, nil
}

// Watch streams messages of the thread with otherKey: current ones first,
// then live arrivals.
func (s *Service) Watch(ctx context.Context, otherKey string) (<-chan core.ChatMessage, error) {
	threadID := ThreadID(s.Session.UserKey, otherKey)

	entries, err := s.Remote.Bucket(remote.BucketChats).Watch(ctx, threadID+".messages.>")
	if err != nil {
		return nil, err
	}

	ch := make(chan core.ChatMessage)
	go func() {
		defer close(ch)
		for entry := range entries {
			if entry.Op != core.TreeOpPut {
				continue
			}
			var message core.ChatMessage
			if err := json.Unmarshal(entry.Value, &message); err != nil {
				s.Logger.Error("corrupt chat message, skipping", "key", entry.Key, "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case ch <- message:
			}
		}
	}()
	return ch, nil
}

// MarkRead flips the read flag of a single message.
func (s *Service) MarkRead(ctx context.Context, otherKey, messageID string) error {
	threadID := ThreadID(s.Session.UserKey, otherKey)
	return s.Remote.Bucket(remote.BucketChats).Update(ctx, messageKey(threadID, messageID), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, core.ErrKeyNotFound
		}
		var message core.ChatMessage
		if err := json.Unmarshal(current, &message); err != nil {
			return nil, err
		}
		message.Read = true
		return json.Marshal(message)
	})
}

func (s *Service) upsertSummary(ownerKey, otherKey, threadID string, message core.ChatMessage, unread bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := s.Remote.Bucket(remote.BucketChats).Update(ctx, summaryKey(ownerKey, otherKey), func(current []byte) ([]byte, error) {
			thread := core.ChatThread{ThreadID: threadID, OtherKey: otherKey}
			if current != nil {
				if err := json.Unmarshal(current, &thread); err != nil {
					thread = core.ChatThread{ThreadID: threadID, OtherKey: otherKey}
				}
			}
			thread.LastMessage = message.Text
			thread.UpdatedAt = message.CreatedAt
			if unread {
				thread.Unread++
			} else {
				thread.Unread = 0
			}
			return json.Marshal(thread)
		})
		if err != nil {
			s.Logger.Error("failed to upsert thread summary", "owner", ownerKey, "error", err)
		}
	}()
}

func sortMessages(messages []core.ChatMessage) {
	slices.SortStableFunc(messages, func(a, b core.ChatMessage) int {
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		default:
			return 0
		}
	})
}
