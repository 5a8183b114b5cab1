package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"nitedsync/internal/core"
)

// KV adapts one JetStream key-value bucket to the core.TreeStore interface.
type KV struct {
	kv     jetstream.KeyValue
	logger *slog.Logger
}

// Get retrieves the value for the given key.
func (c *KV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, core.ErrKeyNotFound
		}
		return nil, err
	}
	return entry.Value(), nil
}

// Put overwrites the value for the given key.
func (c *KV) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.kv.Put(ctx, key, value)
	if err != nil {
		return fmt.Errorf("failed to store key %s: %w", key, err)
	}
	return nil
}

// Update performs a read-modify-write. fn receives nil for a missing key.
// Last write wins: there is no revision check, matching the semantics of
// the original tree store.
func (c *KV) Update(ctx context.Context, key string, fn func([]byte) ([]byte, error)) error {
	current, err := c.Get(ctx, key)
	if err != nil && !errors.Is(err, core.ErrKeyNotFound) {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	return c.Put(ctx, key, next)
}

// Delete removes a key-value pair.
func (c *KV) Delete(ctx context.Context, key string) error {
	return c.kv.Delete(ctx, key)
}

// Keys returns all keys in the bucket.
func (c *KV) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}

// Watch streams current values matching pattern, then live changes, until
// ctx is canceled. Watcher errors after establishment are not retried.
func (c *KV) Watch(ctx context.Context, pattern string) (<-chan core.TreeEntry, error) {
	watcher, err := c.kv.Watch(ctx, pattern)
	if err != nil {
		return nil, err
	}

	ch := make(chan core.TreeEntry)

	go func() {
		defer close(ch)
		defer watcher.Stop() //nolint:errcheck

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					// End of initial values marker.
					continue
				}

				op := core.TreeOpPut
				if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
					op = core.TreeOpDelete
				}

				select {
				case <-ctx.Done():
					return
				case ch <- core.TreeEntry{Key: entry.Key(), Value: entry.Value(), Op: op}:
				}
			}
		}
	}()

	return ch, nil
}
