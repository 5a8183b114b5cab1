package core

import (
	"context"
)

// TreeOp is the kind of change carried by a watch entry.
type TreeOp int

const (
	TreeOpPut TreeOp = iota
	TreeOpDelete
)

// TreeEntry is one record observed in a remote tree namespace, either during
// the initial replay of current values or as a live change.
type TreeEntry struct {
	Key   string
	Value []byte
	Op    TreeOp
}

// TreeStore is one namespace of the remote realtime tree. Keys may be
// hierarchical using "." as the separator.
type TreeStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Update performs a read-modify-write of a single key. A missing key is
	// passed to fn as nil.
	Update(ctx context.Context, key string, fn func([]byte) ([]byte, error)) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	// Watch fires once for every current value matching pattern, then for
	// every subsequent change, until ctx is canceled.
	Watch(ctx context.Context, pattern string) (<-chan TreeEntry, error)
}

// FeedEvent is pushed to gateway clients when the fan-out surfaces a new
// record.
type FeedEvent struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Payload    any    `json:"payload"`
	Transient  bool   `json:"transient,omitempty"`
	Message    string `json:"message,omitempty"`
}
