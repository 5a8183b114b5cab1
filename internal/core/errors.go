package core

import "errors"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrKeyNotFound      = errors.New("key not found")
	ErrPostNotFound     = errors.New("post not found")
	ErrNotOwner         = errors.New("caller is not the owner")
	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrInvalidReaction  = errors.New("invalid reaction kind")
)
