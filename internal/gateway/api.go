package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nitedsync/internal/cache"
	"nitedsync/internal/chat"
	"nitedsync/internal/core"
	"nitedsync/internal/ledger"
	"nitedsync/internal/notify"
	"nitedsync/internal/session"
	"nitedsync/internal/social"
	"nitedsync/internal/stories"
)

// API exposes the mutation surface to local UI clients. Reads come from the
// cache, writes go through the ledger and its peers.
type API struct {
	Logger   *slog.Logger
	Session  *session.Session
	Cache    *cache.Store
	Ledger   *ledger.Ledger
	Graph    *social.Graph
	Chat     *chat.Service
	Stories  *stories.Service
	Notifier *notify.Dispatcher
}

func (a *API) Init(context.Context) error {
	a.Logger = a.Logger.With("component", "gateway.API")
	return nil
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/posts", a.listPosts)
	r.Post("/posts", a.createPost)
	r.Delete("/posts/{id}", a.deletePost)
	r.Post("/posts/{id}/reactions", a.setReaction)
	r.Post("/posts/{id}/comments", a.addComment)
	r.Post("/posts/{id}/share", a.sharePost)

	r.Get("/stories", a.listStories)
	r.Post("/stories", a.createStory)
	r.Post("/stories/{id}/view", a.viewStory)

	r.Post("/follow", a.toggleFollow)

	r.Get("/chats/{userKey}/messages", a.listMessages)
	r.Post("/chats/{userKey}/messages", a.sendMessage)
	r.Post("/chats/{userKey}/read", a.markChatRead)

	r.Post("/notifications/{id}/read", a.markNotificationRead)

	return r
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	a.respond(w, http.StatusOK, a.Cache.Posts(r.Context()))
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string      `json:"content"`
		Media   *core.Media `json:"media"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	post, err := a.Ledger.CreatePost(r.Context(), req.Content, req.Media)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, post)
}

func (a *API) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := a.Ledger.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, nil)
}

func (a *API) setReaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind core.ReactionKind `json:"kind"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.Ledger.SetReaction(r.Context(), chi.URLParam(r, "id"), req.Kind); err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, nil)
}

func (a *API) addComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.Ledger.AddComment(r.Context(), chi.URLParam(r, "id"), req.Text); err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, nil)
}

func (a *API) sharePost(w http.ResponseWriter, r *http.Request) {
	if err := a.Ledger.SharePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, nil)
}

func (a *API) listStories(w http.ResponseWriter, r *http.Request) {
	a.respond(w, http.StatusOK, a.Stories.Active(r.Context(), time.Now()))
}

func (a *API) createStory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Media core.Media `json:"media"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	story, err := a.Stories.Create(r.Context(), req.Media)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, story)
}

func (a *API) viewStory(w http.ResponseWriter, r *http.Request) {
	if err := a.Stories.MarkViewed(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, nil)
}

func (a *API) toggleFollow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	if !a.Session.Authenticated() {
		a.fail(w, core.ErrNotAuthenticated)
		return
	}

	follower := core.FollowEntry{
		ID:    a.Session.UserKey,
		Key:   a.Session.UserKey,
		Name:  a.Session.Name,
		Photo: a.Session.Photo,
	}

	following, err := a.Graph.ToggleFollow(r.Context(), follower, req.UserID, req.UserName)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, map[string]bool{"following": following})
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := a.Chat.Messages(r.Context(), chi.URLParam(r, "userKey"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, messages)
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	message, err := a.Chat.Send(r.Context(), chi.URLParam(r, "userKey"), req.Text)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, message)
}

func (a *API) markChatRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"messageId"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.Chat.MarkRead(r.Context(), chi.URLParam(r, "userKey"), req.MessageID); err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, nil)
}

func (a *API) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if !a.Session.Authenticated() {
		a.fail(w, core.ErrNotAuthenticated)
		return
	}

	err := a.Notifier.MarkRead(r.Context(), a.Session.UserKey, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, nil)
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		a.respond(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return false
	}
	return true
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	if body == nil {
		body = map[string]string{"status": "ok"}
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("failed to encode response", "error", err)
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, core.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrPostNotFound), errors.Is(err, core.ErrKeyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrSelfFollow), errors.Is(err, core.ErrInvalidReaction):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		a.Logger.Error("request failed", "error", err)
	}
	a.respond(w, status, map[string]string{"message": err.Error()})
}
