package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xpertseller/alertkit/pkg/notifications"
)

// Inbox is the dashboard notification store; *notifications.Manager
// satisfies it. Marking a notification read reports the matching attempt
// as opened through the manager's read hook.
type Inbox interface {
	List(ctx context.Context, recipientID string, opts notifications.ListOptions) ([]notifications.Notification, error)
	MarkRead(ctx context.Context, recipientID string, ids ...string) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

// WithInbox mounts the dashboard notification routes:
//
//	GET  /v1/recipients/{id}/notifications?unread=true&limit=N&offset=N
//	POST /v1/recipients/{id}/notifications/read   {"ids": [...]}
func WithInbox(inbox Inbox) Option {
	return func(h *Handler) { h.inbox = inbox }
}

var errBadPaging = httpError{http.StatusBadRequest, "invalid_request", "limit and offset must be non-negative integers"}

type inboxPage struct {
	Notifications []notifications.Notification `json:"notifications"`
	Unread        int                          `json:"unread"`
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) mountInbox(r chi.Router) {
	if h.inbox == nil {
		return
	}
	r.Get("/recipients/{id}/notifications", h.listNotifications)
	r.Post("/recipients/{id}/notifications/read", h.markNotificationsRead)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := notifications.ListOptions{OnlyUnread: q.Get("unread") == "true"}
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, r, errBadPaging)
			return
		}
		*dst = n
	}

	recipientID := chi.URLParam(r, "id")
	list, err := h.inbox.List(r.Context(), recipientID, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unread, err := h.inbox.CountUnread(r.Context(), recipientID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []notifications.Notification{}
	}
	writeData(w, http.StatusOK, inboxPage{Notifications: list, Unread: unread})
}

func (h *Handler) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		h.writeError(w, r, httpError{http.StatusBadRequest, "invalid_request", "ids must not be empty"})
		return
	}

	err := h.inbox.MarkRead(r.Context(), chi.URLParam(r, "id"), req.IDs...)
	if errors.Is(err, notifications.ErrNotificationNotFound) {
		h.writeError(w, r, httpError{http.StatusNotFound, "not_found", err.Error()})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
