// Package api exposes the HTTP surface of the relay service: the conversation
// history endpoint and the durable send path. Authentication happens at the
// gateway in front of this service; handlers here only authorize the claimed
// user against friendship and group membership.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/RayhaanHowlader/sociamed-sub002/internal/history"
	"github.com/RayhaanHowlader/sociamed-sub002/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler serves the history and message endpoints.
type Handler struct {
	resolver *history.Resolver
	store    *store.Store
}

// NewHandler creates a Handler over the resolver and store.
func NewHandler(resolver *history.Resolver, st *store.Store) *Handler {
	return &Handler{resolver: resolver, store: st}
}

// History serves GET /history. Query parameters:
//
//	userId   — the requesting user (required)
//	friendId — the other party of a direct conversation
//	groupId  — the group conversation (exactly one of friendId/groupId)
//	limit    — page size, default 20, capped at 100
//	before   — pagination cursor, RFC 3339 or unix milliseconds
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	userID := q.Get("userId")
	friendID := q.Get("friendId")
	groupID := q.Get("groupId")

	if userID == "" || (friendID == "") == (groupID == "") {
		http.Error(w, "userId and exactly one of friendId or groupId are required", http.StatusBadRequest)
		return
	}

	limit := defaultPageSize
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	// An unparseable cursor is treated as absent rather than rejected: the
	// page simply starts from the latest messages.
	before := parseBefore(q.Get("before"))

	ctx := r.Context()
	var (
		page history.Page
		err  error
	)
	if groupID != "" {
		ok, aerr := h.store.Groups.IsMember(ctx, groupID, userID)
		if aerr != nil {
			log.Printf("api: group membership check failed group=%s user=%s: %v", groupID, userID, aerr)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "not a member of this group", http.StatusForbidden)
			return
		}
		page, err = h.resolver.GroupPage(ctx, groupID, userID, limit, before)
	} else {
		if friendID != userID {
			ok, aerr := h.store.Friendships.AreFriends(ctx, userID, friendID)
			if aerr != nil {
				log.Printf("api: friendship check failed user=%s friend=%s: %v", userID, friendID, aerr)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(w, "not friends with this user", http.StatusForbidden)
				return
			}
		}
		page, err = h.resolver.DirectPage(ctx, userID, friendID, userID, limit, before)
	}
	if err != nil {
		log.Printf("api: history page failed user=%s: %v", userID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if page.Messages == nil {
		page.Messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, page)
}

// sendRequest is the POST /messages body. It mirrors the relayed chat:message
// payload; the durable copy and the fan-out copy are produced by the client
// from the same draft.
type sendRequest struct {
	FromID  string `json:"fromId"`
	ToID    string `json:"toId"`
	GroupID string `json:"groupId"`
	Content string `json:"content"`

	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileMime string `json:"fileMime"`
	IsImage  bool   `json:"isImage"`

	SharedID         string `json:"sharedId"`
	SharedType       string `json:"sharedType"`
	SharedURL        string `json:"sharedUrl"`
	SharedCaption    string `json:"sharedCaption"`
	SharedAuthorID   string `json:"sharedAuthorId"`
	SharedAuthorName string `json:"sharedAuthorName"`
}

// SendMessage serves POST /messages: the durable write path. The server
// assigns the message id and timestamp; the response returns both so the
// client can stamp the relayed copy with the same id.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.FromID == "" || (req.ToID == "") == (req.GroupID == "") {
		http.Error(w, "fromId and exactly one of toId or groupId are required", http.StatusBadRequest)
		return
	}
	if req.Content == "" && req.FileURL == "" && req.SharedID == "" {
		http.Error(w, "message has no content", http.StatusBadRequest)
		return
	}

	m := store.Message{
		ID:               uuid.New().String(),
		FromID:           req.FromID,
		ToID:             req.ToID,
		GroupID:          req.GroupID,
		Content:          req.Content,
		FileURL:          req.FileURL,
		FileName:         req.FileName,
		FileMime:         req.FileMime,
		IsImage:          req.IsImage,
		SharedID:         req.SharedID,
		SharedType:       req.SharedType,
		SharedURL:        req.SharedURL,
		SharedCaption:    req.SharedCaption,
		SharedAuthorID:   req.SharedAuthorID,
		SharedAuthorName: req.SharedAuthorName,
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.store.Messages.Insert(r.Context(), m); err != nil {
		log.Printf("api: insert message from=%s: %v", req.FromID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        m.ID,
		"createdAt": m.CreatedAt,
	})
}

// DeleteMessage serves DELETE /messages/{id}?userId=...: soft-deletes a
// message so the history resolver redacts it for all readers. Only the sender
// may delete; the store matches id and sender together, so a mismatched
// userId reads the same as a missing message.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Path[len("/messages/"):]
	userID := r.URL.Query().Get("userId")
	if id == "" || userID == "" {
		http.Error(w, "message id and userId are required", http.StatusBadRequest)
		return
	}

	if err := h.store.Messages.MarkDeleted(r.Context(), id, userID); err != nil {
		log.Printf("api: delete message id=%s user=%s: %v", id, userID, err)
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseBefore decodes the pagination cursor. Both RFC 3339 and unix
// millisecond forms are accepted; anything else means no cursor.
func parseBefore(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}
