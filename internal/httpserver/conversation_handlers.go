package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"seatshare/internal/service"
)

type conversationCreateRequest struct {
	ParticipantID string  `json:"participant_id" validate:"required"`
	ListingID     *string `json:"listing_id"`
}

type messageCreateRequest struct {
	Content string `json:"content" validate:"required"`
}

type unreadResponse struct {
	Unread int `json:"unread"`
}

// @Summary      Open a conversation
// @Description  Returns the existing conversation for the pair and listing, or creates it
// @Tags         conversations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body conversationCreateRequest true "Other participant and optional listing"
// @Success      200  {object}  domain.Conversation
// @Failure      400  {object}  errorResponse
// @Router       /conversations [post]
func handleCreateConversation(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req conversationCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		conv, err := convSvc.FindOrCreate(r.Context(), CurrentUser(r).ID, req.ParticipantID, req.ListingID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// @Summary      My conversations
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   domain.Conversation
// @Router       /conversations [get]
func handleListConversations(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs, err := convSvc.ListConversations(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(convs))
	}
}

// @Summary      Unread message total
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  unreadResponse
// @Router       /conversations/unread [get]
func handleUnreadTotal(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := convSvc.UnreadTotal(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, unreadResponse{Unread: n})
	}
}

// @Summary      Get conversation
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path string true "Conversation ID"
// @Success      200  {object}  domain.Conversation
// @Failure      403  {object}  errorResponse
// @Router       /conversations/{conversationID} [get]
func handleGetConversation(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv, err := convSvc.GetConversation(r.Context(), chi.URLParam(r, "conversationID"), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// @Summary      Mark conversation read
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path string true "Conversation ID"
// @Success      200  {object}  statusResponse
// @Router       /conversations/{conversationID}/read [post]
func handleMarkConversationRead(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := convSvc.MarkRead(r.Context(), chi.URLParam(r, "conversationID"), CurrentUser(r).ID); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
	}
}

// @Summary      List messages
// @Description  Newest messages, returned oldest first
// @Tags         conversations
// @Security     BearerAuth
// @Produce      json
// @Param        conversationID path string true "Conversation ID"
// @Param        limit query int false "Page size (max 200)"
// @Success      200  {array}   domain.Message
// @Router       /conversations/{conversationID}/messages [get]
func handleListMessages(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		msgs, err := convSvc.ListMessages(r.Context(), chi.URLParam(r, "conversationID"), CurrentUser(r).ID, limit)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(msgs))
	}
}

// @Summary      Send message
// @Tags         conversations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        conversationID path string true "Conversation ID"
// @Param        input body messageCreateRequest true "Message"
// @Success      201  {object}  domain.Message
// @Failure      400  {object}  errorResponse
// @Router       /conversations/{conversationID}/messages [post]
func handleCreateMessage(convSvc *service.ConversationService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		msg, err := convSvc.SendMessage(r.Context(), chi.URLParam(r, "conversationID"), CurrentUser(r).ID, req.Content)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}
