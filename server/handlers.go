package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hubenschmidt/go-orchestra/core"
	"github.com/hubenschmidt/go-orchestra/gateway"
	"github.com/hubenschmidt/go-orchestra/llm"
	"github.com/hubenschmidt/go-orchestra/server/store"
	"github.com/hubenschmidt/go-orchestra/tools"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListTools(s.registry))
}

// ListTools describes every registered tool, sorted by name.
func ListTools(registry *tools.Registry) []ToolInfo {
	if registry == nil {
		return []ToolInfo{}
	}
	schemas := registry.Schemas()
	result := make([]ToolInfo, 0, len(schemas))
	for _, t := range schemas {
		result = append(result, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
			Required:    t.Required,
		})
	}
	return result
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, core.NewValidationError("body", "invalid JSON: "+err.Error()))
		return
	}

	messages := make([]core.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, m.toCore())
	}

	resp, err := s.gateway.Chat(r.Context(), messages)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSmartAgents(w http.ResponseWriter, r *http.Request) {
	var req SmartAgentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, core.NewValidationError("body", "invalid JSON: "+err.Error()))
		return
	}
	message, ok := req.Message.(string)
	if !ok {
		s.writeError(w, core.NewValidationError("message", "Message is required and must be a string"))
		return
	}

	resp, err := s.gateway.Smart(r.Context(), gateway.SmartRequest{
		Message:        message,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Context:        req.Context,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := s.capabilities.Capabilities(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caps)
}

func (s *Server) handleSupreme(w http.ResponseWriter, r *http.Request) {
	var req SupremeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, core.NewValidationError("body", "invalid JSON: "+err.Error()))
		return
	}
	message, ok := req.Message.(string)
	if !ok {
		s.writeError(w, core.NewValidationError("message", "Message is required and must be a string"))
		return
	}

	resp, err := s.gateway.Supreme(r.Context(), gateway.SupremeRequest{
		Message:        message,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, core.NewValidationError("user_id", "user_id is required"))
		return
	}

	convs, err := s.store.ListConversations(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConversationListResponse{Conversations: convs})
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.ownedConversation(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteConversation(r.Context(), conv.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedConversation loads the conversation named in the path for the
// user_id query parameter. Another user's conversation reads as not found.
func (s *Server) ownedConversation(w http.ResponseWriter, r *http.Request) (store.Conversation, bool) {
	if !s.requireStore(w) {
		return store.Conversation{}, false
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, core.NewValidationError("user_id", "user_id is required"))
		return store.Conversation{}, false
	}

	conv, err := s.store.GetConversation(r.Context(), r.PathValue("id"))
	if err == nil && conv.UserID != userID {
		err = store.ErrNotFound
	}
	if err != nil {
		s.writeError(w, err)
		return store.Conversation{}, false
	}
	return conv, true
}

func (s *Server) handleKnowledgeList(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		s.writeError(w, core.NewValidationError("agent_id", "agent_id is required"))
		return
	}

	records, err := s.store.ListKnowledge(r.Context(), agentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, KnowledgeListResponse{Knowledge: records})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store != nil {
		return true
	}
	s.writeError(w, core.NotConfigured("Conversation store"))
	return false
}

// writeError maps the error taxonomy onto status codes. Validation errors
// are 400, missing entities 404; everything else is a 500 carrying upstream
// diagnostics when there are any.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr     *core.ValidationError
		ce       *llm.CompletionError
		upstream *core.UpstreamError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Field: verr.Field})
		return
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	case errors.Is(err, core.ErrNotConfigured):
		s.logger.Error().Err(err).Msg("missing configuration")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	case errors.As(err, &ce):
		upstream = ce.Upstream()
	case errors.As(err, &upstream):
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Error().Err(err).
		Str("service", upstream.Service).
		Int("status", upstream.Status).
		Msg("upstream failure")
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   err.Error(),
		Service: upstream.Service,
		Status:  upstream.Status,
		Details: upstream.Body,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
