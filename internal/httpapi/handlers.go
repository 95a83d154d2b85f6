package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/amadou/relais/pkg/session"
	"github.com/amadou/relais/pkg/transport"
)

// generateSessionRequest carries the tenant parameters for session creation
// and prompt updates.
type generateSessionRequest struct {
	Phone           string `json:"phone"`
	BusinessContext string `json:"businessContext"`
	CompanyName     string `json:"companyName"`
	SupportNumber   string `json:"supportNumber"`
}

func (r *generateSessionRequest) complete() bool {
	return r.Phone != "" && r.BusinessContext != "" && r.CompanyName != "" && r.SupportNumber != ""
}

func (r *generateSessionRequest) params() session.CreateParams {
	return session.CreateParams{
		Phone:           r.Phone,
		BusinessContext: r.BusinessContext,
		CompanyName:     r.CompanyName,
		SupportNumber:   r.SupportNumber,
	}
}

type sendMessageRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"uptime":       time.Since(s.startTime).Seconds(),
		"sessionCount": s.registry.Len(),
		"timestamp":    time.Now().UnixMilli(),
	})
}

// handleGenerateSession creates a session for a new identity.
func (s *Server) handleGenerateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corps de requête invalide")
		return
	}
	if !req.complete() {
		writeError(w, http.StatusBadRequest, "Tous les paramètres sont requis")
		return
	}

	result, err := s.controller.CreateSession(r.Context(), req.params())
	if err != nil {
		if errors.Is(err, session.ErrConflict) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Session déjà active"})
			return
		}
		s.logger.Error().Err(err).Msg("Session creation failed")
		writeError(w, http.StatusInternalServerError, "Échec de création de la session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"sessionId": result.SessionID,
		"code":      result.PairingCode,
		"qrUrl":     result.ArtifactURL,
	})
}

// handleUpdateContext replaces a session's system instruction and wipes
// its history.
func (s *Server) handleUpdateContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corps de requête invalide")
		return
	}
	if !req.complete() {
		writeError(w, http.StatusBadRequest, "Tous les paramètres sont requis")
		return
	}

	result, err := s.controller.UpdateContext(req.params())
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session introuvable")
			return
		}
		s.logger.Error().Err(err).Msg("Context update failed")
		writeError(w, http.StatusInternalServerError, "Échec de mise à jour du contexte")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"message":         "Contexte mis à jour avec succès",
		"sessionId":       result.SessionID,
		"newSystemPrompt": result.NewSystemPrompt,
	})
}

// handleSendMessage delivers an operator-initiated message.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corps de requête invalide")
		return
	}
	if req.Sender == "" || req.Recipient == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Tous les paramètres sont requis (sender, recipient, message)")
		return
	}

	result, err := s.controller.SendMessage(r.Context(), req.Sender, req.Recipient, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "Session introuvable pour cet expéditeur")
		case errors.Is(err, session.ErrNotReady):
			writeError(w, http.StatusTooEarly, "Client pas encore prêt")
		case errors.Is(err, transport.ErrSendFailed):
			s.logger.Error().Err(err).Msg("Message delivery failed")
			writeError(w, http.StatusInternalServerError, "Échec d'envoi du message")
		default:
			s.logger.Error().Err(err).Msg("Message delivery failed")
			writeError(w, http.StatusInternalServerError, "Échec d'envoi du message")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Message envoyé avec succès",
		"details": map[string]interface{}{
			"from":   result.From,
			"to":     result.To,
			"length": result.Length,
		},
	})
}
