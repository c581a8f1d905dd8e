package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/logging"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/services"
)

const dashboardPath = "/dashboard"

type handlers struct {
	auth      AuthService
	chat      ChatService
	records   RecordService
	dashboard DashboardService
	db        Pinger
	cookie    CookieOptions
	logger    logging.Logger
}

// --- auth ---

func (h *handlers) issueCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.auth.IssueVerificationCode(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, envelope{"message": "Verification code sent"})
}

func (h *handlers) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	_, token, err := h.auth.VerifyCode(r.Context(), req.Email, req.Code, r.UserAgent())
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeFailure(w, http.StatusUnauthorized, "Invalid or expired code", nil)
			return
		}
		h.fail(w, r, err)
		return
	}

	h.cookie.set(w, token)
	writeOK(w, envelope{"redirect": dashboardPath})
}

// session is the auto-login check. The token comes from the cookie or,
// failing that, from the JSON body.
func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	token := h.cookie.token(r)
	if token == "" {
		var req struct {
			Token string `json:"token"`
		}
		// an unreadable body leaves token empty and fails validation below
		_ = decodeJSON(w, r, &req)
		token = req.Token
	}

	if _, err := h.auth.ValidateToken(r.Context(), token, true); err != nil {
		h.cookie.clear(w)
		writeFailure(w, http.StatusUnauthorized, "Invalid or expired session", nil)
		return
	}

	h.cookie.set(w, token)
	writeOK(w, envelope{"redirect": dashboardPath})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	err := h.auth.RevokeSession(r.Context(), h.cookie.token(r))
	h.cookie.clear(w)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, nil)
}

// --- dashboard ---

func (h *handlers) getDashboard(w http.ResponseWriter, r *http.Request, userID string) {
	d, err := h.dashboard.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var appt any
	if a := d.Appointment; a != nil {
		appt = map[string]string{
			"doctor_name":      a.Doctor,
			"date":             a.Date,
			"time":             a.Time,
			"appointment_type": a.Type,
			"location":         a.Location,
			"status":           a.Status,
		}
	}

	chats := make([]map[string]string, 0, len(d.RecentChats))
	for _, c := range d.RecentChats {
		chats = append(chats, map[string]string{
			"id":        c.ID,
			"preview":   c.Preview,
			"timestamp": c.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeOK(w, envelope{
		"user":                map[string]string{"name": d.Name, "email": d.Email},
		"next_appointment":    appt,
		"recent_chats":        chats,
		"has_medical_records": d.HasMedicalRecords,
	})
}

// --- conversations ---

type conversationDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageDTO struct {
	ID        string      `json:"id"`
	Role      models.Role `json:"role"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

func toConversationDTO(c models.Conversation) conversationDTO {
	return conversationDTO{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt.UTC(), UpdatedAt: c.UpdatedAt.UTC()}
}

func (h *handlers) listConversations(w http.ResponseWriter, r *http.Request, userID string) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.fail(w, r, fmt.Errorf("%w: limit must be a non-negative integer", common.ErrorInvalidInput))
			return
		}
		limit = n
	}

	list, err := h.chat.ListConversations(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]conversationDTO, 0, len(list))
	for _, c := range list {
		out = append(out, toConversationDTO(c))
	}
	writeOK(w, envelope{"conversations": out})
}

func (h *handlers) getConversation(w http.ResponseWriter, r *http.Request, userID string) {
	view, err := h.chat.GetConversation(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	msgs := make([]messageDTO, 0, len(view.Messages))
	for _, m := range view.Messages {
		msgs = append(msgs, messageDTO{ID: m.ID, Role: m.Role, Message: m.Body, CreatedAt: m.CreatedAt.UTC()})
	}
	writeOK(w, envelope{"conversation": toConversationDTO(view.Conversation), "messages": msgs})
}

func (h *handlers) deleteConversation(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.chat.SoftDeleteConversation(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, envelope{"action": "deleted"})
}

func (h *handlers) clearConversation(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := h.chat.ClearConversation(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, envelope{"action": "cleared", "cleared": n})
}

func (h *handlers) deleteMessage(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.chat.SoftDeleteMessage(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, envelope{"action": "deleted"})
}

// --- chat ---

func (h *handlers) chatTurn(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversation_id"`
		LocalDateTime  string `json:"local_datetime"`
		Timezone       string `json:"timezone"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	turn, err := h.chat.SendMessage(r.Context(), userID, services.TurnRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		LocalDateTime:  req.LocalDateTime,
		Timezone:       req.Timezone,
	})
	if err != nil {
		if errors.Is(err, common.ErrorUpstream) && turn != nil {
			status, msg := statusFor(err)
			writeFailure(w, status, msg, envelope{
				"response":        turn.Reply,
				"conversation_id": turn.ConversationID,
				"user_message_id": turn.UserMessageID,
			})
			return
		}
		h.fail(w, r, err)
		return
	}

	body := envelope{
		"response":        turn.Reply,
		"conversation_id": turn.ConversationID,
		"user_message_id": turn.UserMessageID,
		"ai_message_id":   turn.AIMessageID,
		"title":           nil,
	}
	if turn.Title != "" {
		body["title"] = turn.Title
	}
	writeOK(w, body)
}

// --- records ---

type recordDTO struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Date    string `json:"date"`
	Content string `json:"content"`
	HasPDF  bool   `json:"has_pdf"`
}

func (h *handlers) listRecords(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.records.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]recordDTO, 0, len(list))
	for _, rec := range list {
		out = append(out, recordDTO{
			ID:      rec.ID,
			Title:   rec.Title,
			Type:    rec.Type,
			Date:    rec.Date.Format("2006-01-02"),
			Content: rec.Content,
			HasPDF:  rec.SourceFilename != "",
		})
	}
	writeOK(w, envelope{"records": out})
}

func (h *handlers) recordPDF(w http.ResponseWriter, r *http.Request, userID string) {
	pdf, err := h.records.OpenPDF(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer pdf.Body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": pdf.Name}))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if pdf.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(pdf.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, pdf.Body); err != nil {
		loggerFrom(r.Context(), h.logger).Warn(r.Context(), "pdf stream interrupted", "error", err)
	}
}

// --- probes ---

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			loggerFrom(r.Context(), h.logger).Warn(r.Context(), "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, envelope{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{"status": "ready"})
}
