package portal

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"
)

var (
	cardNumberPattern = regexp.MustCompile(`^\d{11}$`)
	pinPattern        = regexp.MustCompile(`^\d{4}$`)
)

// LoginRequest carries the patient's SUS card number and PIN.
type LoginRequest struct {
	CardNumber string `json:"card_number"`
	PIN        string `json:"pin"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	PatientID string    `json:"patient_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidCredentials checks the credential format only: an 11-digit card
// number and a 4-digit PIN. No account lookup is performed.
func ValidCredentials(cardNumber, pin string) bool {
	return cardNumberPattern.MatchString(cardNumber) && pinPattern.MatchString(pin)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !ValidCredentials(req.CardNumber, req.PIN) {
		h.observeLogin(false)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: MsgInvalidCredentials})
		return
	}

	session, err := h.sessions.Issue(req.CardNumber)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.observeLogin(true)
	h.logger.Info("patient logged in", "session_id", session.ID)

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		PatientID: session.PatientID,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) observeLogin(success bool) {
	if h.logins != nil {
		h.logins.ObserveLogin(success)
	}
}
