package http

import (
	"context"
	"net/http"
	"time"
)

type OTP interface {
	Send(ctx context.Context, phone string) error
	Verify(ctx context.Context, userID, phone, code string) error
}

type PasswordReset interface {
	Start(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) (string, error)
	Complete(ctx context.Context, token, newPassword string) error
}

type OTPHandler struct {
	otp     OTP
	reset   PasswordReset
	timeout time.Duration
}

func NewOTPHandler(otp OTP, reset PasswordReset, timeout time.Duration) *OTPHandler {
	return &OTPHandler{
		otp:     otp,
		reset:   reset,
		timeout: timeout,
	}
}

type PhoneDTO struct {
	Phone string `json:"phone"`
}

type PhoneCodeDTO struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type ResetCompleteDTO struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type MessageDTO struct {
	Message string `json:"message"`
}

type ResetTokenDTO struct {
	Token string `json:"token"`
}

// POST /send-otp
func (h *OTPHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req PhoneDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.otp.Send(ctx, req.Phone); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageDTO{Message: "verification code sent"})
}

// POST /verify-otp
// Authenticated callers get the phone marked verified on their profile.
func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req PhoneCodeDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.otp.Verify(ctx, getUserIDFromContext(r.Context()), req.Phone, req.Code); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageDTO{Message: "phone verified"})
}

// POST /password-reset/start
// The response is the same whether or not the phone belongs to an account.
func (h *OTPHandler) StartPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PhoneDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.reset.Start(ctx, req.Phone); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageDTO{Message: "if the number is registered, a code has been sent"})
}

// POST /password-reset/verify
func (h *OTPHandler) VerifyPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PhoneCodeDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token, err := h.reset.Verify(ctx, req.Phone, req.Code)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ResetTokenDTO{Token: token})
}

// POST /password-reset/complete
func (h *OTPHandler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetCompleteDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.reset.Complete(ctx, req.Token, req.NewPassword); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageDTO{Message: "password updated"})
}
