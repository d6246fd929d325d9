// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"inkpost/internal/metrics"
	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/session"
	"inkpost/internal/store"
	"inkpost/internal/token"
)

// totpIssuer is the account issuer shown in authenticator apps.
const totpIssuer = "inkpost"

// Login outcomes recorded in metrics.
const (
	loginOK          = "success"
	loginBadPassword = "invalid_credentials"
	loginOTP         = "otp_required"
)

// Auth groups the authentication handlers.
type Auth struct {
	users   *store.UserStore
	ledger  *session.Store
	issuer  *token.Issuer
	metrics *metrics.Metrics
}

// NewAuth creates a new Auth handler group.
func NewAuth(users *store.UserStore, ledger *session.Store, issuer *token.Issuer, m *metrics.Metrics) *Auth {
	return &Auth{users: users, ledger: ledger, issuer: issuer, metrics: m}
}

// authResponse is returned by every endpoint that issues a credential.
type authResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

// issue signs a credential for user, records it in the ledger, and writes
// it to the client.
func (a *Auth) issue(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	raw, claims, err := a.issuer.Sign(user)
	if err != nil {
		serverError(w, "sign credential failed", err, "user_id", user.ID)
		return
	}
	err = a.ledger.Create(r.Context(), claims.ID, &session.Data{
		UserID:    user.ID,
		Role:      user.Role,
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		CreatedAt: time.Now(),
	}, a.issuer.TTL())
	if err != nil {
		serverError(w, "record credential failed", err, "user_id", user.ID)
		return
	}
	writeJSON(w, status, authResponse{
		Token:     raw,
		TokenType: "Bearer",
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	})
}

// Register creates a regular account and logs it in.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if errs := in.validate(); errs.any() {
		writeValidation(w, errs)
		return
	}

	user, err := a.users.Create(r.Context(), strings.TrimSpace(in.Name), in.Email, in.Password, models.RoleUser)
	if errors.Is(err, store.ErrEmailTaken) {
		writeValidation(w, fieldErrors{"email": {"The email has already been taken."}})
		return
	}
	if err != nil {
		serverError(w, "register failed", err)
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	a.issue(w, r, user, http.StatusCreated)
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

// Login verifies the email and password, and the one-time code when the
// account has two-factor authentication enabled.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if !decodeJSON(w, r, &in) {
		return
	}
	errs := fieldErrors{}
	required(errs, "email", "Email", in.Email)
	required(errs, "password", "Password", in.Password)
	if errs.any() {
		writeValidation(w, errs)
		return
	}

	user, err := a.users.FindByEmail(r.Context(), in.Email)
	if err != nil {
		serverError(w, "login lookup failed", err)
		return
	}
	if user == nil || !a.users.CheckPassword(user, in.Password) {
		a.metrics.RecordLogin(r.Context(), loginBadPassword)
		writeError(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	if user.TOTPEnabled && user.TOTPSecret != nil {
		code := strings.TrimSpace(in.OTP)
		if code == "" {
			a.metrics.RecordLogin(r.Context(), loginOTP)
			writeValidation(w, fieldErrors{"otp": {"A one-time code is required."}})
			return
		}
		if !totp.Validate(code, *user.TOTPSecret) {
			a.metrics.RecordLogin(r.Context(), loginOTP)
			writeValidation(w, fieldErrors{"otp": {"The one-time code is invalid."}})
			return
		}
	}

	a.metrics.RecordLogin(r.Context(), loginOK)
	slog.Info("user logged in", "user_id", user.ID)
	a.issue(w, r, user, http.StatusOK)
}

// Logout revokes the credential used for the request.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if err := a.ledger.Revoke(r.Context(), p.Claims.ID); err != nil {
		serverError(w, "revoke credential failed", err, "user_id", p.User.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

// Refresh swaps the request's credential for a fresh one.
func (a *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	if err := a.ledger.Revoke(r.Context(), p.Claims.ID); err != nil {
		serverError(w, "revoke credential failed", err, "user_id", p.User.ID)
		return
	}
	a.issue(w, r, p.User, http.StatusOK)
}

// Profile returns the authenticated principal.
func (a *Auth) Profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse{User: middleware.UserFromCtx(r.Context())})
}

// UpdateProfile changes the principal's name, email and optionally the
// password. A password change revokes every other credential of the user.
func (a *Auth) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	var in profileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if errs := in.validate(); errs.any() {
		writeValidation(w, errs)
		return
	}
	if in.Password != "" && !a.users.CheckPassword(p.User, in.CurrentPassword) {
		writeValidation(w, fieldErrors{"current_password": {"The current password is incorrect."}})
		return
	}

	user, err := a.users.UpdateProfile(r.Context(), p.User.ID, strings.TrimSpace(in.Name), in.Email)
	if errors.Is(err, store.ErrEmailTaken) {
		writeValidation(w, fieldErrors{"email": {"The email has already been taken."}})
		return
	}
	if err != nil {
		serverError(w, "update profile failed", err, "user_id", p.User.ID)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}

	if in.Password != "" {
		if err := a.users.UpdatePassword(r.Context(), user.ID, in.Password); err != nil {
			serverError(w, "update password failed", err, "user_id", user.ID)
			return
		}
		n, err := a.ledger.RevokeUser(r.Context(), user.ID, p.Claims.ID)
		if err != nil {
			slog.Warn("revoke other credentials failed", "user_id", user.ID, "error", err)
		} else {
			slog.Info("password changed", "user_id", user.ID, "revoked", n)
		}
	}

	writeJSON(w, http.StatusOK, userResponse{User: user})
}

type twoFASetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
	QRCode string `json:"qr_code"`
}

// TwoFASetup generates a new TOTP secret for the principal. Two-factor
// login stays off until the secret is confirmed through TwoFAEnable.
func (a *Auth) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user.TOTPEnabled {
		writeError(w, http.StatusConflict, "Two-factor authentication is already enabled.")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		serverError(w, "totp generate failed", err)
		return
	}
	if err := a.users.SetTOTPSecret(r.Context(), user.ID, key.Secret()); err != nil {
		serverError(w, "save totp secret failed", err, "user_id", user.ID)
		return
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		serverError(w, "qr code generation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, twoFASetupResponse{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG),
	})
}

type twoFAEnableInput struct {
	Code string `json:"code"`
}

// TwoFAEnable turns two-factor login on once the user proves the
// authenticator produces valid codes for the pending secret.
func (a *Auth) TwoFAEnable(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromCtx(r.Context())
	var in twoFAEnableInput
	if !decodeJSON(w, r, &in) {
		return
	}

	// Re-read the user: the principal was loaded before the setup call
	// stored a secret.
	user, err := a.users.FindByID(r.Context(), p.User.ID)
	if err != nil {
		serverError(w, "load user failed", err, "user_id", p.User.ID)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	if user.TOTPEnabled {
		writeError(w, http.StatusConflict, "Two-factor authentication is already enabled.")
		return
	}
	if user.TOTPSecret == nil {
		writeValidation(w, fieldErrors{"code": {"Start two-factor setup first."}})
		return
	}
	if !totp.Validate(strings.TrimSpace(in.Code), *user.TOTPSecret) {
		writeValidation(w, fieldErrors{"code": {"The one-time code is invalid."}})
		return
	}

	if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
		serverError(w, "enable totp failed", err, "user_id", user.ID)
		return
	}
	user.TOTPEnabled = true
	slog.Info("2fa enabled", "user_id", user.ID)
	writeJSON(w, http.StatusOK, userResponse{User: user})
}
