package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/MrEthical07/tripAuth/permission"
)

// DeactivatedMessage is the fixed message for requests from soft-deleted members.
const DeactivatedMessage = "account is deactivated; restore it to continue"

// RsData is the response envelope every endpoint returns. Code is
// "<status>-<n>"; its prefix is the HTTP status.
type RsData[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data,omitempty"`
}

// Empty is the Data payload of responses that carry none.
type Empty struct{}

// Problem is the HTTP rendering of an error.
type Problem struct {
	Status int
	Code   string
	Msg    string
}

// Describe maps an engine error to its status, stable code and message.
// Unknown errors are reported as 500 without detail.
func Describe(err error) Problem {
	switch {
	case err == nil:
		return Problem{http.StatusOK, "200-1", "ok"}
	case errors.Is(err, tripAuth.ErrInvalidCredentials):
		return Problem{http.StatusUnauthorized, "401-1", "invalid username or password"}
	case errors.Is(err, tripAuth.ErrUnauthenticated):
		return Problem{http.StatusUnauthorized, "401-2", "authentication required"}
	case errors.Is(err, tripAuth.ErrTokenMalformed):
		return Problem{http.StatusUnauthorized, "401-3", "invalid token"}
	case errors.Is(err, tripAuth.ErrTokenExpired):
		return Problem{http.StatusUnauthorized, "401-4", "token expired"}
	case errors.Is(err, tripAuth.ErrTokenRevoked):
		return Problem{http.StatusUnauthorized, "401-5", "logged out token"}
	case errors.Is(err, tripAuth.ErrRegistryMismatch):
		return Problem{http.StatusUnauthorized, "401-6", "invalid token"}
	case errors.Is(err, tripAuth.ErrAccountUnverified):
		return Problem{http.StatusUnauthorized, "401-7", "email not verified"}
	case errors.Is(err, tripAuth.ErrRegistryUnavailable):
		return Problem{http.StatusUnauthorized, "401-8", "authentication unavailable"}
	case errors.Is(err, tripAuth.ErrAccountDeleted):
		return Problem{http.StatusForbidden, "403", DeactivatedMessage}
	case errors.Is(err, tripAuth.ErrForbidden):
		msg := "forbidden"
		var fe *permission.ForbiddenError
		if errors.As(err, &fe) {
			msg = fe.Error()
		}
		return Problem{http.StatusForbidden, "403-1", msg}
	case errors.Is(err, tripAuth.ErrAccountPurged):
		return Problem{http.StatusForbidden, "403-2", "account permanently deleted"}
	case errors.Is(err, tripAuth.ErrLoginRateLimited):
		return Problem{http.StatusTooManyRequests, "429-1", "too many login attempts"}
	case errors.Is(err, tripAuth.ErrInvalidRequest):
		return Problem{http.StatusBadRequest, "400-1", "invalid request"}
	case errors.Is(err, tripAuth.ErrRestoreNotAllowed):
		return Problem{http.StatusConflict, "409-1", "account cannot be restored"}
	case errors.Is(err, tripAuth.ErrOAuthState):
		return Problem{http.StatusBadRequest, "400-2", "invalid oauth state"}
	case errors.Is(err, tripAuth.ErrOAuthExchange):
		return Problem{http.StatusBadGateway, "502-1", "federated login failed"}
	default:
		return Problem{http.StatusInternalServerError, "500-1", "internal error"}
	}
}

// WriteJSON writes v as a JSON body with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOK writes a 200 RsData with code 200-1.
func WriteOK[T any](w http.ResponseWriter, msg string, data T) {
	WriteJSON(w, http.StatusOK, RsData[T]{Code: "200-1", Msg: msg, Data: data})
}

// WriteError writes the RsData rendering of err.
func WriteError(w http.ResponseWriter, err error) {
	p := Describe(err)
	WriteJSON(w, p.Status, RsData[*Empty]{Code: p.Code, Msg: p.Msg})
}

type deactivatedBody struct {
	ResultCode string `json:"resultCode"`
	Msg        string `json:"msg"`
}

// writeDeactivated writes the fixed 403 body of the deletion gate.
func writeDeactivated(w http.ResponseWriter) {
	WriteJSON(w, http.StatusForbidden, deactivatedBody{ResultCode: "403", Msg: DeactivatedMessage})
}
