package transport

import (
	"net/http"

	"pharmacy-store/internal/middleware"
)

// currentUser returns the authenticated caller or answers 401
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok || userID == "" {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}
