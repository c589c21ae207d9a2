package auth

import "net/http"

const docTag = "auth"

func (h *Handler) document() {
	if h.docs == nil {
		return
	}

	h.docs.Tag(docTag, "Session login and logout")

	h.docs.Operation(http.MethodPost, "/login").
		Summary("Log in with email and password").
		Description("Starts a new session. When two-factor authentication is enabled the response points at the verify page.").
		Tags(docTag).
		Body(LoginRequest{}, "Credentials").
		Response(http.StatusOK, LoginResponse{}, "Logged in; sets the session cookie").
		Response(http.StatusUnauthorized, ErrorResponse{}, "Invalid email or password").
		Build()

	h.docs.Operation(http.MethodPost, "/logout").
		Summary("End the current session").
		Tags(docTag).
		Response(http.StatusOK, LogoutResponse{}, "Logged out").
		RequiresSession().
		Build()

	h.docs.Operation(http.MethodGet, "/api/me").
		Summary("Current user").
		Tags(docTag).
		Response(http.StatusOK, MeResponse{}, "The authenticated user").
		Response(http.StatusUnauthorized, ErrorResponse{}, "No session").
		RequiresSession().
		Build()
}
