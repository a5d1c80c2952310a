package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	oautherrors "github.com/tendant/simple-oauth/internal/errors"
	"github.com/tendant/simple-oauth/internal/oauth"
)

// UserResolver supplies the authenticated user for a request. Identity is
// the host's concern: the resolver typically reads a session or upstream
// auth middleware result and returns an opaque user identifier.
type UserResolver func(r *http.Request) (string, error)

// HeaderUserResolver resolves the user from a trusted reverse-proxy header.
// It is the default for embedding hosts that terminate authentication
// upstream; standalone deployments must install their own resolver.
func HeaderUserResolver(header string) UserResolver {
	return func(r *http.Request) (string, error) {
		userID := r.Header.Get(header)
		if userID == "" {
			return "", oautherrors.InvalidRequest("user is not authenticated")
		}
		return userID, nil
	}
}

// OAuthHandler handles the OAuth 2.1 protocol endpoints.
type OAuthHandler struct {
	authorizeService *oauth.AuthorizeService
	tokenService     *oauth.TokenService
	resolveUser      UserResolver
	logger           *slog.Logger
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(
	authorizeService *oauth.AuthorizeService,
	tokenService *oauth.TokenService,
	resolveUser UserResolver,
	logger *slog.Logger,
) *OAuthHandler {
	return &OAuthHandler{
		authorizeService: authorizeService,
		tokenService:     tokenService,
		resolveUser:      resolveUser,
		logger:           logger,
	}
}

// approvalResponse is returned when the user must approve the request. The
// host renders it; ticket is the only value the decision endpoint accepts.
type approvalResponse struct {
	ApprovalRequired bool   `json:"approval_required"`
	Ticket           string `json:"ticket"`
	ClientID         string `json:"client_id"`
	ClientName       string `json:"client_name"`
	Scope            string `json:"scope,omitempty"`
	RedirectURI      string `json:"redirect_uri"`
	State            string `json:"state,omitempty"`
}

// Authorize handles GET/POST /authorize - the authorization endpoint.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.authorizeService.ParseAuthorizeRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Until the client and redirect URI check out, every failure is a
	// non-redirecting error page: redirecting to an unverified target would
	// make this server an open redirector.
	client, err := h.authorizeService.ValidateClient(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	userID, err := h.resolveUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             oautherrors.CodeInvalidRequest,
			"error_description": "user is not authenticated",
		})
		return
	}

	// The redirect URI is known-valid from here on; errors may redirect.
	if err := h.authorizeService.ValidatePKCE(client, req); err != nil {
		h.redirectError(w, r, req, err)
		return
	}

	result, err := h.authorizeService.Authorize(ctx, client, req, userID)
	if err != nil {
		h.logger.Error("authorization failed", "client_id", req.ClientID, "error", err)
		h.redirectError(w, r, req, err)
		return
	}

	if result.RedirectURL != "" {
		h.logger.Info("authorization code issued", "client_id", req.ClientID, "user_id", userID)
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, approvalResponse{
		ApprovalRequired: true,
		Ticket:           result.Approval.Ticket,
		ClientID:         result.Approval.ClientID,
		ClientName:       result.Approval.ClientName,
		Scope:            result.Approval.Scope,
		RedirectURI:      result.Approval.RedirectURI,
		State:            result.Approval.State,
	})
}

// Decision handles POST /authorize/decision - the user's approval or denial
// of a pending authorization.
func (h *OAuthHandler) Decision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.writeError(w, oautherrors.InvalidRequest("invalid form data"))
		return
	}
	ticket := r.FormValue("ticket")
	if ticket == "" {
		h.writeError(w, oautherrors.InvalidRequest("ticket is required"))
		return
	}

	userID, err := h.resolveUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             oautherrors.CodeInvalidRequest,
			"error_description": "user is not authenticated",
		})
		return
	}

	var redirectURL string
	switch r.FormValue("decision") {
	case "approve":
		autoRenew := r.FormValue("remember") != "false"
		redirectURL, err = h.authorizeService.Approve(ctx, ticket, userID, autoRenew)
	case "deny":
		redirectURL, err = h.authorizeService.Deny(ctx, ticket, userID)
	default:
		h.writeError(w, oautherrors.InvalidRequest("decision must be 'approve' or 'deny'"))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// Token handles POST /token - the token endpoint.
func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.tokenService.ParseTokenRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var resp *oauth.TokenResponse
	switch req.GrantType {
	case "authorization_code":
		resp, err = h.tokenService.HandleAuthorizationCode(ctx, req)
	case "refresh_token":
		resp, err = h.tokenService.HandleRefreshToken(ctx, req)
	default:
		err = oautherrors.UnsupportedGrantType(req.GrantType)
	}
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeServerError) {
			h.logger.Error("token request failed", "grant_type", req.GrantType, "error", err)
		}
		h.writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

// Revoke handles POST /revoke - token revocation (RFC 7009).
func (h *OAuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	req, err := h.tokenService.ParseRevocationRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.tokenService.HandleRevocation(r.Context(), req); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Introspect handles POST /introspect - token introspection (RFC 7662).
func (h *OAuthHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	req, err := h.tokenService.ParseIntrospectionRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.tokenService.HandleIntrospection(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// redirectError sends an OAuth error to the client's validated redirect URI,
// preserving state.
func (h *OAuthHandler) redirectError(w http.ResponseWriter, r *http.Request, req *oauth.AuthorizeRequest, err error) {
	code, description := oautherrors.OAuthCode(err)
	redirectURL := oauth.BuildErrorRedirect(req.RedirectURI, code, description, req.State)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// writeError renders an error as a non-redirecting JSON body with the OAuth
// error vocabulary. Storage faults keep their 500 status; they are
// infrastructure problems, not protocol ones.
func (h *OAuthHandler) writeError(w http.ResponseWriter, err error) {
	status := oautherrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	code, description := oautherrors.OAuthCode(err)
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
