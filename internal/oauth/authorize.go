package oauth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-oauth/internal/consent"
	"github.com/tendant/simple-oauth/internal/crypto"
	"github.com/tendant/simple-oauth/internal/domain"
	oautherrors "github.com/tendant/simple-oauth/internal/errors"
	"github.com/tendant/simple-oauth/internal/metrics"
	"github.com/tendant/simple-oauth/internal/store"
)

// approvalTicketBytes is the entropy of an approval anti-forgery ticket.
const approvalTicketBytes = 32

// AuthorizeRequest represents a parsed authorization request.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ContextProvider lets the host attach an opaque secret payload (e.g.
// upstream provider tokens) to a grant at issuance time. A nil provider or
// empty payload means the grant carries no context.
type ContextProvider func(ctx context.Context, userID, clientID, scope string) ([]byte, error)

// AuthorizeResult is the outcome of an authorization request: either a
// redirect carrying a freshly issued code, or a pending approval the host
// must put in front of the user.
type AuthorizeResult struct {
	RedirectURL string
	Approval    *ApprovalChallenge
}

// ApprovalChallenge carries everything the host needs to render a consent
// prompt. Ticket is single-use and time-boxed; it is the only value the
// decision endpoint accepts.
type ApprovalChallenge struct {
	Ticket      string
	ClientID    string
	ClientName  string
	Scope       string
	RedirectURI string
	State       string
}

// AuthorizeService handles authorization requests and grant issuance.
type AuthorizeService struct {
	clients   store.ClientRepository
	grants    store.GrantRepository
	approvals store.ApprovalRepository
	consents  *consent.Manager

	codeTTL     time.Duration
	approvalTTL time.Duration
	strict      bool

	contextProvider ContextProvider
}

// AuthorizeOption configures the AuthorizeService.
type AuthorizeOption func(*AuthorizeService)

// WithContextProvider installs a hook that supplies per-grant context data.
func WithContextProvider(p ContextProvider) AuthorizeOption {
	return func(s *AuthorizeService) {
		s.contextProvider = p
	}
}

// NewAuthorizeService creates a new AuthorizeService. In strict mode public
// clients must present a PKCE challenge.
func NewAuthorizeService(
	clients store.ClientRepository,
	grants store.GrantRepository,
	approvals store.ApprovalRepository,
	consents *consent.Manager,
	codeTTL, approvalTTL time.Duration,
	strict bool,
	opts ...AuthorizeOption,
) *AuthorizeService {
	s := &AuthorizeService{
		clients:     clients,
		grants:      grants,
		approvals:   approvals,
		consents:    consents,
		codeTTL:     codeTTL,
		approvalTTL: approvalTTL,
		strict:      strict,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseAuthorizeRequest parses an authorization request from query or form
// parameters and validates its shape.
func (s *AuthorizeService) ParseAuthorizeRequest(r *http.Request) (*AuthorizeRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, oautherrors.InvalidRequest("invalid form data")
	}

	req := &AuthorizeRequest{
		ClientID:            r.FormValue("client_id"),
		RedirectURI:         r.FormValue("redirect_uri"),
		ResponseType:        r.FormValue("response_type"),
		Scope:               r.FormValue("scope"),
		State:               r.FormValue("state"),
		CodeChallenge:       r.FormValue("code_challenge"),
		CodeChallengeMethod: r.FormValue("code_challenge_method"),
	}

	if req.ClientID == "" {
		return nil, oautherrors.InvalidRequest("client_id is required")
	}
	if req.RedirectURI == "" {
		return nil, oautherrors.InvalidRequest("redirect_uri is required")
	}
	// Deprecated flows (implicit, hybrid) are rejected, never downgraded.
	if req.ResponseType != "code" {
		return nil, oautherrors.UnsupportedResponseType(req.ResponseType)
	}

	return req, nil
}

// ValidateClient resolves the client and validates the redirect URI by exact
// match against the registered set. Any error from this method must be
// rendered without redirecting: the redirect target is still unverified, and
// redirecting would make the server an open redirector.
func (s *AuthorizeService) ValidateClient(ctx context.Context, req *AuthorizeRequest) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			return nil, oautherrors.InvalidRequest("unknown client_id")
		}
		return nil, err
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		return nil, oautherrors.InvalidRequest("redirect_uri is not registered for this client")
	}

	return client, nil
}

// ValidatePKCE checks the challenge parameters and, in strict mode, requires
// a challenge for public clients. Errors from this method may be redirected:
// the redirect URI is already known-valid.
func (s *AuthorizeService) ValidatePKCE(client *domain.Client, req *AuthorizeRequest) error {
	if req.CodeChallenge == "" {
		if s.strict && client.Public() {
			return oautherrors.InvalidRequest("code_challenge is required for public clients")
		}
		return nil
	}

	if req.CodeChallengeMethod == "" {
		req.CodeChallengeMethod = CodeChallengePlain // default per RFC 7636
	}
	if req.CodeChallengeMethod != CodeChallengeS256 && req.CodeChallengeMethod != CodeChallengePlain {
		return oautherrors.InvalidRequest("code_challenge_method must be 'S256' or 'plain'")
	}
	return nil
}

// Authorize runs the consent check for an already-validated request. With a
// valid, sufficiently scoped consent on file the grant is issued immediately;
// otherwise a single-use approval ticket is minted for the host to render.
func (s *AuthorizeService) Authorize(ctx context.Context, client *domain.Client, req *AuthorizeRequest, userID string) (*AuthorizeResult, error) {
	existing, err := s.consents.Check(ctx, userID, client.ID, req.Scope)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.RecordConsentCheck("hit")
		redirectURL, err := s.issueGrant(ctx, client, req, userID)
		if err != nil {
			return nil, err
		}
		return &AuthorizeResult{RedirectURL: redirectURL}, nil
	}
	metrics.RecordConsentCheck("miss")

	ticket, err := crypto.NewSecret(approvalTicketBytes)
	if err != nil {
		return nil, oautherrors.ServerError("failed to generate approval ticket", err)
	}
	now := time.Now()
	approval := &domain.ApprovalRequest{
		ClientID:            client.ID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.approvalTTL),
	}
	if err := s.approvals.Put(ctx, ticket, approval, s.approvalTTL); err != nil {
		return nil, err
	}

	return &AuthorizeResult{
		Approval: &ApprovalChallenge{
			Ticket:      ticket,
			ClientID:    client.ID,
			ClientName:  client.Name,
			Scope:       req.Scope,
			RedirectURI: req.RedirectURI,
			State:       req.State,
		},
	}, nil
}

// Approve consumes an approval ticket, persists the consent decision, and
// issues a grant. The ticket is single-use: a second presentation fails.
func (s *AuthorizeService) Approve(ctx context.Context, ticket, userID string, autoRenew bool) (string, error) {
	approval, err := s.consumeTicket(ctx, ticket, userID)
	if err != nil {
		return "", err
	}

	// The ticket bound a specific (client, redirect_uri) pair; the client
	// must still exist and still register that URI.
	client, err := s.clients.GetByID(ctx, approval.ClientID)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			return "", oautherrors.InvalidRequest("unknown client_id")
		}
		return "", err
	}
	if !client.AllowsRedirectURI(approval.RedirectURI) {
		return "", oautherrors.InvalidRequest("redirect_uri is not registered for this client")
	}

	if _, err := s.consents.Grant(ctx, userID, client.ID, approval.Scope, autoRenew); err != nil {
		return "", err
	}

	req := &AuthorizeRequest{
		ClientID:            approval.ClientID,
		RedirectURI:         approval.RedirectURI,
		Scope:               approval.Scope,
		State:               approval.State,
		CodeChallenge:       approval.CodeChallenge,
		CodeChallengeMethod: approval.CodeChallengeMethod,
	}
	return s.issueGrant(ctx, client, req, userID)
}

// Deny consumes an approval ticket and returns the access_denied redirect.
func (s *AuthorizeService) Deny(ctx context.Context, ticket, userID string) (string, error) {
	approval, err := s.consumeTicket(ctx, ticket, userID)
	if err != nil {
		return "", err
	}
	return BuildErrorRedirect(approval.RedirectURI, oautherrors.CodeAccessDenied, "the user denied the request", approval.State), nil
}

func (s *AuthorizeService) consumeTicket(ctx context.Context, ticket, userID string) (*domain.ApprovalRequest, error) {
	approval, err := s.approvals.Consume(ctx, ticket)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			return nil, oautherrors.InvalidRequest("approval ticket is invalid or already used")
		}
		return nil, err
	}
	if approval.IsExpired() {
		return nil, oautherrors.InvalidRequest("approval ticket has expired")
	}
	if approval.UserID != userID {
		return nil, oautherrors.InvalidRequest("approval ticket does not belong to this user")
	}
	return approval, nil
}

// issueGrant mints a grant and its code, binds the request parameters, and
// returns the redirect URL carrying the code. The code embeds the grant id
// so a replayed code can be traced back to its family even after the grant
// record is consumed.
func (s *AuthorizeService) issueGrant(ctx context.Context, client *domain.Client, req *AuthorizeRequest, userID string) (string, error) {
	grantID := uuid.New().String()
	code, err := crypto.NewCode(grantID)
	if err != nil {
		return "", oautherrors.ServerError("failed to generate authorization code", err)
	}

	now := time.Now()
	grant := &domain.Grant{
		ID:                  grantID,
		ClientID:            client.ID,
		UserID:              userID,
		Scope:               req.Scope,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.codeTTL),
	}

	if s.contextProvider != nil {
		data, err := s.contextProvider(ctx, userID, client.ID, req.Scope)
		if err != nil {
			return "", oautherrors.ServerError("context provider failed", err)
		}
		if len(data) > 0 {
			sealed, err := crypto.SealContext(data, code)
			if err != nil {
				return "", oautherrors.ServerError("failed to encrypt grant context", err)
			}
			grant.Context = sealed
		}
	}

	if err := s.grants.Put(ctx, code, grant, s.codeTTL); err != nil {
		return "", err
	}

	metrics.RecordGrantIssued()

	return BuildCodeRedirect(req.RedirectURI, code, req.State), nil
}

// BuildCodeRedirect builds the redirect URL carrying the authorization code
// and, if present, the client's state.
func BuildCodeRedirect(redirectURI, code, state string) string {
	u, _ := url.Parse(redirectURI)
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// BuildErrorRedirect builds the redirect URL carrying an OAuth error. Only
// call this once the redirect URI has been validated against the client.
func BuildErrorRedirect(redirectURI, errorCode, errorDescription, state string) string {
	u, _ := url.Parse(redirectURI)
	q := u.Query()
	q.Set("error", errorCode)
	if errorDescription != "" {
		q.Set("error_description", errorDescription)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
