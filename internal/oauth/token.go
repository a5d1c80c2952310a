package oauth

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-oauth/internal/crypto"
	"github.com/tendant/simple-oauth/internal/domain"
	oautherrors "github.com/tendant/simple-oauth/internal/errors"
	"github.com/tendant/simple-oauth/internal/metrics"
	"github.com/tendant/simple-oauth/internal/store"
)

// TokenRequest represents a parsed token request.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	RefreshToken string
}

// TokenResponse represents the token endpoint response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// RevocationRequest represents a token revocation request (RFC 7009).
type RevocationRequest struct {
	Token         string
	TokenTypeHint string // "access_token" or "refresh_token"
	ClientID      string
	ClientSecret  string
}

// IntrospectionRequest represents a token introspection request (RFC 7662).
type IntrospectionRequest struct {
	Token         string
	TokenTypeHint string // "access_token" or "refresh_token"
	ClientID      string
	ClientSecret  string
}

// IntrospectionResponse represents the introspection response.
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`
}

// TokenService handles code exchange, refresh rotation, revocation, and
// introspection.
type TokenService struct {
	clients  store.ClientRepository
	grants   store.GrantRepository
	tokens   store.TokenRepository
	families store.GrantFamilyRepository

	accessTTL   time.Duration
	refreshTTL  time.Duration
	maxLifetime time.Duration
	gracePeriod time.Duration
	strict      bool
	issuer      string
}

// NewTokenService creates a new TokenService. maxLifetime caps the total
// authorization lifetime measured from the originating grant's creation;
// gracePeriod bounds how long a rotated refresh token stays honorable. In
// strict mode every refresh rotates the refresh token.
func NewTokenService(
	clients store.ClientRepository,
	grants store.GrantRepository,
	tokens store.TokenRepository,
	families store.GrantFamilyRepository,
	issuer string,
	accessTTL, refreshTTL, maxLifetime, gracePeriod time.Duration,
	strict bool,
) *TokenService {
	return &TokenService{
		clients:     clients,
		grants:      grants,
		tokens:      tokens,
		families:    families,
		issuer:      issuer,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		maxLifetime: maxLifetime,
		gracePeriod: gracePeriod,
		strict:      strict,
	}
}

// ParseTokenRequest parses a token request from the HTTP request. Client
// credentials may arrive as form fields or HTTP Basic auth.
func (s *TokenService) ParseTokenRequest(r *http.Request) (*TokenRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, oautherrors.InvalidRequest("invalid form data")
	}

	req := &TokenRequest{
		GrantType:    r.FormValue("grant_type"),
		Code:         r.FormValue("code"),
		RedirectURI:  r.FormValue("redirect_uri"),
		ClientID:     r.FormValue("client_id"),
		ClientSecret: r.FormValue("client_secret"),
		CodeVerifier: r.FormValue("code_verifier"),
		RefreshToken: r.FormValue("refresh_token"),
	}
	applyBasicAuth(r, &req.ClientID, &req.ClientSecret)

	if req.GrantType == "" {
		return nil, oautherrors.InvalidRequest("grant_type is required")
	}

	return req, nil
}

// HandleAuthorizationCode handles the authorization_code grant type.
func (s *TokenService) HandleAuthorizationCode(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, oautherrors.InvalidRequest("code is required")
	}

	// Client authentication comes first, independent of whether the code
	// exists, so code validity is never leaked to an unauthenticated caller.
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	// Read-then-delete in a single operation: this is the single-use
	// enforcement point, and it runs before any further validation so a
	// doomed code cannot be retried with corrected parameters.
	grant, err := s.grants.Consume(ctx, req.Code)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			// A consumed code still names its grant. If tokens from a
			// first exchange survive, this presentation is a replay and
			// the whole family burns, revoking whatever the first caller
			// walked away with. A code that never existed parses to no
			// family, so nothing is revealed about code validity.
			if grantID, ok := crypto.ParseCode(req.Code); ok {
				burned, ferr := s.invalidateFamily(ctx, grantID)
				if ferr != nil {
					return nil, ferr
				}
				if burned {
					metrics.RecordReplayDetected()
					return nil, oautherrors.InvalidGrant("authorization code has already been used")
				}
			}
			metrics.RecordExchange("invalid_code")
			return nil, oautherrors.InvalidGrant("authorization code is invalid or expired")
		}
		return nil, err
	}

	// Exchanged should never be observed true given atomic consumption, but
	// a backend without it may leave the flag as the only replay signal.
	// Replay burns the whole grant family before the error is returned.
	if grant.Exchanged {
		metrics.RecordReplayDetected()
		if _, err := s.invalidateFamily(ctx, grant.ID); err != nil {
			return nil, err
		}
		return nil, oautherrors.InvalidGrant("authorization code has already been used")
	}

	if grant.IsExpired() {
		metrics.RecordExchange("expired")
		return nil, oautherrors.InvalidGrant("authorization code has expired")
	}
	if grant.ClientID != client.ID {
		metrics.RecordExchange("client_mismatch")
		return nil, oautherrors.InvalidGrant("authorization code was issued to another client")
	}
	if grant.RedirectURI != "" {
		if req.RedirectURI == "" {
			return nil, oautherrors.InvalidGrant("redirect_uri is required")
		}
		if req.RedirectURI != grant.RedirectURI {
			return nil, oautherrors.InvalidGrant("redirect_uri mismatch")
		}
	}
	if err := VerifyCodeVerifier(req.CodeVerifier, grant.CodeChallenge, grant.CodeChallengeMethod); err != nil {
		metrics.RecordExchange("pkce_failure")
		return nil, err
	}
	if time.Since(grant.CreatedAt) > s.maxLifetime {
		return nil, oautherrors.InvalidGrant("authorization has exceeded its maximum lifetime")
	}

	var contextData []byte
	if grant.Context != nil {
		contextData, err = crypto.OpenContext(grant.Context, req.Code)
		if err != nil {
			return nil, oautherrors.ServerError("failed to decrypt grant context", err)
		}
	}

	resp, err := s.mintTokenPair(ctx, grant.UserID, client.ID, grant.Scope, grant.ID, grant.CreatedAt, "", contextData)
	if err != nil {
		return nil, err
	}

	metrics.RecordExchange("success")
	return resp, nil
}

// HandleRefreshToken handles the refresh_token grant type.
func (s *TokenService) HandleRefreshToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, oautherrors.InvalidRequest("refresh_token is required")
	}

	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	hash := crypto.HashToken(req.RefreshToken)
	rec, err := s.tokens.GetRefresh(ctx, hash)
	if err != nil && !oautherrors.IsCode(err, oautherrors.CodeNotFound) {
		return nil, err
	}

	if rec != nil && !rec.IsRotated {
		return s.refreshActive(ctx, client, req.RefreshToken, hash, rec)
	}

	// The token is gone or already rotated. With strict rotation a bounded
	// grace window absorbs a client racing two near-simultaneous refreshes:
	// the current head of the chain may still reference this token as its
	// predecessor while not yet having been used itself.
	if s.strict {
		return s.refreshWithinGrace(ctx, client, req.RefreshToken, hash, rec)
	}
	return nil, oautherrors.InvalidGrant("refresh token is invalid or expired")
}

// refreshActive is the normal rotation path: the presented token is the
// live head of its chain.
func (s *TokenService) refreshActive(ctx context.Context, client *domain.Client, token, hash string, rec *domain.RefreshToken) (*TokenResponse, error) {
	if err := s.validateRefresh(ctx, client, hash, rec); err != nil {
		return nil, err
	}

	var contextData []byte
	if rec.Context != nil {
		data, err := crypto.OpenContext(rec.Context, token)
		if err != nil {
			return nil, oautherrors.ServerError("failed to decrypt token context", err)
		}
		contextData = data
	}

	if !s.strict {
		// Rotation disabled: mint a fresh access token, keep the refresh
		// token as-is.
		resp, err := s.mintAccessOnly(ctx, rec, hash, contextData)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = token
		return resp, nil
	}

	// The predecessor becomes permanently invalid the moment its
	// replacement is used.
	if rec.PreviousTokenHash != "" {
		if err := s.tokens.DeleteRefresh(ctx, rec.PreviousTokenHash); err != nil {
			return nil, err
		}
	}

	// Mark the consumed record rotated but keep it around for the grace
	// period: a benign client retry should not hard-fail.
	now := time.Now()
	rec.IsRotated = true
	rec.RotatedAt = now
	if err := s.tokens.PutRefresh(ctx, hash, rec, s.gracePeriod); err != nil {
		return nil, err
	}

	resp, err := s.mintTokenPair(ctx, rec.UserID, rec.ClientID, rec.Scope, rec.GrantID, rec.CreatedAt, hash, contextData)
	if err != nil {
		return nil, err
	}

	metrics.RecordRotation("normal")
	return resp, nil
}

// refreshWithinGrace handles presentation of a superseded token. It is
// honored only while the chain head still lists it as predecessor, the head
// itself has not been used, and the grace period since rotation has not
// elapsed. The superseded record is deleted on use, so the grace path works
// at most once per token.
func (s *TokenService) refreshWithinGrace(ctx context.Context, client *domain.Client, token, hash string, rec *domain.RefreshToken) (*TokenResponse, error) {
	invalid := oautherrors.InvalidGrant("refresh token is invalid or expired")

	_, grantID, ok := crypto.ParseToken(token)
	if !ok {
		return nil, invalid
	}
	family, err := s.families.Get(ctx, grantID)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	head, err := s.tokens.GetRefresh(ctx, family.RefreshTokenHash)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if head.PreviousTokenHash != hash || head.IsRotated {
		return nil, invalid
	}
	if time.Since(head.IssuedAt) > s.gracePeriod {
		return nil, invalid
	}
	if err := s.validateRefresh(ctx, client, family.RefreshTokenHash, head); err != nil {
		return nil, err
	}

	// Context can only be recovered if the superseded record is still
	// present: the head's copy is wrapped to a token we do not hold.
	var contextData []byte
	if rec != nil && rec.Context != nil {
		data, err := crypto.OpenContext(rec.Context, token)
		if err != nil {
			return nil, oautherrors.ServerError("failed to decrypt token context", err)
		}
		contextData = data
	}

	// The superseded token is spent; the head is rotated by this use.
	if err := s.tokens.DeleteRefresh(ctx, hash); err != nil {
		return nil, err
	}
	now := time.Now()
	head.IsRotated = true
	head.RotatedAt = now
	if err := s.tokens.PutRefresh(ctx, family.RefreshTokenHash, head, s.gracePeriod); err != nil {
		return nil, err
	}

	resp, err := s.mintTokenPair(ctx, head.UserID, head.ClientID, head.Scope, head.GrantID, head.CreatedAt, family.RefreshTokenHash, contextData)
	if err != nil {
		return nil, err
	}

	metrics.RecordRotation("grace")
	return resp, nil
}

// validateRefresh applies the ownership, expiry, and maximum-lifetime checks
// shared by both refresh paths. Expiry and lifetime violations delete the
// record.
func (s *TokenService) validateRefresh(ctx context.Context, client *domain.Client, hash string, rec *domain.RefreshToken) error {
	if rec.ClientID != client.ID {
		return oautherrors.InvalidGrant("refresh token was issued to another client")
	}
	if rec.IsExpired() {
		if err := s.tokens.DeleteRefresh(ctx, hash); err != nil {
			return err
		}
		return oautherrors.InvalidGrant("refresh token has expired")
	}
	// Checked against the original authorization time, never the most
	// recent rotation.
	if time.Since(rec.CreatedAt) > s.maxLifetime {
		if err := s.tokens.DeleteRefresh(ctx, hash); err != nil {
			return err
		}
		return oautherrors.InvalidGrant("authorization has exceeded its maximum lifetime")
	}
	return nil
}

// mintTokenPair mints an access and refresh token, seals an independent
// context copy to each, records them under their hashes, and updates the
// grant-family index. createdAt is the originating grant's creation time and
// flows through unchanged.
func (s *TokenService) mintTokenPair(ctx context.Context, userID, clientID, scope, grantID string, createdAt time.Time, previousRefreshHash string, contextData []byte) (*TokenResponse, error) {
	now := time.Now()

	accessToken, err := crypto.NewToken(userID, grantID)
	if err != nil {
		return nil, oautherrors.ServerError("failed to generate access token", err)
	}
	refreshToken, err := crypto.NewToken(userID, grantID)
	if err != nil {
		return nil, oautherrors.ServerError("failed to generate refresh token", err)
	}

	accessRec := &domain.AccessToken{
		UserID:    userID,
		ClientID:  clientID,
		Scope:     scope,
		GrantID:   grantID,
		CreatedAt: createdAt,
		ExpiresAt: now.Add(s.accessTTL),
	}
	refreshRec := &domain.RefreshToken{
		UserID:            userID,
		ClientID:          clientID,
		Scope:             scope,
		GrantID:           grantID,
		CreatedAt:         createdAt,
		IssuedAt:          now,
		ExpiresAt:         now.Add(s.refreshTTL),
		PreviousTokenHash: previousRefreshHash,
	}

	if len(contextData) > 0 {
		if accessRec.Context, err = crypto.SealContext(contextData, accessToken); err != nil {
			return nil, oautherrors.ServerError("failed to encrypt token context", err)
		}
		if refreshRec.Context, err = crypto.SealContext(contextData, refreshToken); err != nil {
			return nil, oautherrors.ServerError("failed to encrypt token context", err)
		}
	}

	accessHash := crypto.HashToken(accessToken)
	refreshHash := crypto.HashToken(refreshToken)
	if err := s.tokens.PutAccess(ctx, accessHash, accessRec, s.accessTTL); err != nil {
		return nil, err
	}
	if err := s.tokens.PutRefresh(ctx, refreshHash, refreshRec, s.refreshTTL); err != nil {
		return nil, err
	}
	if err := s.families.Put(ctx, grantID, &domain.GrantTokens{
		AccessTokenHash:  accessHash,
		RefreshTokenHash: refreshHash,
		IssuedAt:         now,
	}, s.refreshTTL); err != nil {
		return nil, err
	}

	metrics.RecordTokenIssued("access")
	metrics.RecordTokenIssued("refresh")

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        scope,
	}, nil
}

// mintAccessOnly mints a fresh access token against an existing refresh
// record without rotating it (non-strict mode).
func (s *TokenService) mintAccessOnly(ctx context.Context, rec *domain.RefreshToken, refreshHash string, contextData []byte) (*TokenResponse, error) {
	now := time.Now()

	accessToken, err := crypto.NewToken(rec.UserID, rec.GrantID)
	if err != nil {
		return nil, oautherrors.ServerError("failed to generate access token", err)
	}
	accessRec := &domain.AccessToken{
		UserID:    rec.UserID,
		ClientID:  rec.ClientID,
		Scope:     rec.Scope,
		GrantID:   rec.GrantID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: now.Add(s.accessTTL),
	}
	if len(contextData) > 0 {
		if accessRec.Context, err = crypto.SealContext(contextData, accessToken); err != nil {
			return nil, oautherrors.ServerError("failed to encrypt token context", err)
		}
	}

	accessHash := crypto.HashToken(accessToken)
	if err := s.tokens.PutAccess(ctx, accessHash, accessRec, s.accessTTL); err != nil {
		return nil, err
	}
	if err := s.families.Put(ctx, rec.GrantID, &domain.GrantTokens{
		AccessTokenHash:  accessHash,
		RefreshTokenHash: refreshHash,
		IssuedAt:         now,
	}, s.refreshTTL); err != nil {
		return nil, err
	}

	metrics.RecordTokenIssued("access")

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTTL.Seconds()),
		Scope:       rec.Scope,
	}, nil
}

// invalidateFamily deletes every token issued for a grant plus the family
// index itself. Called on replay detection before the error is returned.
// Reports whether a family existed to invalidate.
func (s *TokenService) invalidateFamily(ctx context.Context, grantID string) (bool, error) {
	family, err := s.families.Get(ctx, grantID)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if family.AccessTokenHash != "" {
		if err := s.tokens.DeleteAccess(ctx, family.AccessTokenHash); err != nil {
			return false, err
		}
	}
	if family.RefreshTokenHash != "" {
		if err := s.tokens.DeleteRefresh(ctx, family.RefreshTokenHash); err != nil {
			return false, err
		}
	}
	if err := s.families.Delete(ctx, grantID); err != nil {
		return false, err
	}
	return true, nil
}

// ParseRevocationRequest parses a token revocation request.
func (s *TokenService) ParseRevocationRequest(r *http.Request) (*RevocationRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, oautherrors.InvalidRequest("invalid form data")
	}

	req := &RevocationRequest{
		Token:         r.FormValue("token"),
		TokenTypeHint: r.FormValue("token_type_hint"),
		ClientID:      r.FormValue("client_id"),
		ClientSecret:  r.FormValue("client_secret"),
	}
	applyBasicAuth(r, &req.ClientID, &req.ClientSecret)

	if req.Token == "" {
		return nil, oautherrors.InvalidRequest("token is required")
	}

	return req, nil
}

// HandleRevocation handles token revocation (RFC 7009). The endpoint always
// reports success regardless of whether the token existed, to avoid oracle
// behavior; a token is actually deleted only when the authenticated client
// owns it.
func (s *TokenService) HandleRevocation(ctx context.Context, req *RevocationRequest) error {
	if req.ClientID == "" {
		return nil
	}
	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			// Don't reveal client existence.
			return nil
		}
		return err
	}
	if !client.Public() && !crypto.VerifySecret(client.SecretHash, req.ClientSecret) {
		return oautherrors.InvalidClient("invalid client credentials")
	}

	hash := crypto.HashToken(req.Token)

	if req.TokenTypeHint == "" || req.TokenTypeHint == "access_token" {
		if rec, err := s.tokens.GetAccess(ctx, hash); err == nil && rec.ClientID == client.ID {
			if err := s.tokens.DeleteAccess(ctx, hash); err != nil {
				return err
			}
			metrics.RecordRevocation()
			return nil
		}
	}
	if req.TokenTypeHint == "" || req.TokenTypeHint == "refresh_token" {
		if rec, err := s.tokens.GetRefresh(ctx, hash); err == nil && rec.ClientID == client.ID {
			if err := s.tokens.DeleteRefresh(ctx, hash); err != nil {
				return err
			}
			metrics.RecordRevocation()
			return nil
		}
	}

	return nil
}

// ParseIntrospectionRequest parses a token introspection request.
func (s *TokenService) ParseIntrospectionRequest(r *http.Request) (*IntrospectionRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, oautherrors.InvalidRequest("invalid form data")
	}

	req := &IntrospectionRequest{
		Token:         r.FormValue("token"),
		TokenTypeHint: r.FormValue("token_type_hint"),
		ClientID:      r.FormValue("client_id"),
		ClientSecret:  r.FormValue("client_secret"),
	}
	applyBasicAuth(r, &req.ClientID, &req.ClientSecret)

	if req.Token == "" {
		return nil, oautherrors.InvalidRequest("token is required")
	}

	return req, nil
}

// HandleIntrospection handles token introspection (RFC 7662). A merely
// invalid token is never an error: it reports active=false.
func (s *TokenService) HandleIntrospection(ctx context.Context, req *IntrospectionRequest) (*IntrospectionResponse, error) {
	if _, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret); err != nil {
		return nil, err
	}

	hash := crypto.HashToken(req.Token)

	if req.TokenTypeHint == "" || req.TokenTypeHint == "access_token" {
		if rec, err := s.tokens.GetAccess(ctx, hash); err == nil && !rec.IsExpired() {
			metrics.RecordIntrospection(true)
			return &IntrospectionResponse{
				Active:    true,
				Scope:     rec.Scope,
				ClientID:  rec.ClientID,
				TokenType: "Bearer",
				Exp:       rec.ExpiresAt.Unix(),
				Iat:       rec.CreatedAt.Unix(),
				Sub:       rec.UserID,
				Iss:       s.issuer,
			}, nil
		}
	}
	if req.TokenTypeHint == "" || req.TokenTypeHint == "refresh_token" {
		if rec, err := s.tokens.GetRefresh(ctx, hash); err == nil && !rec.IsExpired() && !rec.IsRotated {
			metrics.RecordIntrospection(true)
			return &IntrospectionResponse{
				Active:    true,
				Scope:     rec.Scope,
				ClientID:  rec.ClientID,
				TokenType: "refresh_token",
				Exp:       rec.ExpiresAt.Unix(),
				Iat:       rec.IssuedAt.Unix(),
				Sub:       rec.UserID,
				Iss:       s.issuer,
			}, nil
		}
	}

	metrics.RecordIntrospection(false)
	return &IntrospectionResponse{Active: false}, nil
}

// DecryptContext recovers the context payload sealed to the presented
// token. Only the holder of a live token can do this; the server alone
// cannot.
func (s *TokenService) DecryptContext(ctx context.Context, token string) ([]byte, error) {
	hash := crypto.HashToken(token)

	if rec, err := s.tokens.GetAccess(ctx, hash); err == nil && !rec.IsExpired() {
		if rec.Context == nil {
			return nil, oautherrors.InvalidGrant("token carries no context")
		}
		data, err := crypto.OpenContext(rec.Context, token)
		if err != nil {
			return nil, oautherrors.ServerError("failed to decrypt token context", err)
		}
		return data, nil
	}
	if rec, err := s.tokens.GetRefresh(ctx, hash); err == nil && !rec.IsExpired() {
		if rec.Context == nil {
			return nil, oautherrors.InvalidGrant("token carries no context")
		}
		data, err := crypto.OpenContext(rec.Context, token)
		if err != nil {
			return nil, oautherrors.ServerError("failed to decrypt token context", err)
		}
		return data, nil
	}

	return nil, oautherrors.InvalidGrant("token is invalid or expired")
}

// authenticateClient resolves the client and, for confidential clients,
// verifies the secret in constant time. Failures are invalid_client
// regardless of cause.
func (s *TokenService) authenticateClient(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	if clientID == "" {
		return nil, oautherrors.InvalidClient("client authentication required")
	}
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			return nil, oautherrors.InvalidClient("invalid client credentials")
		}
		return nil, err
	}
	if !client.Public() && !crypto.VerifySecret(client.SecretHash, clientSecret) {
		return nil, oautherrors.InvalidClient("invalid client credentials")
	}
	return client, nil
}

// applyBasicAuth overrides form client credentials with HTTP Basic auth
// credentials when present. Both halves are form-urlencoded before base64
// per RFC 6749 §2.3.1, so they are percent-decoded here.
func applyBasicAuth(r *http.Request, clientID, clientSecret *string) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(auth[6:])
	if err != nil {
		return
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return
	}
	id, err := url.QueryUnescape(parts[0])
	if err != nil {
		return
	}
	secret, err := url.QueryUnescape(parts[1])
	if err != nil {
		return
	}
	*clientID = id
	*clientSecret = secret
}
