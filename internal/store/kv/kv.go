// Package kv implements the store repositories on top of any store.KV
// backend. Records are stored as JSON and validated against their namespace
// kind at the storage boundary: a malformed or mistyped record surfaces as
// server_error rather than propagating undefined behavior.
package kv

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tendant/simple-oauth/internal/crypto"
	"github.com/tendant/simple-oauth/internal/domain"
	oautherrors "github.com/tendant/simple-oauth/internal/errors"
	"github.com/tendant/simple-oauth/internal/store"
)

// Store implements store.Store over a KV backend.
type Store struct {
	kv store.KV

	clients   *clientRepository
	grants    *grantRepository
	tokens    *tokenRepository
	families  *grantFamilyRepository
	consents  *consentRepository
	approvals *approvalRepository
}

// NewStore creates repositories over the given KV backend.
func NewStore(kv store.KV) *Store {
	s := &Store{kv: kv}
	s.clients = &clientRepository{kv: kv}
	s.grants = &grantRepository{kv: kv}
	s.tokens = &tokenRepository{kv: kv}
	s.families = &grantFamilyRepository{kv: kv}
	s.consents = &consentRepository{kv: kv}
	s.approvals = &approvalRepository{kv: kv}
	return s
}

func (s *Store) Clients() store.ClientRepository            { return s.clients }
func (s *Store) Grants() store.GrantRepository              { return s.grants }
func (s *Store) Tokens() store.TokenRepository              { return s.tokens }
func (s *Store) GrantFamilies() store.GrantFamilyRepository { return s.families }
func (s *Store) Consents() store.ConsentRepository          { return s.consents }
func (s *Store) Approvals() store.ApprovalRepository        { return s.approvals }
func (s *Store) Close() error                               { return s.kv.Close() }

// putJSON encodes a record and stores it.
func putJSON(ctx context.Context, kv store.KV, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return oautherrors.ServerError("failed to encode record", err)
	}
	if err := kv.Put(ctx, key, data, ttl); err != nil {
		return oautherrors.ServerError("failed to store record", err)
	}
	return nil
}

// unmarshalRecord decodes a stored record.
func unmarshalRecord(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return oautherrors.ServerError("malformed record in storage", err)
	}
	return nil
}

// errKindMismatch reports a record whose kind tag does not match the
// namespace it was read from.
func errKindMismatch(want, got string) error {
	return oautherrors.ServerError("record kind mismatch in storage: want "+want+", got "+got, nil)
}

// Client repository

type clientRepository struct {
	kv store.KV
}

func clientKey(id string) string {
	return store.PrefixClient + id
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	if _, err := r.kv.Get(ctx, clientKey(client.ID)); err == nil {
		return oautherrors.InvalidRequest("client already exists: " + client.ID)
	}
	now := time.Now()
	client.Kind = domain.KindClient
	client.CreatedAt = now
	client.UpdatedAt = now
	return putJSON(ctx, r.kv, clientKey(client.ID), client, 0)
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	data, err := r.kv.Get(ctx, clientKey(id))
	if err != nil {
		return nil, err
	}
	var client domain.Client
	if err := unmarshalRecord(data, &client); err != nil {
		return nil, err
	}
	if client.Kind != domain.KindClient {
		return nil, errKindMismatch(domain.KindClient, client.Kind)
	}
	return &client, nil
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	if _, err := r.GetByID(ctx, client.ID); err != nil {
		return err
	}
	client.Kind = domain.KindClient
	client.UpdatedAt = time.Now()
	return putJSON(ctx, r.kv, clientKey(client.ID), client, 0)
}

func (r *clientRepository) Delete(ctx context.Context, id string) error {
	return r.kv.Delete(ctx, clientKey(id))
}

func (r *clientRepository) List(ctx context.Context) ([]*domain.Client, error) {
	keys, err := r.kv.List(ctx, store.PrefixClient)
	if err != nil {
		return nil, oautherrors.ServerError("failed to list clients", err)
	}
	clients := make([]*domain.Client, 0, len(keys))
	for _, key := range keys {
		client, err := r.GetByID(ctx, key[len(store.PrefixClient):])
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			continue // deleted between list and get
		}
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// Grant repository

type grantRepository struct {
	kv store.KV
}

func grantKey(code string) string {
	return store.PrefixGrant + crypto.HashToken(code)
}

func (r *grantRepository) Put(ctx context.Context, code string, grant *domain.Grant, ttl time.Duration) error {
	grant.Kind = domain.KindGrant
	return putJSON(ctx, r.kv, grantKey(code), grant, ttl)
}

// Consume reads and deletes the grant in one backend operation. The delete
// happens before any validation by the caller, so a doomed code cannot be
// retried with corrected parameters.
func (r *grantRepository) Consume(ctx context.Context, code string) (*domain.Grant, error) {
	data, err := r.kv.GetDel(ctx, grantKey(code))
	if err != nil {
		return nil, err
	}
	var grant domain.Grant
	if err := unmarshalRecord(data, &grant); err != nil {
		return nil, err
	}
	if grant.Kind != domain.KindGrant {
		return nil, errKindMismatch(domain.KindGrant, grant.Kind)
	}
	return &grant, nil
}

func (r *grantRepository) Delete(ctx context.Context, code string) error {
	return r.kv.Delete(ctx, grantKey(code))
}

// Token repository

type tokenRepository struct {
	kv store.KV
}

func (r *tokenRepository) PutAccess(ctx context.Context, hash string, token *domain.AccessToken, ttl time.Duration) error {
	token.Kind = domain.KindAccessToken
	return putJSON(ctx, r.kv, store.PrefixToken+hash, token, ttl)
}

func (r *tokenRepository) GetAccess(ctx context.Context, hash string) (*domain.AccessToken, error) {
	data, err := r.kv.Get(ctx, store.PrefixToken+hash)
	if err != nil {
		return nil, err
	}
	var token domain.AccessToken
	if err := unmarshalRecord(data, &token); err != nil {
		return nil, err
	}
	if token.Kind != domain.KindAccessToken {
		return nil, errKindMismatch(domain.KindAccessToken, token.Kind)
	}
	return &token, nil
}

func (r *tokenRepository) DeleteAccess(ctx context.Context, hash string) error {
	return r.kv.Delete(ctx, store.PrefixToken+hash)
}

func (r *tokenRepository) PutRefresh(ctx context.Context, hash string, token *domain.RefreshToken, ttl time.Duration) error {
	token.Kind = domain.KindRefresh
	return putJSON(ctx, r.kv, store.PrefixRefresh+hash, token, ttl)
}

func (r *tokenRepository) GetRefresh(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	data, err := r.kv.Get(ctx, store.PrefixRefresh+hash)
	if err != nil {
		return nil, err
	}
	var token domain.RefreshToken
	if err := unmarshalRecord(data, &token); err != nil {
		return nil, err
	}
	if token.Kind != domain.KindRefresh {
		return nil, errKindMismatch(domain.KindRefresh, token.Kind)
	}
	return &token, nil
}

func (r *tokenRepository) DeleteRefresh(ctx context.Context, hash string) error {
	return r.kv.Delete(ctx, store.PrefixRefresh+hash)
}

// Grant family repository

type grantFamilyRepository struct {
	kv store.KV
}

func (r *grantFamilyRepository) Put(ctx context.Context, grantID string, tokens *domain.GrantTokens, ttl time.Duration) error {
	tokens.Kind = domain.KindGrantTokens
	tokens.GrantID = grantID
	return putJSON(ctx, r.kv, store.PrefixGrantTokens+grantID, tokens, ttl)
}

func (r *grantFamilyRepository) Get(ctx context.Context, grantID string) (*domain.GrantTokens, error) {
	data, err := r.kv.Get(ctx, store.PrefixGrantTokens+grantID)
	if err != nil {
		return nil, err
	}
	var tokens domain.GrantTokens
	if err := unmarshalRecord(data, &tokens); err != nil {
		return nil, err
	}
	if tokens.Kind != domain.KindGrantTokens {
		return nil, errKindMismatch(domain.KindGrantTokens, tokens.Kind)
	}
	return &tokens, nil
}

func (r *grantFamilyRepository) Delete(ctx context.Context, grantID string) error {
	return r.kv.Delete(ctx, store.PrefixGrantTokens+grantID)
}

// Consent repository

type consentRepository struct {
	kv store.KV
}

func consentKey(userID, clientID string) string {
	return store.PrefixConsent + userID + ":" + clientID
}

func (r *consentRepository) Put(ctx context.Context, consent *domain.Consent, ttl time.Duration) error {
	consent.Kind = domain.KindConsent
	return putJSON(ctx, r.kv, consentKey(consent.UserID, consent.ClientID), consent, ttl)
}

func (r *consentRepository) Get(ctx context.Context, userID, clientID string) (*domain.Consent, error) {
	data, err := r.kv.Get(ctx, consentKey(userID, clientID))
	if err != nil {
		return nil, err
	}
	return decodeConsent(data)
}

func (r *consentRepository) Delete(ctx context.Context, userID, clientID string) error {
	return r.kv.Delete(ctx, consentKey(userID, clientID))
}

func (r *consentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Consent, error) {
	keys, err := r.kv.List(ctx, store.PrefixConsent+userID+":")
	if err != nil {
		return nil, oautherrors.ServerError("failed to list consents", err)
	}
	consents := make([]*domain.Consent, 0, len(keys))
	for _, key := range keys {
		data, err := r.kv.Get(ctx, key)
		if oautherrors.IsCode(err, oautherrors.CodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		consent, err := decodeConsent(data)
		if err != nil {
			return nil, err
		}
		consents = append(consents, consent)
	}
	return consents, nil
}

func (r *consentRepository) DeleteByUser(ctx context.Context, userID string) error {
	keys, err := r.kv.List(ctx, store.PrefixConsent+userID+":")
	if err != nil {
		return oautherrors.ServerError("failed to list consents", err)
	}
	for _, key := range keys {
		if err := r.kv.Delete(ctx, key); err != nil {
			return oautherrors.ServerError("failed to delete consent", err)
		}
	}
	return nil
}

func decodeConsent(data []byte) (*domain.Consent, error) {
	var consent domain.Consent
	if err := unmarshalRecord(data, &consent); err != nil {
		return nil, err
	}
	if consent.Kind != domain.KindConsent {
		return nil, errKindMismatch(domain.KindConsent, consent.Kind)
	}
	return &consent, nil
}

// Approval repository

type approvalRepository struct {
	kv store.KV
}

func approvalKey(ticket string) string {
	return store.PrefixApproval + crypto.HashToken(ticket)
}

func (r *approvalRepository) Put(ctx context.Context, ticket string, req *domain.ApprovalRequest, ttl time.Duration) error {
	req.Kind = domain.KindApproval
	return putJSON(ctx, r.kv, approvalKey(ticket), req, ttl)
}

func (r *approvalRepository) Consume(ctx context.Context, ticket string) (*domain.ApprovalRequest, error) {
	data, err := r.kv.GetDel(ctx, approvalKey(ticket))
	if err != nil {
		return nil, err
	}
	var req domain.ApprovalRequest
	if err := unmarshalRecord(data, &req); err != nil {
		return nil, err
	}
	if req.Kind != domain.KindApproval {
		return nil, errKindMismatch(domain.KindApproval, req.Kind)
	}
	return &req, nil
}
