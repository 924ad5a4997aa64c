package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/dbx"
	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/auth"
	"github.com/dmitrijs2005/wayne/internal/server/config"
	"github.com/dmitrijs2005/wayne/internal/server/models"
	"github.com/dmitrijs2005/wayne/internal/server/provisioning"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/buckets"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/keyenvelopes"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/wayne/internal/server/repositories/users"
	"github.com/dmitrijs2005/wayne/internal/server/secrets"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory stand-in for the Postgres repositories. It keeps
// the same uniqueness rules as the schema.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	tokens    map[string]*models.RefreshToken
	envelopes map[string]*models.KeyEnvelope
	buckets   map[string]*models.Bucket

	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*models.User{},
		tokens:    map[string]*models.RefreshToken{},
		envelopes: map[string]*models.KeyEnvelope{},
		buckets:   map[string]*models.Bucket{},
	}
}

func (m *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memStore) Users(dbx.DBTX) users.Repository              { return memUsers{m} }
func (m *memStore) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return memTokens{m}
}
func (m *memStore) KeyEnvelopes(dbx.DBTX) keyenvelopes.Repository { return memEnvelopes{m} }
func (m *memStore) Buckets(dbx.DBTX) buckets.Repository           { return memBuckets{m} }

func (m *memStore) lock() (func(), error) {
	m.mu.Lock()
	if m.failWith != nil {
		m.mu.Unlock()
		return nil, m.failWith
	}
	return m.mu.Unlock, nil
}

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := *u
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.m.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, u := range r.m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	unlock, err := r.m.lock()
	if err != nil {
		return err
	}
	defer unlock()

	u, ok := r.m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

type memTokens struct{ m *memStore }

func (r memTokens) Create(_ context.Context, userID, hash string, expiresAt time.Time) error {
	unlock, err := r.m.lock()
	if err != nil {
		return err
	}
	defer unlock()

	r.m.tokens[hash] = &models.RefreshToken{
		ID: uuid.NewString(), UserID: userID, TokenHash: hash, ExpiresAt: expiresAt, CreatedAt: time.Now(),
	}
	return nil
}

func (r memTokens) FindActive(_ context.Context, hash string, now time.Time) (*models.RefreshToken, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, ok := r.m.tokens[hash]
	if !ok || !t.ExpiresAt.After(now) {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r memTokens) Delete(_ context.Context, hash string) (bool, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return false, err
	}
	defer unlock()

	_, ok := r.m.tokens[hash]
	delete(r.m.tokens, hash)
	return ok, nil
}

func (r memTokens) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for h, t := range r.m.tokens {
		if t.UserID == userID {
			delete(r.m.tokens, h)
			n++
		}
	}
	return n, nil
}

func (r memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for h, t := range r.m.tokens {
		if !t.ExpiresAt.After(now) {
			delete(r.m.tokens, h)
			n++
		}
	}
	return n, nil
}

type memEnvelopes struct{ m *memStore }

func (r memEnvelopes) Upsert(_ context.Context, e *models.KeyEnvelope) (string, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	c := *e
	if existing, ok := r.m.envelopes[e.UserID]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else {
		c.ID = uuid.NewString()
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	r.m.envelopes[e.UserID] = &c
	return c.ID, nil
}

func (r memEnvelopes) GetByUserID(_ context.Context, userID string) (*models.KeyEnvelope, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	e, ok := r.m.envelopes[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *e
	return &c, nil
}

func (r memEnvelopes) GetByID(_ context.Context, id string) (*models.KeyEnvelope, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	for _, e := range r.m.envelopes {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

type memBuckets struct{ m *memStore }

func (r memBuckets) Create(_ context.Context, b *models.Bucket) (*models.Bucket, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, ok := r.m.buckets[b.UserID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	c := *b
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.m.buckets[b.UserID] = &c
	out := c
	return &out, nil
}

func (r memBuckets) GetByUserID(_ context.Context, userID string) (*models.Bucket, error) {
	unlock, err := r.m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, ok := r.m.buckets[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *b
	return &c, nil
}

// fakeProvisioner hands out deterministic credentials per bucket.
type fakeProvisioner struct {
	mu       sync.Mutex
	existing map[string]bool
	issued   map[string]*provisioning.Credentials
	err      error
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{existing: map[string]bool{}, issued: map[string]*provisioning.Credentials{}}
}

func (p *fakeProvisioner) CreateBucket(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.existing[name] = true
	return nil
}

func (p *fakeProvisioner) BucketExists(_ context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return false, p.err
	}
	return p.existing[name], nil
}

func (p *fakeProvisioner) IssueCredentials(_ context.Context, bucket string) (*provisioning.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	c := &provisioning.Credentials{AccessKeyID: "AK-" + bucket, SecretAccessKey: "SK-" + uuid.NewString()}
	p.issued[bucket] = c
	return c, nil
}

func (p *fakeProvisioner) Endpoint() string { return "https://gateway.test" }

var testHasher = sync.OnceValues(func() (*auth.PasswordHasher, error) {
	return auth.NewPasswordHasher(auth.MinBcryptCost, 4)
})

const testCredentialKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type testEnv struct {
	store       *memStore
	mock        sqlmock.Sqlmock
	provisioner *fakeProvisioner
	cipher      secrets.Cipher
	tokens      *TokenService
	envelopes   *EnvelopeService
	buckets     *BucketService
	users       *UserService
	now         time.Time
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	hasher, err := testHasher()
	require.NoError(t, err)

	cipher, err := secrets.NewAESGCMCipher(testCredentialKey)
	require.NoError(t, err)

	cfg := &config.Config{
		SecretKey:                    "jwt-secret",
		RefreshTokenKey:              "refresh-key",
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 30 * 24 * time.Hour,
	}

	env := &testEnv{
		store:       newMemStore(),
		mock:        mock,
		provisioner: newFakeProvisioner(),
		cipher:      cipher,
		now:         time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	log := logging.Nop{}
	env.tokens = NewTokenService(db, env.store, cfg, log)
	env.tokens.now = func() time.Time { return env.now }
	env.envelopes = NewEnvelopeService(db, env.store, log)
	env.buckets = NewBucketService(db, env.store, env.provisioner, cipher, log)
	env.users = NewUserService(db, env.store, hasher, env.tokens, env.envelopes, env.buckets, log)
	return env
}

var errStorage = errors.New("connection reset")
