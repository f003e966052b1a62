package server_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/apannell/go-secure-api/accounts"
	fakeaccountrepo "github.com/apannell/go-secure-api/accounts/repofake"
	"github.com/apannell/go-secure-api/channel"
	"github.com/apannell/go-secure-api/handshake"
	"github.com/apannell/go-secure-api/internal/config"
	"github.com/apannell/go-secure-api/keys"
	"github.com/apannell/go-secure-api/resettoken"
	"github.com/apannell/go-secure-api/server"
	"github.com/apannell/go-secure-api/token"
)

const (
	testUserEmail    = "a@b.com"
	testUserPassword = "Password1"
)

// captureNotifier records issued reset token IDs instead of delivering them.
type captureNotifier struct {
	mu     sync.Mutex
	tokens map[string]string // accountID -> tokenID
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{tokens: make(map[string]string)}
}

func (n *captureNotifier) NotifyPasswordReset(account *accounts.Account, tokenID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens[account.ID] = tokenID
	return nil
}

func (n *captureNotifier) tokenFor(accountID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[accountID]
}

type testFixture struct {
	ts       *httptest.Server
	repo     *fakeaccountrepo.FakeAccountRepo
	notifier *captureNotifier
	user     *accounts.Account
}

func setupServer(t *testing.T) *testFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := config.New()
	repo := fakeaccountrepo.NewFakeAccountRepo()

	passwordHash, err := accounts.HashPassword(testUserPassword)
	require.NoError(t, err)
	user := &accounts.Account{
		Email:        testUserEmail,
		Username:     "testuser",
		PasswordHash: passwordHash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         accounts.RoleUser,
	}
	require.NoError(t, repo.Upsert(user))

	authority, err := token.NewAuthority(token.NewHMACSigner(cfg.GetTokenSecret()), repo, cfg.GetIdentityTokenTTL())
	require.NoError(t, err)

	notifier := newCaptureNotifier()
	srv, err := server.New(cfg, server.Deps{
		Handshake:   handshake.New(keys.NewProvider()),
		Tokens:      authority,
		Accounts:    repo,
		ResetTokens: resettoken.NewRedisStore(redisClient),
		Notifier:    notifier,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testFixture{ts: ts, repo: repo, notifier: notifier, user: user}
}

// testClient models one browser: its own cookie jar and channel key.
type testClient struct {
	t          *testing.T
	ts         *httptest.Server
	http       *http.Client
	sessionKey []byte
}

func newTestClient(t *testing.T, f *testFixture) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{
		t:    t,
		ts:   f.ts,
		http: &http.Client{Jar: jar},
	}
}

func (c *testClient) fetchPublicKey() *rsa.PublicKey {
	c.t.Helper()

	resp, err := c.http.Get(c.ts.URL + "/keys")
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	var body struct {
		PublicKey string `json:"publicKey"`
	}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(c.t, body.PublicKey)

	block, _ := pem.Decode([]byte(body.PublicKey))
	require.NotNil(c.t, block)
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(c.t, err)
	pub, ok := parsed.(*rsa.PublicKey)
	require.True(c.t, ok)
	return pub
}

func (c *testClient) completeHandshake() {
	c.t.Helper()

	pub := c.fetchPublicKey()

	c.sessionKey = make([]byte, channel.SessionKeyLen)
	_, err := rand.Read(c.sessionKey)
	require.NoError(c.t, err)

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(hex.EncodeToString(c.sessionKey)), nil)
	require.NoError(c.t, err)

	body, err := json.Marshal(map[string]string{
		"encryptedSessionKey": base64.StdEncoding.EncodeToString(ciphertext),
	})
	require.NoError(c.t, err)

	resp, err := c.http.Post(c.ts.URL+"/handshake", "application/json", bytes.NewReader(body))
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	var status struct {
		Status string `json:"status"`
	}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(c.t, "ok", status.Status)
}

// postSecure sends payload through the encrypted channel and returns the HTTP
// status plus the decrypted response body.
func (c *testClient) postSecure(path string, payload any) (int, []byte) {
	c.t.Helper()

	plaintext, err := json.Marshal(payload)
	require.NoError(c.t, err)
	encrypted, err := channel.Encrypt(c.sessionKey, plaintext)
	require.NoError(c.t, err)
	body, err := json.Marshal(channel.Envelope{EncryptedData: encrypted})
	require.NoError(c.t, err)

	resp, err := c.http.Post(c.ts.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)

	var env channel.Envelope
	require.NoError(c.t, json.Unmarshal(raw, &env))
	require.NotEmpty(c.t, env.EncryptedData)

	decrypted, err := channel.Decrypt(c.sessionKey, env.EncryptedData)
	require.NoError(c.t, err)
	return resp.StatusCode, decrypted
}

func (c *testClient) login(email, password string) (int, []byte) {
	c.t.Helper()
	return c.postSecure("/auth/login", map[string]string{"email": email, "password": password})
}

func (c *testClient) get(path string) (*http.Response, []byte) {
	c.t.Helper()
	resp, err := c.http.Get(c.ts.URL + path)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, body
}

func TestSecureLoginFlow(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)

	c.completeHandshake()

	status, body := c.login(testUserEmail, testUserPassword)
	require.Equal(t, http.StatusOK, status)

	var result struct {
		Success bool              `json:"success"`
		Token   string            `json:"token"`
		User    *accounts.Account `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.True(t, result.Success)
	require.NotEmpty(t, result.Token)
	require.NotNil(t, result.User)
	require.Equal(t, testUserEmail, result.User.Email)

	// The identity cookie now authenticates protected requests.
	resp, profile := c.get("/api/profile")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(profile), testUserEmail)
}

func TestLoginWithWrongPassword(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)
	c.completeHandshake()

	status, body := c.login(testUserEmail, "not-the-password")
	require.Equal(t, http.StatusUnauthorized, status)

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
}

func TestSecondLoginSupersedesFirst(t *testing.T) {
	f := setupServer(t)

	deviceA := newTestClient(t, f)
	deviceA.completeHandshake()
	statusA, bodyA := deviceA.login(testUserEmail, testUserPassword)
	require.Equal(t, http.StatusOK, statusA)

	deviceB := newTestClient(t, f)
	deviceB.completeHandshake()
	statusB, bodyB := deviceB.login(testUserEmail, testUserPassword)
	require.Equal(t, http.StatusOK, statusB)

	var resultA, resultB struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(bodyA, &resultA))
	require.NoError(t, json.Unmarshal(bodyB, &resultB))
	require.NotEqual(t, resultA.Token, resultB.Token)

	// Device A's token was superseded the moment device B logged in.
	respA, profileA := deviceA.get("/api/profile")
	require.Equal(t, http.StatusUnauthorized, respA.StatusCode)

	var superseded struct {
		User           *accounts.Account `json:"user"`
		SessionExpired bool              `json:"sessionExpired"`
		Message        string            `json:"message"`
	}
	require.NoError(t, json.Unmarshal(profileA, &superseded))
	require.Nil(t, superseded.User)
	require.True(t, superseded.SessionExpired)
	require.NotEmpty(t, superseded.Message)

	// Device B stays signed in.
	respB, _ := deviceB.get("/api/profile")
	require.Equal(t, http.StatusOK, respB.StatusCode)
}

func TestHandshakeRejectsInvalidSubmissions(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"not base64", `{"encryptedSessionKey":"!!nope!!"}`},
		{"undecryptable blob", `{"encryptedSessionKey":"` + base64.StdEncoding.EncodeToString(make([]byte, 256)) + `"}`},
		{"malformed json", `{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := c.http.Post(f.ts.URL+"/handshake", "application/json", bytes.NewBufferString(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.NotEmpty(t, body.Error)
		})
	}
}

func TestSecureEndpointWithoutSession(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)

	// No handshake: the session key cookie is absent.
	resp, err := c.http.Post(f.ts.URL+"/auth/login", "application/json",
		bytes.NewBufferString(`{"encryptedData":"abc"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "secure session not established", body.Error)
}

func TestTamperedEnvelopeRejected(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)
	c.completeHandshake()

	plaintext, err := json.Marshal(map[string]string{"email": testUserEmail, "password": testUserPassword})
	require.NoError(t, err)
	encrypted, err := channel.Encrypt(c.sessionKey, plaintext)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	body, err := json.Marshal(channel.Envelope{EncryptedData: tampered})
	require.NoError(t, err)
	resp, err := c.http.Post(f.ts.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionEndpoint(t *testing.T) {
	f := setupServer(t)

	t.Run("anonymous", func(t *testing.T) {
		c := newTestClient(t, f)
		resp, body := c.get("/api/session")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.JSONEq(t, `{"user":null}`, string(body))
	})

	t.Run("authenticated", func(t *testing.T) {
		c := newTestClient(t, f)
		c.completeHandshake()
		status, _ := c.login(testUserEmail, testUserPassword)
		require.Equal(t, http.StatusOK, status)

		resp, body := c.get("/api/session")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(body), testUserEmail)
	})
}

func TestLogoutSupersedesToken(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)
	c.completeHandshake()

	status, _ := c.login(testUserEmail, testUserPassword)
	require.Equal(t, http.StatusOK, status)

	resp, _ := c.get("/auth/logout")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Cookie is cleared client-side; even a kept copy of the token is dead
	// because the marker rotated.
	resp, _ = c.get("/api/profile")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPasswordResetFlow(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)
	c.completeHandshake()

	// Stay signed in on another device; the reset should supersede it.
	other := newTestClient(t, f)
	other.completeHandshake()
	status, _ := other.login(testUserEmail, testUserPassword)
	require.Equal(t, http.StatusOK, status)

	status, body := c.postSecure("/auth/forgot-password", map[string]string{"email": testUserEmail})
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	resetToken := f.notifier.tokenFor(f.user.ID)
	require.NotEmpty(t, resetToken)

	const newPassword = "NewPassword2"
	status, body = c.postSecure("/auth/reset-password", map[string]string{
		"token":    resetToken,
		"password": newPassword,
	})
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	t.Run("token is one shot", func(t *testing.T) {
		status, _ := c.postSecure("/auth/reset-password", map[string]string{
			"token":    resetToken,
			"password": newPassword,
		})
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("old password no longer works", func(t *testing.T) {
		status, _ := c.login(testUserEmail, testUserPassword)
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("new password works", func(t *testing.T) {
		status, _ := c.login(testUserEmail, newPassword)
		require.Equal(t, http.StatusOK, status)
	})

	t.Run("outstanding logins superseded", func(t *testing.T) {
		resp, _ := other.get("/api/profile")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)
	c.completeHandshake()

	status, body := c.postSecure("/auth/forgot-password", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestProfileRequiresAuth(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)

	resp, body := c.get("/api/profile")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.JSONEq(t, `{"error":"unauthorized"}`, string(body))
}

func TestWeakResetPasswordRejected(t *testing.T) {
	f := setupServer(t)
	c := newTestClient(t, f)
	c.completeHandshake()

	status, body := c.postSecure("/auth/reset-password", map[string]string{
		"token":    "irrelevant",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, string(body), "password must be")
}
