package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/notify"
	"github.com/nkiryanov/authkeeper/internal/repository/postgres"
	"github.com/nkiryanov/authkeeper/internal/service/account"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
	"github.com/nkiryanov/authkeeper/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authkeeper/internal/service/reset"
	"github.com/nkiryanov/authkeeper/internal/testutil"
)

var tokenRe = regexp.MustCompile(`token=([0-9a-f]{64})`)

type captureMailer struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *captureMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	require.NotEmpty(t, m.sent, "reset email expected")
	match := tokenRe.FindStringSubmatch(m.sent[len(m.sent)-1].HTML)
	require.Len(t, match, 2, "email has to contain reset link")
	return match[1]
}

type services struct {
	Accounts *account.AccountService
	Tokens   *tokenmanager.TokenManager
	Mailer   *captureMailer
}

// Create db transaction and run server with that connection (one connection cause one transaction)
func serveWithTx(dbpool *pgxpool.Pool, t *testing.T, cfg RouterConfig, fn func(srvURL string, s services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		l := logger.NewNoOpLogger()

		accounts, err := account.NewService(auth.BcryptHasher{Cost: bcrypt.MinCost}, storage)
		require.NoError(t, err)

		tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
		require.NoError(t, err)

		mailer := &captureMailer{}
		resets, err := reset.NewService(reset.Config{BaseURL: "http://localhost:4000"}, accounts, storage, mailer, l)
		require.NoError(t, err)

		srv := httptest.NewServer(NewRouter(cfg, accounts, resets, tokens, l))
		defer srv.Close()

		fn(srv.URL, services{Accounts: accounts, Tokens: tokens, Mailer: mailer})
	})
}

// Send json request and return response code and body
func post(t *testing.T, url string, data string) (int, string, http.Header) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(data))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	return resp.StatusCode, string(body), resp.Header
}

const registerBody = `{
	"email": "a@x.com",
	"member_id": "M-0001",
	"full_name": "Alice Liddell",
	"password": "s1",
	"role": "student",
	"status": "active"
}`

func TestHandlers(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("register", func(t *testing.T) {
		t.Run("register ok", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				code, body, _ := post(t, srvURL+"/api/auth/register", registerBody)

				require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", body)
				var got struct {
					Message string         `json:"message"`
					Account map[string]any `json:"account"`
				}
				require.NoError(t, json.Unmarshal([]byte(body), &got))
				require.Equal(t, "Account created", got.Message)
				require.Equal(t, "a@x.com", got.Account["email"])
				require.Equal(t, "M-0001", got.Account["member_id"])
				require.Equal(t, "student", got.Account["role"])
				require.NotEmpty(t, got.Account["id"])
				require.NotContains(t, body, "password", "password hash must never be returned")
			})
		})

		t.Run("register existed fail", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				code, _, _ := post(t, srvURL+"/api/auth/register", registerBody)
				require.Equal(t, http.StatusCreated, code)

				code, body, _ := post(t, srvURL+"/api/auth/register", registerBody)

				require.Equalf(t, http.StatusConflict, code, "not expected code. Body: %s", body)
				require.JSONEq(t, `{"error": "service_error", "message": "Account already exists"}`, body)
			})
		})

		t.Run("register invalid role", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				data := strings.Replace(registerBody, `"student"`, `"janitor"`, 1)

				code, body, _ := post(t, srvURL+"/api/auth/register", data)

				require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
				require.JSONEq(t, `{"error": "service_error", "message": "Invalid role"}`, body)
			})
		})

		t.Run("register missing fields", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				code, body, _ := post(t, srvURL+"/api/auth/register", `{"email": "not-email"}`)

				require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
				require.JSONEq(t, `{
					"error": "validation_failed",
					"message": "Request validation failed",
					"fields": {
						"email": "Invalid email address",
						"member_id": "This field is required",
						"full_name": "This field is required",
						"password": "This field is required",
						"role": "This field is required",
						"status": "This field is required"
					}
				}`, body)
			})
		})
	})

	t.Run("login", func(t *testing.T) {
		t.Run("login ok", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, s services) {
				code, _, _ := post(t, srvURL+"/api/auth/register", registerBody)
				require.Equal(t, http.StatusCreated, code)

				for _, data := range []string{
					`{"identifier": "a@x.com", "password": "s1"}`,
					`{"identifier": "M-0001", "password": "s1"}`,
					`{"email": "a@x.com", "password": "s1"}`,
				} {
					code, body, header := post(t, srvURL+"/api/auth/login", data)

					require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
					require.Contains(t, body, `"message":"Login successful"`)
					access := strings.TrimPrefix(header.Get("Authorization"), "Bearer ")
					require.NotEmpty(t, access)
					_, err := s.Tokens.ParseAccess(access)
					require.NoError(t, err, "issued access token must be valid")
				}
			})
		})

		t.Run("login wrong password and unknown identifier look the same", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				code, _, _ := post(t, srvURL+"/api/auth/register", registerBody)
				require.Equal(t, http.StatusCreated, code)

				codeWrong, bodyWrong, headerWrong := post(t, srvURL+"/api/auth/login", `{"identifier": "a@x.com", "password": "wrong"}`)
				codeGhost, bodyGhost, _ := post(t, srvURL+"/api/auth/login", `{"identifier": "ghost@x.com", "password": "s1"}`)

				require.Equal(t, http.StatusBadRequest, codeWrong)
				require.Equal(t, http.StatusBadRequest, codeGhost)
				require.JSONEq(t, `{"error": "service_error", "message": "Invalid credentials"}`, bodyWrong)
				require.Equal(t, bodyWrong, bodyGhost)
				require.Empty(t, headerWrong.Get("Authorization"))
			})
		})
	})

	t.Run("forgot password", func(t *testing.T) {
		t.Run("same answer for known and unknown identifier", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, s services) {
				code, _, _ := post(t, srvURL+"/api/auth/register", registerBody)
				require.Equal(t, http.StatusCreated, code)

				codeKnown, bodyKnown, _ := post(t, srvURL+"/api/auth/forgot-password", `{"identifier": "a@x.com"}`)
				require.Equal(t, 1, s.Mailer.count(), "email expected for known account")
				codeGhost, bodyGhost, _ := post(t, srvURL+"/api/auth/forgot-password", `{"identifier": "ghost@x.com"}`)
				require.Equal(t, 1, s.Mailer.count(), "no email expected for unknown identifier")

				require.Equal(t, http.StatusOK, codeKnown)
				require.Equal(t, http.StatusOK, codeGhost)
				require.Equal(t, bodyKnown, bodyGhost)
				require.JSONEq(t, `{"message": "`+forgotPasswordAck+`"}`, bodyKnown)
			})
		})

		t.Run("missing identifier", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				code, body, _ := post(t, srvURL+"/api/auth/forgot-password", `{}`)

				require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
				require.Contains(t, body, `"identifier":"This field is required"`)
			})
		})
	})

	t.Run("reset password", func(t *testing.T) {
		t.Run("full scenario", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, s services) {
				code, _, _ := post(t, srvURL+"/api/auth/register", registerBody)
				require.Equal(t, http.StatusCreated, code)
				code, _, _ = post(t, srvURL+"/api/auth/forgot-password", `{"identifier": "M-0001"}`)
				require.Equal(t, http.StatusOK, code)
				token := s.Mailer.lastToken(t)

				code, body, _ := post(t, srvURL+"/api/auth/reset-password", `{"token": "`+token+`", "password": "s2"}`)
				require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
				require.JSONEq(t, `{"message": "Password has been reset"}`, body)

				code, _, _ = post(t, srvURL+"/api/auth/login", `{"identifier": "a@x.com", "password": "s1"}`)
				require.Equal(t, http.StatusBadRequest, code, "old password must not work")
				code, _, _ = post(t, srvURL+"/api/auth/login", `{"identifier": "a@x.com", "password": "s2"}`)
				require.Equal(t, http.StatusOK, code, "new password must work")

				code, body, _ = post(t, srvURL+"/api/auth/reset-password", `{"token": "`+token+`", "password": "s3"}`)
				require.Equal(t, http.StatusBadRequest, code)
				require.JSONEq(t, `{"error": "service_error", "message": "Token already used"}`, body)
			})
		})

		t.Run("invalid token", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				code, body, _ := post(t, srvURL+"/api/auth/reset-password", `{"token": "nope", "password": "s2"}`)

				require.Equal(t, http.StatusBadRequest, code)
				require.JSONEq(t, `{"error": "service_error", "message": "Invalid token"}`, body)
			})
		})

		t.Run("missing fields", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				code, body, _ := post(t, srvURL+"/api/auth/reset-password", `{}`)

				require.Equal(t, http.StatusBadRequest, code)
				require.JSONEq(t, `{
					"error": "validation_failed",
					"message": "Request validation failed",
					"fields": {"token": "This field is required", "password": "This field is required"}
				}`, body)
			})
		})
	})

	t.Run("profile", func(t *testing.T) {
		t.Run("me ok", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				code, _, _ := post(t, srvURL+"/api/auth/register", registerBody)
				require.Equal(t, http.StatusCreated, code)
				code, _, header := post(t, srvURL+"/api/auth/login", `{"identifier": "a@x.com", "password": "s1"}`)
				require.Equal(t, http.StatusOK, code)

				req, err := http.NewRequest(http.MethodGet, srvURL+"/api/profile/me", nil)
				require.NoError(t, err)
				req.Header.Set("Authorization", header.Get("Authorization"))
				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				defer resp.Body.Close() // nolint:errcheck

				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", string(body))
				require.Contains(t, string(body), `"email":"a@x.com"`)
				require.Contains(t, string(body), `"full_name":"Alice Liddell"`)
			})
		})

		t.Run("me unauthorized", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, _ services) {
				resp, err := http.Get(srvURL + "/api/profile/me")
				require.NoError(t, err)
				defer resp.Body.Close() // nolint:errcheck

				require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			})
		})

		t.Run("me account missing", func(t *testing.T) {
			serveWithTx(pg.Pool, t, RouterConfig{}, func(srvURL string, s services) {
				ghost, err := s.Tokens.GenerateAccess(models.Account{ID: uuid.New()})
				require.NoError(t, err)

				req, err := http.NewRequest(http.MethodGet, srvURL+"/api/profile/me", nil)
				require.NoError(t, err)
				req.Header.Set("Authorization", "Bearer "+ghost.Value)
				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				defer resp.Body.Close() // nolint:errcheck

				require.Equal(t, http.StatusNotFound, resp.StatusCode)
			})
		})
	})

	t.Run("static", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "reset-password.html"), []byte("<form>reset</form>"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o600))

		serveWithTx(pg.Pool, t, RouterConfig{StaticDir: dir}, func(srvURL string, _ services) {
			resp, err := http.Get(srvURL + "/reset-password?token=abc")
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() // nolint:errcheck

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, "<form>reset</form>", string(body))
			require.Equal(t, "no-referrer", resp.Header.Get("Referrer-Policy"))

			resp2, err := http.Get(srvURL + "/")
			require.NoError(t, err)
			body2, err := io.ReadAll(resp2.Body)
			require.NoError(t, err)
			defer resp2.Body.Close() // nolint:errcheck
			require.Equal(t, "<h1>home</h1>", string(body2))
		})
	})
}
