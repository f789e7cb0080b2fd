package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/veomenu/veomenu/internal/email"
	"github.com/veomenu/veomenu/internal/model"
)

// unconfiguredEmail returns a client with no API key. Welcome mail
// failures are non-fatal, so most auth tests can use it.
func unconfiguredEmail() *email.Client {
	return email.NewClient("", "noreply@veomenu.app", "https://veomenu.test")
}

func TestRegisterCreatesSession(t *testing.T) {
	env := newTestEnv(t)
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/register", map[string]string{
		"email":    "alice@example.com",
		"name":     "Alice",
		"password": "password123",
	})
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "Registration successful. You are now logged in." {
		t.Errorf("message = %q, want registration message", body["message"])
	}
	access, _ := body["access_token"].(string)
	if access == "" {
		t.Fatal("expected access_token in response")
	}
	if refresh, _ := body["refresh_token"].(string); refresh == "" {
		t.Error("expected refresh_token in response")
	}

	sess, err := env.sessions.GetByToken(access)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess == nil {
		t.Fatal("expected a session row bound to the access token")
	}
	if sess.DeviceType != model.DeviceDesktop {
		t.Errorf("device type = %q, want %q", sess.DeviceType, model.DeviceDesktop)
	}

	u, _ := env.users.GetByEmail("alice@example.com")
	if u == nil {
		t.Fatal("expected user row")
	}
	if u.LastLoginAt == nil {
		t.Error("expected last login to be stamped")
	}
}

func TestRegisterMobileDeviceType(t *testing.T) {
	env := newTestEnv(t)
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/register", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile Safari")
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	access := decodeBody(t, rec)["access_token"].(string)
	sess, _ := env.sessions.GetByToken(access)
	if sess == nil {
		t.Fatal("expected session row")
	}
	if sess.DeviceType != model.DeviceMobile {
		t.Errorf("device type = %q, want %q", sess.DeviceType, model.DeviceMobile)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com")
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/register", map[string]string{
		"email":    "Alice@Example.com",
		"password": "password123",
	})
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	wantError(t, rec, http.StatusBadRequest, "A user with this email already exists.")
}

func TestRegisterShortPassword(t *testing.T) {
	env := newTestEnv(t)
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/register", map[string]string{
		"email":    "alice@example.com",
		"password": "abc",
	})
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	wantError(t, rec, http.StatusBadRequest, "Password must be at least 6 characters.")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com")
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] != "Login successful" {
		t.Errorf("message = %q, want %q", body["message"], "Login successful")
	}
	if access, _ := body["access"].(string); access == "" {
		t.Error("expected access token in response")
	}
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatal("expected user object in response")
	}
	if user["has_instances"] != false {
		t.Error("expected has_instances = false for a fresh user")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com")
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	wantError(t, rec, http.StatusBadRequest, "Invalid email or password.")
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "password123",
	})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	// Indistinguishable from a wrong password.
	wantError(t, rec, http.StatusBadRequest, "Invalid email or password.")
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice@example.com")
	if _, err := env.db.Exec("UPDATE users SET is_active = 0 WHERE id = ?", u.ID); err != nil {
		t.Fatalf("disable user: %v", err)
	}
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	wantError(t, rec, http.StatusBadRequest, "This account has been disabled.")
}

func TestLogoutDeactivatesSession(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice@example.com")
	sess, err := env.sessions.Create(u.ID, "access-token", "refresh-token", "127.0.0.1", "test", model.DeviceDesktop, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	h := env.authHandler(unconfiguredEmail())

	req := asUser(jsonRequest(t, "POST", "/api/auth/logout", nil), u.ID, sess.ID)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got, _ := env.sessions.GetByToken("access-token"); got != nil {
		t.Error("expected session to be inactive after logout")
	}
}

func TestRefreshRotatesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com")
	h := env.authHandler(unconfiguredEmail())

	loginReq := jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	loginRec := httptest.NewRecorder()
	h.Login(loginRec, loginReq)
	loginBody := decodeBody(t, loginRec)
	oldAccess := loginBody["access"].(string)
	refresh := loginBody["refresh"].(string)

	req := jsonRequest(t, "POST", "/api/auth/refresh", map[string]string{"refresh": refresh})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	newAccess, _ := decodeBody(t, rec)["access"].(string)
	if newAccess == "" || newAccess == oldAccess {
		t.Fatalf("expected a fresh access token, got %q", newAccess)
	}

	// The session row follows the rotation.
	if sess, _ := env.sessions.GetByToken(newAccess); sess == nil {
		t.Error("expected session bound to the new access token")
	}
	if sess, _ := env.sessions.GetByToken(oldAccess); sess != nil {
		t.Error("expected the old access token to be unbound")
	}
}

func TestRefreshAfterLogoutRejected(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com")
	h := env.authHandler(unconfiguredEmail())

	loginReq := jsonRequest(t, "POST", "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	loginRec := httptest.NewRecorder()
	h.Login(loginRec, loginReq)
	loginBody := decodeBody(t, loginRec)
	access := loginBody["access"].(string)
	refresh := loginBody["refresh"].(string)

	sess, _ := env.sessions.GetByToken(access)
	if sess == nil {
		t.Fatal("expected session after login")
	}
	if _, err := env.sessions.Deactivate(sess.ID); err != nil {
		t.Fatalf("deactivate session: %v", err)
	}

	// The refresh JWT is still cryptographically valid; the dead session
	// row alone must reject it.
	req := jsonRequest(t, "POST", "/api/auth/refresh", map[string]string{"refresh": refresh})
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	wantError(t, rec, http.StatusUnauthorized, "Invalid or expired token.")
}

func TestMagicLinkRequestUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/request-magic-link", map[string]string{
		"email": "nobody@example.com",
	})
	rec := httptest.NewRecorder()
	h.RequestMagicLink(rec, req)

	wantError(t, rec, http.StatusBadRequest, "No account found with this email address. Please register first.")
}

func TestMagicLinkFlow(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice@example.com")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()
	ec := email.NewClient("test-key", "noreply@veomenu.app", "https://veomenu.test",
		email.WithHTTPClient(&http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}))
	h := env.authHandler(ec)

	req := jsonRequest(t, "POST", "/api/auth/request-magic-link", map[string]string{
		"email": "alice@example.com",
	})
	rec := httptest.NewRecorder()
	h.RequestMagicLink(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if mins := decodeBody(t, rec)["expires_in_minutes"]; mins != float64(15) {
		t.Errorf("expires_in_minutes = %v, want 15", mins)
	}

	var token string
	if err := env.db.QueryRow("SELECT token FROM magic_links WHERE user_id = ?", u.ID).Scan(&token); err != nil {
		t.Fatalf("read magic link token: %v", err)
	}

	verifyReq := jsonRequest(t, "POST", "/api/auth/verify-magic-link", map[string]string{"token": token})
	verifyRec := httptest.NewRecorder()
	h.VerifyMagicLink(verifyRec, verifyReq)

	if verifyRec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, want %d (body %s)", verifyRec.Code, http.StatusOK, verifyRec.Body.String())
	}
	if msg := decodeBody(t, verifyRec)["message"]; msg != "Login successful" {
		t.Errorf("message = %q, want %q", msg, "Login successful")
	}

	// Single use: the same token must not log in twice.
	againReq := jsonRequest(t, "POST", "/api/auth/verify-magic-link", map[string]string{"token": token})
	againRec := httptest.NewRecorder()
	h.VerifyMagicLink(againRec, againReq)

	wantError(t, againRec, http.StatusBadRequest, "This token has expired or has already been used.")
}

func TestMagicLinkExpired(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice@example.com")
	ml, err := env.magicLinks.Create(u.ID, u.Email, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("create magic link: %v", err)
	}
	if _, err := env.db.Exec("UPDATE magic_links SET expires_at = ? WHERE id = ?", time.Now().UTC().Add(-time.Minute), ml.ID); err != nil {
		t.Fatalf("backdate magic link: %v", err)
	}
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/verify-magic-link", map[string]string{"token": ml.Token})
	rec := httptest.NewRecorder()
	h.VerifyMagicLink(rec, req)

	wantError(t, rec, http.StatusBadRequest, "This token has expired or has already been used.")
}

func TestMagicLinkUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	h := env.authHandler(unconfiguredEmail())

	req := jsonRequest(t, "POST", "/api/auth/verify-magic-link", map[string]string{"token": "no-such-token"})
	rec := httptest.NewRecorder()
	h.VerifyMagicLink(rec, req)

	wantError(t, rec, http.StatusBadRequest, "Invalid or expired token.")
}

func TestRegisterInvalidBody(t *testing.T) {
	env := newTestEnv(t)
	h := env.authHandler(unconfiguredEmail())

	req := httptest.NewRequest("POST", "/api/auth/register", nil)
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "Invalid request body" {
		t.Errorf("error = %q, want %q", body["error"], "Invalid request body")
	}
}
