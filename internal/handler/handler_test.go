package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/database"
	"github.com/veomenu/veomenu/internal/email"
	"github.com/veomenu/veomenu/internal/model"
	"github.com/veomenu/veomenu/internal/push"
	"github.com/veomenu/veomenu/internal/sms"
	"github.com/veomenu/veomenu/internal/store"
	"github.com/veomenu/veomenu/internal/websocket"
)

// testEnv wires every store against one in-memory database so handler
// tests exercise real flows end to end instead of mocking the stores.
type testEnv struct {
	db            *sql.DB
	users         *store.UserStore
	sessions      *store.SessionStore
	magicLinks    *store.MagicLinkStore
	verifications *store.PhoneVerificationStore
	instances     *store.InstanceStore
	members       *store.InstanceMemberStore
	hours         *store.BusinessHourStore
	menus         *store.MenuStore
	sections      *store.MenuSectionStore
	items         *store.MenuItemStore
	views         *store.MenuViewStore
	qrcodes       *store.QRCodeStore
	catalog       *store.CatalogStore
	tickets       *store.TicketStore
	pushes        *store.PushStore
	issuer        *auth.TokenIssuer
	hub           *websocket.Hub
	logger        *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		db:            db,
		users:         store.NewUserStore(db),
		sessions:      store.NewSessionStore(db),
		magicLinks:    store.NewMagicLinkStore(db),
		verifications: store.NewPhoneVerificationStore(db),
		instances:     store.NewInstanceStore(db),
		members:       store.NewInstanceMemberStore(db),
		hours:         store.NewBusinessHourStore(db),
		menus:         store.NewMenuStore(db),
		sections:      store.NewMenuSectionStore(db),
		items:         store.NewMenuItemStore(db),
		views:         store.NewMenuViewStore(db),
		qrcodes:       store.NewQRCodeStore(db),
		catalog:       store.NewCatalogStore(db),
		tickets:       store.NewTicketStore(db),
		pushes:        store.NewPushStore(db),
		issuer:        auth.NewTokenIssuer("test-secret", time.Hour, 24*time.Hour),
		hub:           websocket.NewHub(logger, nil),
		logger:        logger,
	}
}

func (e *testEnv) authHandler(ec *email.Client) *AuthHandler {
	return NewAuthHandler(e.users, e.sessions, e.magicLinks, e.members, e.issuer, ec, e.logger)
}

func (e *testEnv) userHandler() *UserHandler {
	return NewUserHandler(e.users, e.sessions, e.members, e.logger)
}

func (e *testEnv) phoneHandler(sc *sms.Client) *PhoneHandler {
	return NewPhoneHandler(e.users, e.verifications, e.members, sc, e.logger)
}

func (e *testEnv) instanceHandler() *InstanceHandler {
	return NewInstanceHandler(e.instances, e.members, e.users, e.hours, e.logger)
}

func (e *testEnv) menuHandler() *MenuHandler {
	return NewMenuHandler(e.menus, e.instances, e.members, e.views, e.hub, nil, e.logger)
}

func (e *testEnv) sectionHandler() *SectionHandler {
	return NewSectionHandler(e.sections, e.menus, e.members, e.hub, e.logger)
}

func (e *testEnv) itemHandler() *ItemHandler {
	return NewItemHandler(e.items, e.sections, e.menus, e.members, e.hub, e.logger)
}

func (e *testEnv) qrHandler() *QRCodeHandler {
	return NewQRCodeHandler(e.qrcodes, e.menus, e.members, nil, "https://menu.veomenu.test", e.logger)
}

func (e *testEnv) ticketHandler() *TicketHandler {
	return NewTicketHandler(e.tickets, e.instances, e.members, e.pushes, push.NewService("", "", ""), e.hub, e.logger)
}

func (e *testEnv) pushHandler(svc *push.Service) *PushHandler {
	return NewPushHandler(e.pushes, svc, e.logger)
}

func (e *testEnv) catalogHandler() *CatalogHandler {
	return NewCatalogHandler(e.catalog, e.logger)
}

// createUser inserts a user whose password is "password123".
func (e *testEnv) createUser(t *testing.T, emailAddr string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := e.users.Create(emailAddr, "Test User", string(hash), "", "en")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) createInstance(t *testing.T, ownerID int64, name string) *model.Instance {
	t.Helper()
	inst, err := e.instances.Create(ownerID, &model.Instance{Name: name})
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}
	return inst
}

func (e *testEnv) addMember(t *testing.T, instanceID string, userID int64, role string) {
	t.Helper()
	if _, err := e.members.Add(instanceID, userID, role); err != nil {
		t.Fatalf("add member: %v", err)
	}
}

func (e *testEnv) createMenu(t *testing.T, instanceID, name string) *model.Menu {
	t.Helper()
	m, err := e.menus.Create(&model.Menu{
		InstanceID:         instanceID,
		Name:               name,
		DefaultLanguage:    "en",
		AvailableLanguages: []string{"en"},
		IsActive:           true,
	})
	if err != nil {
		t.Fatalf("create menu: %v", err)
	}
	return m
}

func (e *testEnv) createSection(t *testing.T, menuID string) *model.MenuSection {
	t.Helper()
	sec, err := e.sections.Create(&model.MenuSection{
		MenuID:   menuID,
		Name:     map[string]string{"en": "Starters"},
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("create section: %v", err)
	}
	return sec
}

// jsonRequest builds a request carrying body encoded as JSON. A nil body
// yields an empty-body request.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser stamps the request context the way the auth middleware would.
func asUser(req *http.Request, userID, sessionID int64) *http.Request {
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{UserID: userID, SessionID: sessionID})
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

// jsonDecode decodes a recorded response body into v, for responses that
// are not plain objects.
func jsonDecode(rec *httptest.ResponseRecorder, v any) error {
	return json.NewDecoder(rec.Body).Decode(v)
}

// wantError asserts an error response's status code and message.
func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if got := body["error"]; got != message {
		t.Errorf("error = %q, want %q", got, message)
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
