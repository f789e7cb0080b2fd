package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/veomenu/veomenu/internal/auth"
	"github.com/veomenu/veomenu/internal/config"
	"github.com/veomenu/veomenu/internal/email"
	"github.com/veomenu/veomenu/internal/handler"
	"github.com/veomenu/veomenu/internal/metrics"
	"github.com/veomenu/veomenu/internal/middleware"
	"github.com/veomenu/veomenu/internal/push"
	"github.com/veomenu/veomenu/internal/sms"
	"github.com/veomenu/veomenu/internal/store"
	ws "github.com/veomenu/veomenu/internal/websocket"
)

type Server struct {
	db      *sql.DB
	hub     *ws.Hub
	metrics *metrics.Metrics

	authH     *handler.AuthHandler
	userH     *handler.UserHandler
	phoneH    *handler.PhoneHandler
	instanceH *handler.InstanceHandler
	menuH     *handler.MenuHandler
	sectionH  *handler.SectionHandler
	itemH     *handler.ItemHandler
	qrH       *handler.QRCodeHandler
	catalogH  *handler.CatalogHandler
	ticketH   *handler.TicketHandler
	pushH     *handler.PushHandler

	issuer       *auth.TokenIssuer
	sessionStore *store.SessionStore
	magicLinks   *store.MagicLinkStore
	memberStore  *store.InstanceMemberStore
	userStore    *store.UserStore
	pushService  *push.Service
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg config.Config, emailClient *email.Client, smsClient *sms.Client, m *metrics.Metrics, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"), m)
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	magicLinkStore := store.NewMagicLinkStore(db)
	verificationStore := store.NewPhoneVerificationStore(db)
	instanceStore := store.NewInstanceStore(db)
	memberStore := store.NewInstanceMemberStore(db)
	hourStore := store.NewBusinessHourStore(db)
	menuStore := store.NewMenuStore(db)
	sectionStore := store.NewMenuSectionStore(db)
	itemStore := store.NewMenuItemStore(db)
	viewStore := store.NewMenuViewStore(db)
	catalogStore := store.NewCatalogStore(db)
	qrStore := store.NewQRCodeStore(db)
	ticketStore := store.NewTicketStore(db)
	pushStore := store.NewPushStore(db)

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)

	return &Server{
		db:      db,
		hub:     hub,
		metrics: m,

		authH:     handler.NewAuthHandler(userStore, sessionStore, magicLinkStore, memberStore, issuer, emailClient, logger.With("component", "auth")),
		userH:     handler.NewUserHandler(userStore, sessionStore, memberStore, logger.With("component", "user")),
		phoneH:    handler.NewPhoneHandler(userStore, verificationStore, memberStore, smsClient, logger.With("component", "phone")),
		instanceH: handler.NewInstanceHandler(instanceStore, memberStore, userStore, hourStore, logger.With("component", "instance")),
		menuH:     handler.NewMenuHandler(menuStore, instanceStore, memberStore, viewStore, hub, m, logger.With("component", "menu")),
		sectionH:  handler.NewSectionHandler(sectionStore, menuStore, memberStore, hub, logger.With("component", "section")),
		itemH:     handler.NewItemHandler(itemStore, sectionStore, menuStore, memberStore, hub, logger.With("component", "item")),
		qrH:       handler.NewQRCodeHandler(qrStore, menuStore, memberStore, m, cfg.FrontendURL, logger.With("component", "qrcode")),
		catalogH:  handler.NewCatalogHandler(catalogStore, logger.With("component", "catalog")),
		ticketH:   handler.NewTicketHandler(ticketStore, instanceStore, memberStore, pushStore, pushSvc, hub, logger.With("component", "ticket")),
		pushH:     handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push")),

		issuer:       issuer,
		sessionStore: sessionStore,
		magicLinks:   magicLinkStore,
		memberStore:  memberStore,
		userStore:    userStore,
		pushService:  pushSvc,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MagicLinkStore returns the magic link store for cleanup tasks.
func (s *Server) MagicLinkStore() *store.MagicLinkStore {
	return s.magicLinks
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/refresh", s.rateLimitedHandler(s.authH.Refresh))
	outerMux.HandleFunc("POST /api/auth/request-magic-link", s.rateLimitedHandler(s.authH.RequestMagicLink))
	outerMux.HandleFunc("POST /api/auth/verify-magic-link", s.rateLimitedHandler(s.authH.VerifyMagicLink))

	// Customer-facing routes; the phone scanning the QR code has no account.
	outerMux.HandleFunc("GET /api/menus/{id}/public", s.menuH.Public)
	outerMux.HandleFunc("POST /api/qrcodes/{id}/scan", s.qrH.Scan)

	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// WebSocket authenticates itself from query parameters.
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.issuer, s.sessionStore, s.memberStore))

	// Everything else requires a valid session.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.issuer, s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	var root http.Handler = outerMux
	root = middleware.Metrics(s.metrics)(root)
	root = middleware.RequestLogger(s.logger.With("component", "http"))(root)
	return root
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Session routes
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/users/me", s.userH.Me)
	mux.HandleFunc("PUT /api/users/update-profile", s.userH.UpdateProfile)
	mux.HandleFunc("PATCH /api/users/update-profile", s.userH.UpdateProfile)
	mux.HandleFunc("GET /api/users/sessions", s.userH.Sessions)
	mux.HandleFunc("POST /api/users/revoke-session", s.userH.RevokeSession)

	// Phone verification routes
	mux.HandleFunc("POST /api/auth/request-phone-verification", s.phoneH.RequestVerification)
	mux.HandleFunc("POST /api/auth/confirm-phone-verification", s.phoneH.ConfirmVerification)
	mux.HandleFunc("GET /api/auth/phone-verification-cooldown", s.phoneH.CooldownStatus)

	// Instance API routes
	mux.HandleFunc("GET /api/instances", s.instanceH.List)
	mux.HandleFunc("POST /api/instances", s.instanceH.Create)
	mux.HandleFunc("GET /api/instances/{id}", s.instanceH.Get)
	mux.HandleFunc("PUT /api/instances/{id}", s.instanceH.Update)
	mux.HandleFunc("DELETE /api/instances/{id}", s.instanceH.Delete)
	mux.HandleFunc("GET /api/instances/{id}/members", s.instanceH.Members)
	mux.HandleFunc("POST /api/instances/{id}/invite-member", s.instanceH.InviteMember)
	mux.HandleFunc("DELETE /api/instances/{id}/remove-member", s.instanceH.RemoveMember)
	mux.HandleFunc("GET /api/instances/{id}/business-hours", s.instanceH.GetBusinessHours)
	mux.HandleFunc("PUT /api/instances/{id}/business-hours", s.instanceH.UpdateBusinessHours)

	// Menu API routes
	mux.HandleFunc("GET /api/menus", s.menuH.List)
	mux.HandleFunc("POST /api/menus", s.menuH.Create)
	mux.HandleFunc("GET /api/menus/{id}", s.menuH.Get)
	mux.HandleFunc("PUT /api/menus/{id}", s.menuH.Update)
	mux.HandleFunc("DELETE /api/menus/{id}", s.menuH.Delete)
	mux.HandleFunc("GET /api/menus/{id}/analytics", s.menuH.Analytics)
	mux.HandleFunc("POST /api/menus/{id}/duplicate", s.menuH.Duplicate)

	// Section API routes
	mux.HandleFunc("GET /api/menu-sections", s.sectionH.List)
	mux.HandleFunc("POST /api/menu-sections", s.sectionH.Create)
	mux.HandleFunc("PUT /api/menu-sections/{id}", s.sectionH.Update)
	mux.HandleFunc("DELETE /api/menu-sections/{id}", s.sectionH.Delete)

	// Item API routes
	mux.HandleFunc("GET /api/menu-items", s.itemH.List)
	mux.HandleFunc("POST /api/menu-items", s.itemH.Create)
	mux.HandleFunc("PUT /api/menu-items/{id}", s.itemH.Update)
	mux.HandleFunc("PATCH /api/menu-items/{id}/toggle-availability", s.itemH.ToggleAvailability)
	mux.HandleFunc("DELETE /api/menu-items/{id}", s.itemH.Delete)

	// Catalog routes
	mux.HandleFunc("GET /api/menu-tags", s.catalogH.Tags)
	mux.HandleFunc("GET /api/menu-allergens", s.catalogH.Allergens)

	// QR code API routes
	mux.HandleFunc("GET /api/qrcodes", s.qrH.List)
	mux.HandleFunc("POST /api/qrcodes", s.qrH.Create)
	mux.HandleFunc("DELETE /api/qrcodes/{id}", s.qrH.Delete)

	// Support ticket API routes
	mux.HandleFunc("GET /api/support-tickets", s.ticketH.List)
	mux.HandleFunc("POST /api/support-tickets", s.ticketH.Create)
	mux.HandleFunc("GET /api/support-tickets/stats", s.ticketH.Stats)
	mux.HandleFunc("GET /api/support-tickets/{id}", s.ticketH.Get)
	mux.HandleFunc("POST /api/support-tickets/{id}/add_message", s.ticketH.AddMessage)
	mux.HandleFunc("POST /api/support-tickets/{id}/change_status", s.ticketH.ChangeStatus)

	// Push notification API routes
	if s.pushService.Configured() {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}
}
