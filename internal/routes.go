package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "leanstats/api/v1"
	"leanstats/internal/auth"
	"leanstats/internal/http"
	"leanstats/internal/http/middleware"
)

// publicCORSConfig lets trackers on any origin submit hits.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, DNT, Sec-GPC",
}

type access int

const (
	accessOpen access = iota
	accessPublic
	accessLogin
	accessAdmin
	accessAdminAPI
)

type route struct {
	method  string
	path    string
	access  access
	handler fiber.Handler
}

// Handlers groups every HTTP handler of the application.
type Handlers struct {
	Hits     *v1.HitsHandler
	Health   *http.HealthHandler
	Reports  *http.ReportsHandler
	Settings *http.SettingsHandler
	RawLogs  *http.RawLogsHandler
	Session  *http.SessionHandler
}

// NewHandlers builds the handlers over c. callers identifies the request
// user and sessions issues login cookies.
func (c *Components) NewHandlers(callers auth.Resolver, sessions *cartridge.SessionManager) *Handlers {
	return &Handlers{
		Hits:     v1.NewHitsHandler(c.Collector, callers, c.Logger),
		Health:   http.NewHealthHandler(c.DB, c.Logger),
		Reports:  http.NewReportsHandler(c.Analytics, c.Ranges, c.Logger),
		Settings: http.NewSettingsHandler(c.Settings, c.Logger),
		RawLogs:  http.NewRawLogsHandler(c.RawLogs, c.Logger),
		Session:  http.NewSessionHandler(c.DB, sessions, c.Nonces, c.Logger),
	}
}

func (h *Handlers) routes() []route {
	noContent := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }

	return []route{
		{fiber.MethodGet, "/_health", accessOpen, h.Health.Index},
		{fiber.MethodHead, "/_health", accessOpen, h.Health.Index},

		{fiber.MethodPost, "/hits", accessPublic, h.Hits.Create},
		{fiber.MethodOptions, "/hits", accessPublic, noContent},

		{fiber.MethodPost, "/login", accessLogin, h.Session.Login},
		{fiber.MethodPost, "/logout", accessOpen, h.Session.Logout},

		{fiber.MethodGet, "/admin/nonce", accessAdmin, h.Session.Nonce},

		{fiber.MethodGet, "/admin/kpis", accessAdminAPI, h.Reports.KPIs},
		{fiber.MethodGet, "/admin/top-pages", accessAdminAPI, h.Reports.TopPages},
		{fiber.MethodGet, "/admin/referrers", accessAdminAPI, h.Reports.Referrers},
		{fiber.MethodGet, "/admin/timeseries/day", accessAdminAPI, h.Reports.TimeseriesDay},
		{fiber.MethodGet, "/admin/timeseries/hour", accessAdminAPI, h.Reports.TimeseriesHour},
		{fiber.MethodGet, "/admin/device-split", accessAdminAPI, h.Reports.DeviceSplit},
		{fiber.MethodGet, "/admin/overview", accessAdminAPI, h.Reports.Overview},

		{fiber.MethodGet, "/admin/settings", accessAdminAPI, h.Settings.Show},
		{fiber.MethodPost, "/admin/settings", accessAdminAPI, h.Settings.Update},
		{fiber.MethodGet, "/admin/roles", accessAdminAPI, h.Settings.Roles},

		{fiber.MethodGet, "/admin/raw-logs", accessAdminAPI, h.RawLogs.Index},
		{fiber.MethodDelete, "/admin/raw-logs", accessAdminAPI, h.RawLogs.Purge},
	}
}

// SetupSession configures session management on the server.
func (c *Components) SetupSession(srv *cartridge.Server) *cartridge.SessionManager {
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: c.Config.AppName + "_session",
		Secret:     c.Config.GetSessionSecret(),
		TTL:        time.Duration(c.Config.GetLoginSessionTimeout()) * time.Second,
		Secure:     c.Config.IsProduction(),
		LoginPath:  "/login",
	})
	srv.SetSession(sessionMgr)
	return sessionMgr
}

// RouteMount returns the cartridge route mount function for c.
func (c *Components) RouteMount() func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		sessions := c.SetupSession(srv)
		callers := auth.NewSessionResolver(sessions, c.DB, c.Logger)
		handlers := c.NewHandlers(callers, sessions)

		// Stricter rate limiter for auth endpoints (10 requests per minute)
		authRateLimiter := cartridgemiddleware.RateLimiter(
			cartridgemiddleware.WithMax(10),
			cartridgemiddleware.WithDuration(time.Minute),
		)

		configs := map[access]*cartridge.RouteConfig{
			accessOpen: nil,
			// The hit endpoint runs its own per-client limiter, and trackers
			// post cross-site without fetch metadata
			accessPublic: {
				EnableCORS:         true,
				CORSConfig:         publicCORSConfig,
				EnableSecFetchSite: cartridge.Bool(false),
			},
			accessLogin: {
				CustomMiddleware: []fiber.Handler{authRateLimiter},
			},
			accessAdmin: {
				CustomMiddleware: []fiber.Handler{middleware.Administrator(callers, c.Logger)},
			},
			accessAdminAPI: {
				CustomMiddleware: []fiber.Handler{middleware.AdminAPI(callers, c.Nonces, c.Logger)},
			},
		}

		for _, r := range handlers.routes() {
			mountCartridgeRoute(srv, r, configs[r.access])
		}
	}
}

func mountCartridgeRoute(srv *cartridge.Server, r route, cfg *cartridge.RouteConfig) {
	handler := r.handler
	wrap := func(ctx *cartridge.Context) error {
		return handler(ctx.Ctx)
	}

	var cfgs []*cartridge.RouteConfig
	if cfg != nil {
		cfgs = append(cfgs, cfg)
	}

	switch r.method {
	case fiber.MethodGet:
		srv.Get(r.path, wrap, cfgs...)
	case fiber.MethodHead:
		srv.Head(r.path, wrap, cfgs...)
	case fiber.MethodPost:
		srv.Post(r.path, wrap, cfgs...)
	case fiber.MethodOptions:
		srv.Options(r.path, wrap, cfgs...)
	case fiber.MethodDelete:
		srv.Delete(r.path, wrap, cfgs...)
	}
}

// MountFiberRoutes registers the same routes on a bare fiber app, without
// the cartridge server middleware. Used by tests.
func (c *Components) MountFiberRoutes(app *fiber.App, handlers *Handlers, callers auth.Resolver) {
	chains := map[access][]fiber.Handler{
		accessOpen:     nil,
		accessPublic:   {cors.New(*publicCORSConfig)},
		accessLogin:    nil,
		accessAdmin:    {middleware.Administrator(callers, c.Logger)},
		accessAdminAPI: {middleware.AdminAPI(callers, c.Nonces, c.Logger)},
	}

	for _, r := range handlers.routes() {
		chain := append(append([]fiber.Handler{}, chains[r.access]...), r.handler)
		app.Add(r.method, r.path, chain...)
	}
}
