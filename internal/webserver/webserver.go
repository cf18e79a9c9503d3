package webserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo-contrib/session"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"

	"github.com/openmercado/mercadillo/config"
	"github.com/openmercado/mercadillo/pkg/metrics"
)

const (
	// AppContextKey is where the application container lives in the
	// request context.
	AppContextKey = "mercadillo_app"
)

// AppProvider is what the web layer needs from the application
// container; internal/app.Application satisfies it.
type AppProvider interface {
	Config() *config.AppConfig
}

var server *WebServer

// WebServer wraps echo with the JWT-protected /api/v1 group.
type WebServer struct {
	root *echo.Echo
	api  *echo.Group
	cfg  *config.AppConfig
}

// JSONSerializer serializes with jsoniter instead of encoding/json.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsoniter.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := jsoniter.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}

// Init builds the server. Route registration (adminapi) happens after
// Init and before Start.
func Init(appCtx AppProvider) {
	cfg := appCtx.Config()
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.ERROR)
	e.JSONSerializer = JSONSerializer{}

	e.Use(middleware.Recover())
	e.Use(session.Middleware(sessions.NewCookieStore([]byte(cfg.Web.Secret))))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			metrics.Counter(metrics.MetricAPIRequest)
			return next(c)
		}
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
	})
	e.Static("/uploads", cfg.UploadsDir())

	api := e.Group("/api/v1")
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(cfg.Web.Secret),
		NewClaimsFunc: NewTokenClaims,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Path(), "/api/v1/auth/login")
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"code":    "UNAUTHORIZED",
				"message": "Missing or invalid token",
			})
		},
	}))

	server = &WebServer{root: e, api: api, cfg: cfg}
}

// Start runs the HTTP listener; it blocks until shutdown.
func Start() error {
	addr := fmt.Sprintf("%s:%d", server.cfg.Web.Host, server.cfg.Web.Port)
	zap.S().Infof("web server listening on %s", addr)
	return server.root.Start(addr)
}

// Shutdown closes the listener.
func Shutdown() {
	if server != nil {
		_ = server.root.Close()
	}
}

// Echo exposes the root engine (used by handler tests).
func Echo() *echo.Echo {
	return server.root
}

// ApiGET registers a GET route under /api/v1.
func ApiGET(path string, h echo.HandlerFunc) {
	server.api.GET(path, h)
}

// ApiPOST registers a POST route under /api/v1.
func ApiPOST(path string, h echo.HandlerFunc) {
	server.api.POST(path, h)
}

// ApiPUT registers a PUT route under /api/v1.
func ApiPUT(path string, h echo.HandlerFunc) {
	server.api.PUT(path, h)
}

// ApiPATCH registers a PATCH route under /api/v1.
func ApiPATCH(path string, h echo.HandlerFunc) {
	server.api.PATCH(path, h)
}

// ApiDELETE registers a DELETE route under /api/v1.
func ApiDELETE(path string, h echo.HandlerFunc) {
	server.api.DELETE(path, h)
}
