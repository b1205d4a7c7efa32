package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/encoding/json"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	applicationJson = "application/json"

	// config-prop: log time took by each request | false
	PropServerPerfEnabled = "server.perf.enabled"
)

// Router handler with context and rail.
type TRouteHandler func(c *gin.Context, rail core.Rail) (any, error)

// Router handler with the bound request, context and rail.
type MappedTRouteHandler[Req any] func(c *gin.Context, rail core.Rail, req Req) (any, error)

var (
	routeRegistarsMu sync.Mutex
	routeRegistars   []func(engine *gin.Engine)
)

func init() {
	core.SetDefProp(PropServerPerfEnabled, false)

	core.RegisterBootstrapCallback(core.ComponentBootstrap{
		Name:      "Bootstrap HTTP Server",
		Condition: WebServerBootstrapCondition,
		Bootstrap: WebServerBootstrap,
		Order:     core.BootstrapOrderL3,
	})
}

// Register routes, they are added to the engine when the server bootstraps.
func AddRoutes(f func(engine *gin.Engine)) {
	routeRegistarsMu.Lock()
	defer routeRegistarsMu.Unlock()
	routeRegistars = append(routeRegistars, f)
}

// Tracing Middleware, trace is read from request headers.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		core.UsePropagationKeys(func(k string) {
			if h := c.GetHeader(k); h != "" {
				ctx = context.WithValue(ctx, k, h) //lint:ignore SA1029 keys must be exposed to retrieve the values
			}
		})
		rail := core.NewRail(ctx)
		c.Request = c.Request.WithContext(rail.Context())
		c.Header(core.XTraceId, rail.TraceId())
		c.Next()
	}
}

// Build Rail from gin.Context.
func BuildRail(c *gin.Context) core.Rail {
	return core.NewRail(c.Request.Context())
}

// Default Recovery func
func DefaultRecovery(c *gin.Context, e any) {
	rail := BuildRail(c)
	rail.Errorf("Recovered from panic, %v", e)

	// response already written, avoid writting it again.
	if c.Writer.Written() {
		return
	}
	if err, ok := e.(error); ok {
		HandleEndpointResult(c, rail, nil, err)
		return
	}
	HandleEndpointResult(c, rail, nil, core.NewErrf("Unknown error, please try again later"))
}

// Build route handler with context and rail.
//
// value and error returned by handler are automically wrapped in a Resp object
func NewTRouteHandler(handler TRouteHandler) func(c *gin.Context) {
	return func(c *gin.Context) {
		rail := BuildRail(c)
		r, e := handler(c, rail)
		HandleEndpointResult(c, rail, r, e)
	}
}

/*
Build route handler with the bound request.

Query string is bound for GET and DELETE requests, json body for the others, gin binding tags are validated.
Value and error returned by handler are automically wrapped in a Resp object.
*/
func NewMappedTRouteHandler[Req any](handler MappedTRouteHandler[Req]) func(c *gin.Context) {
	return func(c *gin.Context) {
		rail := BuildRail(c)

		var req Req
		var err error
		switch c.Request.Method {
		case http.MethodGet, http.MethodDelete:
			err = c.ShouldBindQuery(&req)
		default:
			err = c.ShouldBindJSON(&req)
		}
		if err != nil {
			rail.Warnf("Bind payload failed, %v", err)
			HandleEndpointResult(c, rail, nil, core.ErrIllegalArgument.WithInternalMsg("%v", err))
			return
		}

		res, err := handler(c, rail, req)
		HandleEndpointResult(c, rail, res, err)
	}
}

func HandleEndpointResult(c *gin.Context, rail core.Rail, result any, err error) {
	code, resp := WrapResp(rail, result, err)
	DispatchJsonCode(c, code, resp)
}

// Dispatch a json response
func DispatchJsonCode(c *gin.Context, code int, body any) {
	c.Status(code)
	c.Header("Content-Type", applicationJson)
	if err := json.EncodeJson(c.Writer, body); err != nil {
		panic(err)
	}
}

type healthResp struct {
	Status     string              `json:"status"`
	Components []core.HealthStatus `json:"components"`
}

// Aggregated health status, 503 is returned if any indicator is unhealthy.
func HealthHandler(c *gin.Context) {
	rail := BuildRail(c)
	hs := core.CheckHealth(rail)
	resp := healthResp{Status: "UP", Components: hs}
	code := http.StatusOK
	for _, h := range hs {
		if !h.Healthy {
			resp.Status = "DOWN"
			code = http.StatusServiceUnavailable
			break
		}
	}
	DispatchJsonCode(c, code, resp)
}

// Create gin engine with middlewares, health check, metrics and the registered routes.
func NewEngine(rail core.Rail) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(TraceMiddleware())
	if !core.IsProdMode() && core.IsDebugLevel() {
		engine.Use(gin.Logger()) // gin's default logger for debugging
	}
	if core.GetPropBool(PropServerPerfEnabled) {
		engine.Use(PerfMiddleware())
	}
	engine.Use(gin.CustomRecovery(DefaultRecovery))

	engine.NoRoute(func(c *gin.Context) {
		BuildRail(c).Warnf("NoRoute for %s '%s', returning 404", c.Request.Method, c.Request.RequestURI)
		c.AbortWithStatus(http.StatusNotFound)
	})

	engine.GET(core.GetPropStr(core.PropHealthCheckUrl), HealthHandler)
	engine.GET(core.GetPropStr(core.PropMetricsRoute), gin.WrapH(promhttp.Handler()))

	routeRegistarsMu.Lock()
	regs := routeRegistars
	routeRegistarsMu.Unlock()
	for _, register := range regs {
		register(engine)
	}

	for _, r := range engine.Routes() {
		rail.Debugf("%-6s %s", r.Method, r.Path)
	}
	return engine
}

func WebServerBootstrapCondition(rail core.Rail) (bool, error) {
	return core.GetPropBool(core.PropServerEnabled), nil
}

func WebServerBootstrap(rail core.Rail) error {
	rail.Info("Starting HTTP server")
	engine := NewEngine(rail)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", core.GetPropStr(core.PropServerHost), core.GetPropStr(core.PropServerPort)),
		Handler: engine,
	}
	rail.Infof("Serving HTTP on %s", server.Addr)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rail.Fatalf("http.Server ListenAndServe: %s", err)
		}
	}()

	core.AddShutdownHook(func() { shutdownHttpServer(server) })
	return nil
}

/*
shutdown http server, including gracefull shutdown within certain duration of time

This func looks for following prop:

	"server.gracefulShutdownTimeSec"
*/
func shutdownHttpServer(server *http.Server) {
	core.Info("Shutting down http server gracefully")

	timeout := core.GetPropDur(core.PropServerGracefulShutdownTimeSec, time.Second)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		core.Warnf("Failed to shutdown http server, %v", err)
	}
	core.Infof("Http server exited")
}
