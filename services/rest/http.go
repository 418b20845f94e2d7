// Package rest is the JSON front door of a replica. Every request is handed to the local
// coordinator, which routes it to the shard owning it.
package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/services/coordinator"
	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/bsv-blockchain/shardledger/util/health"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var restStat = gocore.NewStat("REST")

// HTTP serves the ledger API with echo.
type HTTP struct {
	logger      ulogger.Logger
	settings    *settings.Settings
	coordinator coordinator.Interface
	checks      []health.Check
	e           *echo.Echo
	startTime   time.Time
}

// New builds the echo server. checks are reported by /health next to the coordinator.
func New(logger ulogger.Logger, tSettings *settings.Settings, handler coordinator.Interface, checks ...health.Check) *HTTP {
	initPrometheusMetrics()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())

	h := &HTTP{
		logger:      logger,
		settings:    tSettings,
		coordinator: handler,
		checks:      append([]health.Check{{Name: "Coordinator", Check: handler.Health}}, checks...),
		e:           e,
		startTime:   time.Now(),
	}

	e.GET("/alive", func(c echo.Context) error {
		return c.String(http.StatusOK, fmt.Sprintf("shardledger %s is alive. Uptime: %s\n", tSettings.Cluster.ServerID, time.Since(h.startTime)))
	})

	e.GET("/health", func(c echo.Context) error {
		status, details, err := h.Health(c.Request().Context(), false)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}

		return c.Blob(status, echo.MIMEApplicationJSON, []byte(details))
	})

	if endpoint := tSettings.HTTP.PrometheusEndpoint; endpoint != "" {
		e.GET(endpoint, echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group(apiPrefix(tSettings.HTTP.APIPrefix))

	api.POST("transactions", h.SubmitTransactions)
	api.GET("transactions", h.GetEntireHistory)
	api.POST("send_coins", h.SendCoins)
	api.GET("users/:address/transactions", h.GetAddressTransactions)
	api.GET("users/:address/utxos", h.GetAddressUTXOs)

	return h
}

func (h *HTTP) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	return health.CheckAll(ctx, checkLiveness, h.checks)
}

func (h *HTTP) Init(_ context.Context) error {
	return nil
}

// Start serves on the configured listen address until ctx is done.
func (h *HTTP) Start(ctx context.Context, readyCh chan<- struct{}) error {
	lis, err := net.Listen("tcp", h.settings.HTTP.ListenAddress)
	if err != nil {
		return errors.NewServiceError("[REST] failed to listen on %s", h.settings.HTTP.ListenAddress, err)
	}

	return h.Serve(ctx, lis, readyCh)
}

// Serve serves on lis until ctx is done.
func (h *HTTP) Serve(ctx context.Context, lis net.Listener, readyCh chan<- struct{}) error {
	go func() {
		<-ctx.Done()

		h.logger.Infof("[REST] service shutting down")

		if err := h.e.Shutdown(context.Background()); err != nil {
			h.logger.Errorf("[REST] service shutdown error: %s", err)
		}
	}()

	h.e.Listener = lis

	h.logger.Infof("[REST] listening on %s", lis.Addr().String())

	if readyCh != nil {
		close(readyCh)
	}

	if err := h.e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.NewServiceError("[REST] server failed", err)
	}

	return nil
}

func (h *HTTP) Stop(ctx context.Context) error {
	return h.e.Shutdown(ctx)
}

// ServeHTTP lets the server be driven directly by tests and other handlers.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.e.ServeHTTP(w, r)
}

// apiPrefix returns prefix with a leading and a trailing slash.
func apiPrefix(prefix string) string {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return prefix
}
