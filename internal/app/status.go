package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clhughes/reV/internal/ctxlog"
)

// healthHandler reports process liveness for cluster health probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("health endpoint hit", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startStatusServer serves liveness and run metrics for long-running node
// jobs. Best effort: a failed listen is logged, never fatal to the run.
func (a *App) startStatusServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", a.cfg.StatusPort)
	a.httpServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("status server starting", "address", fmt.Sprintf("http://localhost%s", addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("status server failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		_ = a.httpServer.Close()
	}()
}
