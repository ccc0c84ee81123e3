package obsv

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminServer exposes /metrics and /healthz on a port separate from
// the gateway's client-facing gin router, grounded on the teacher's
// dashboard mux pattern in internal/monitoring.
type AdminServer struct {
	srv *http.Server
}

// NewAdminServer builds an AdminServer bound to addr.
func NewAdminServer(addr string) *AdminServer {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &AdminServer{srv: &http.Server{Addr: addr, Handler: r}}
}

// ListenAndServe blocks until ctx is cancelled.
func (a *AdminServer) ListenAndServe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(shutdownCtx)
	}()
	if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
