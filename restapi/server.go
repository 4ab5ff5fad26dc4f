package restapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/bnb-chain/blob-stats/logging"
	"github.com/bnb-chain/blob-stats/restapi/handlers"
	"github.com/bnb-chain/blob-stats/service"
)

const shutdownPeriod = 5 * time.Second

type Server struct {
	address    string
	router     *mux.Router
	httpServer *http.Server
}

func NewServer(address string, svc service.Analytics) *Server {
	return &Server{
		address: address,
		router:  NewRouter(svc),
	}
}

func NewRouter(svc service.Analytics) *mux.Router {
	h := handlers.NewAnalyticsHandler(svc)
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Methods(http.MethodGet).Subrouter()
	routes := map[string]http.HandlerFunc{
		"/stats":              h.HandleGetStats,
		"/blocks":             h.HandleGetRecentBlocks,
		"/block":              h.HandleGetBlock,
		"/senders":            h.HandleGetTopSenders,
		"/chart":              h.HandleGetChart,
		"/all-time-chart":     h.HandleGetAllTimeChart,
		"/blob-transactions":  h.HandleGetBlobTransactions,
		"/rolling-comparison": h.HandleGetRollingComparison,
		"/chain-profiles":     h.HandleGetChainProfiles,
		"/congestion-heatmap": h.HandleGetCongestionHeatmap,
	}
	for path, fn := range routes {
		api.HandleFunc(path, handlers.Instrument(path, fn))
	}
	router.HandleFunc("/healthz", handlers.HandleHealthz).Methods(http.MethodGet)
	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the API until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()
	logging.Logger.Infof("api server listening on %s", s.address)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Logger.Errorf("failed to listen and serve api, err=%s", err.Error())
		return err
	}
	return nil
}
