// Package httpapi is the JSON HTTP surface of fundkeeper. Every route except
// login, refresh and the liveness probe requires a bearer access token; the
// authenticated user is passed to the services as the acting user.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/fundkeeper/internal/logging"
	"github.com/dmitrijs2005/fundkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Services groups the business services the API dispatches to.
type Services struct {
	Users        *services.UserService
	Funds        *services.FundService
	Senders      *services.SenderService
	Transactions *services.TransactionService
	Exports      *services.ExportService
}

type Server struct {
	address string
	logger  logging.Logger
	users   *services.UserService
	funds   *services.FundService
	senders *services.SenderService
	txs     *services.TransactionService
	exports *services.ExportService
}

func NewServer(address string, l logging.Logger, svc Services) *Server {
	return &Server{
		address: address,
		logger:  l.With("module", "http_server"),
		users:   svc.Users,
		funds:   svc.Funds,
		senders: svc.Senders,
		txs:     svc.Transactions,
		exports: svc.Exports,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/refresh", s.refresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/dashboard", s.dashboard)

			r.Route("/funds", func(r chi.Router) {
				r.Get("/", s.listFunds)
				r.Post("/", s.createFund)
				r.Route("/{fundID}", func(r chi.Router) {
					r.Get("/", s.getFund)
					r.Put("/", s.updateFund)
					r.Delete("/", s.deleteFund)
					r.Post("/members", s.addMember)
					r.Delete("/members/{userID}", s.removeMember)
					r.Get("/transactions", s.listTransactions)
					r.Post("/export", s.exportFund)
				})
			})

			r.Post("/transactions", s.createTransaction)
			r.Put("/transactions/{transactionID}", s.updateTransaction)
			r.Delete("/transactions/{transactionID}", s.deleteTransaction)

			r.Route("/senders", func(r chi.Router) {
				r.Get("/", s.listSenders)
				r.Post("/", s.createSender)
				r.Get("/{senderID}", s.getSender)
				r.Put("/{senderID}", s.updateSender)
				r.Delete("/{senderID}", s.deleteSender)
			})
			r.Get("/member-names", s.memberNames)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", s.profile)
				r.Patch("/theme", s.updateTheme)
				r.Patch("/add-member-ui", s.updateAddMemberUI)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", s.listUsers)
				r.Post("/", s.createUser)
				r.Put("/{userID}", s.updateUser)
				r.Delete("/{userID}", s.deleteUser)
			})
		})
	})

	return r
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
