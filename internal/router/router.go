package router

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "clinical-consent/docs"
	mem "clinical-consent/internal/adapters/storage/memory"
	pg "clinical-consent/internal/adapters/storage/postgres"
	"clinical-consent/internal/domain/authorization"
	"clinical-consent/internal/domain/consent"
	"clinical-consent/internal/domain/qrtokens"
	"clinical-consent/internal/domain/records"
	"clinical-consent/internal/middleware"
	"clinical-consent/internal/platform/logger"
	"clinical-consent/internal/ports/auth"
	"clinical-consent/internal/ports/events"
)

// Stores agrupa los repos que comparten router y janitor.
type Stores struct {
	Consents consent.Repository
	Tokens   qrtokens.Repository
	Records  records.Repository
}

// NewStores usa Postgres si viene db; si no, in-memory.
func NewStores(db *sql.DB, retry pg.Retry) Stores {
	if db != nil {
		return Stores{
			Consents: pg.NewConsentRepo(db, retry),
			Tokens:   pg.NewTokenRepo(db, retry),
			Records:  pg.NewRecordsRepo(db, retry),
		}
	}
	return Stores{
		Consents: mem.NewConsentRepo(),
		Tokens:   mem.NewTokenRepo(),
		Records:  mem.NewRecordRepo(),
	}
}

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si es nil se arman stores in-memory.
	Stores *Stores

	Logger    logger.Logger
	Publisher events.Publisher

	TokenTTL           time.Duration
	MaxConsentDuration time.Duration
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	stores := opts.Stores
	if stores == nil {
		s := NewStores(nil, pg.Retry{})
		stores = &s
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log.Zerolog()))
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authzSvc := authorization.NewService(stores.Consents, stores.Tokens, authorization.Options{
		TokenTTL:           opts.TokenTTL,
		MaxConsentDuration: opts.MaxConsentDuration,
		Publisher:          opts.Publisher,
		Logger:             log.With(map[string]any{"component": "authorization"}),
	})
	gate := authorization.NewGate(authzSvc)
	recordsSvc := records.NewService(stores.Records, gate)

	authorization.RegisterRoutes(r, authzSvc)
	records.RegisterRoutes(r, recordsSvc)

	return r
}
