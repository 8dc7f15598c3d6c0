package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/bankhub/internal/auth"
	"github.com/geocoder89/bankhub/internal/cache"
	"github.com/geocoder89/bankhub/internal/config"
	"github.com/geocoder89/bankhub/internal/http/handlers"
	"github.com/geocoder89/bankhub/internal/http/middlewares"
	"github.com/geocoder89/bankhub/internal/observability"
	"github.com/geocoder89/bankhub/internal/policy"
	"github.com/geocoder89/bankhub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps carries everything the router needs, as narrow interfaces, so tests
// can run the full engine on the memory store without postgres or redis.
type Deps struct {
	Log *slog.Logger
	Cfg config.Config

	Users       handlers.UsersStore
	Credentials middlewares.CredentialStore
	Accounts    handlers.AccountsStore
	Transfers   handlers.TransferStore

	Cache cache.Store
	JWT   *auth.Manager
	Prom  *observability.Prom

	// Metrics is the scrape endpoint; nil skips the route.
	Metrics http.Handler

	// Ping reports backing-store readiness for /readyz.
	Ping func() error
}

func New(deps Deps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(deps.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.Cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("bankhub"))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health + metrics
	h := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	authmw := middlewares.NewAuthMiddleware(deps.Credentials, deps.JWT)

	// token issuance is unauthenticated, so it gets its own limiter
	tokenLimiter := middlewares.NewRateLimiter(10, time.Minute)

	tokenHandler := handlers.NewTokenHandler(deps.Credentials, deps.JWT)
	r.POST("/auth/token",
		tokenLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		tokenHandler.IssueToken,
	)

	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Cfg.InitialBalance)
	accountsHandler := handlers.NewAccountsHandler(deps.Accounts, deps.Cache, deps.Prom)
	transfersHandler := handlers.NewTransfersHandler(deps.Transfers, deps.Cache)

	r.POST("/user/",
		authmw.RequireAuth(),
		authmw.RequirePolicy(policy.OpCreateUser),
		usersHandler.CreateUser,
	)
	r.GET("/user/list",
		authmw.RequireAuth(),
		authmw.RequirePolicy(policy.OpListUsers),
		usersHandler.ListUsers,
	)

	r.GET("/account/:id",
		authmw.RequireAuth(),
		authmw.RequirePolicy(policy.OpAccountRead),
		accountsHandler.GetAccount,
	)
	r.POST("/account/deposit/:id",
		authmw.RequireAuth(),
		authmw.RequirePolicy(policy.OpAccountMutate),
		accountsHandler.Deposit,
	)
	r.POST("/account/withdraw/:id",
		authmw.RequireAuth(),
		authmw.RequirePolicy(policy.OpAccountMutate),
		accountsHandler.Withdraw,
	)

	r.POST("/transfer/",
		authmw.RequireAuth(),
		authmw.RequirePolicy(policy.OpTransfer),
		transfersHandler.Transfer,
	)

	return r
}

// NewRouter wires the postgres-backed engine used by cmd/api.
func NewRouter(log *slog.Logger, pool *pgxpool.Pool, store cache.Store, cfg config.Config, prom *observability.Prom, metrics http.Handler) *gin.Engine {
	usersRepo := postgres.NewUsersRepo(pool, prom)
	accountsRepo := postgres.NewAccountsRepo(pool, prom)

	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	return New(Deps{
		Log:         log,
		Cfg:         cfg,
		Users:       usersRepo,
		Credentials: usersRepo,
		Accounts:    accountsRepo,
		Transfers:   accountsRepo,
		Cache:       store,
		JWT:         auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute),
		Prom:        prom,
		Metrics:     metrics,
		Ping:        ping,
	})
}
