package router

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/freelancehub_ledger/config"
	"github.com/Alijeyrad/freelancehub_ledger/internal/api/http/handler"
	"github.com/Alijeyrad/freelancehub_ledger/internal/api/http/middleware"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/commission"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/milestone"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/payment"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/wallet"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/freelancehub_ledger/pkg/paseto"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg           *config.Config
	Redis         *redis.Client `optional:"true"`
	Auth          authorize.IAuthorization
	WalletSvc     wallet.Service
	PaymentSvc    payment.Service
	CommissionSvc commission.Service
	MilestoneSvc  milestone.Service
	PasetoMgr     *pasetotoken.Manager
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

// guards are the middlewares shared by the route files.
type guards struct {
	user        fiber.Handler // access tokens
	agent       fiber.Handler // access or service tokens
	idempotent  fiber.Handler
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler
	requireSelf func(authorize.Resource, authorize.Action) fiber.Handler
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	g := guards{
		user:       middleware.AuthRequired(r.p.PasetoMgr, r.p.Redis),
		agent:      middleware.AuthRequired(r.p.PasetoMgr, r.p.Redis, pasetotoken.TokenTypeAccess, pasetotoken.TokenTypeService),
		idempotent: middleware.Idempotency(r.p.Redis, time.Duration(r.p.Cfg.Ledger.IdempotencyTTLSeconds)*time.Second),
		requirePerm: func(res authorize.Resource, act authorize.Action) fiber.Handler {
			return middleware.RequirePermission(r.p.Auth, res, act)
		},
		requireSelf: func(res authorize.Resource, act authorize.Action) fiber.Handler {
			return middleware.RequireSelf(r.p.Auth, res, act)
		},
	}

	// 3. Initialize Handlers
	walletH := handler.NewWalletHandler(r.p.WalletSvc)
	transactionH := handler.NewTransactionHandler(r.p.PaymentSvc)
	commissionH := handler.NewCommissionHandler(r.p.CommissionSvc, r.p.PaymentSvc)
	milestoneH := handler.NewMilestoneHandler(r.p.MilestoneSvc)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	r.registerWalletRoutes(api, walletH, g)
	r.registerTransactionRoutes(api, transactionH, g)
	r.registerCommissionRoutes(api, commissionH, g)
	r.registerMilestoneRoutes(api, milestoneH, g)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool { return authorize.IsPolicyHealthy() },
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}
