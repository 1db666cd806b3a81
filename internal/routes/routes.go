package routes

import (
	"context"
	"time"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/bohemiyan/supportdesk/internal/access"
	"github.com/bohemiyan/supportdesk/internal/auth"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Service   *rbac.Service
	Guard     *rbac.Guard
	Auth      *auth.Authenticator
	DB        *gorm.DB
	Validator *access.TicketValidator
	Gatherer  prometheus.Gatherer
	Health    func(context.Context) error
	Log       *zap.SugaredLogger
}

// NewApp returns a fiber app that encodes JSON with goccy/go-json and maps
// errors through access.ErrorHandler.
func NewApp(log *zap.SugaredLogger, maskCheckFailures bool) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      "supportdesk",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: access.ErrorHandler(log, maskCheckFailures),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
}

func Setup(app *fiber.App, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.Validator == nil {
		d.Validator = access.NewTicketValidator(access.TicketRules{})
	}

	app.Get("/healthz", health(d.Health))
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	store := access.NewGormStore(d.DB)
	api := app.Group("/api/v1", d.Auth.Middleware(), access.Bind(store))

	roles := &roleHandlers{svc: d.Service, guard: d.Guard}
	api.Get("/users/:id/role", roles.get)
	api.Put("/users/:id/role", access.Require(d.Guard, rbac.PermManageRoles), roles.assign)
	api.Delete("/users/:id/role", access.Require(d.Guard, rbac.PermManageRoles), roles.remove)
	api.Get("/users/:id/role/audit", access.Require(d.Guard, rbac.PermViewAuditLog), roles.audit)
	api.Get("/roles/:role/permissions", access.Require(d.Guard, rbac.PermManageRoles), roles.permissions)
	api.Put("/roles/:role/permissions/:permission", access.Require(d.Guard, rbac.PermManageSettings), roles.grant)
	api.Delete("/roles/:role/permissions/:permission", access.Require(d.Guard, rbac.PermManageSettings), roles.revoke)
	api.Post("/me/role", roles.claimDefault)
	api.Get("/me/assignable-roles", roles.assignable)
	api.Get("/me/permissions", roles.effective)

	teams := &teamHandlers{svc: d.Service}
	teamGroup := api.Group("/teams", access.Require(d.Guard, rbac.PermManageTeams))
	teamGroup.Post("/:id/lead", teams.setLead)
	teamGroup.Post("/:id/members", teams.addMember)

	tickets := access.NewTickets(d.Guard)
	th := &ticketHandlers{db: d.DB, store: store}
	api.Post("/tickets", access.Require(d.Guard, rbac.PermCreateTickets), d.Validator.CreationHandler(), th.create)
	api.Get("/tickets/:id", tickets.AccessHandler("id"), th.get)
	api.Patch("/tickets/:id", tickets.ManageHandler("id"), d.Validator.UpdateHandler(), th.update)

	kb := access.NewKnowledgeBase(d.Guard)
	kh := &kbHandlers{db: d.DB, store: store}
	api.Get("/kb/articles/:id", kb.ViewHandler(), kh.getArticle)
	api.Post("/kb/articles", kb.ManageArticlesHandler(), kh.createArticle)
	api.Patch("/kb/articles/:id", kb.AuthorOrAdminHandler("id"), kh.updateArticle)
	api.Post("/kb/categories", kb.ManageCategoriesHandler(), kh.createCategory)

	d.Log.Infow("routes registered", "count", len(app.GetRoutes(true)))
}

func health(ping func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// actor returns the authenticated caller or ErrUnauthenticated.
func actor(c *fiber.Ctx) (string, error) {
	id := auth.ActorID(c)
	if id == "" {
		return "", access.ErrUnauthenticated
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return rbac.NewValidationError("invalid request body")
	}
	return nil
}
