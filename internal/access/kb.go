package access

import (
	"context"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/gofiber/fiber/v2"
)

const msgForbidden = "Forbidden"

// KnowledgeBase guards knowledge-base routes.
type KnowledgeBase struct {
	guard *rbac.Guard
}

func NewKnowledgeBase(guard *rbac.Guard) *KnowledgeBase {
	return &KnowledgeBase{guard: guard}
}

func (k *KnowledgeBase) CanManageCategories(ctx context.Context, req Request) error {
	return k.require(ctx, req, rbac.PermManageKBCategories)
}

func (k *KnowledgeBase) CanManageArticles(ctx context.Context, req Request) error {
	return k.require(ctx, req, rbac.PermManageKBArticles)
}

func (k *KnowledgeBase) CanViewKnowledgeBase(ctx context.Context, req Request) error {
	return k.require(ctx, req, rbac.PermViewKB)
}

// IsArticleAuthorOrAdmin allows the article's author and knowledge-base
// admins. A missing article is reported before any permission check.
func (k *KnowledgeBase) IsArticleAuthorOrAdmin(ctx context.Context, req Request, articleID string) error {
	if err := req.check(); err != nil {
		return err
	}
	article, err := req.Store.Article(ctx, articleID)
	if err != nil {
		return lookupFailed(err)
	}
	if article.AuthorID == req.ActorID {
		return nil
	}
	return k.require(ctx, req, rbac.PermAdminKB)
}

func (k *KnowledgeBase) require(ctx context.Context, req Request, permission string) error {
	if req.ActorID == "" {
		return ErrUnauthenticated
	}
	_, err := k.guard.RequirePermission(ctx, req.ActorID, permission, rbac.WithMessage(msgForbidden))
	return err
}

func (k *KnowledgeBase) ManageCategoriesHandler() fiber.Handler {
	return k.handler(k.CanManageCategories)
}

func (k *KnowledgeBase) ManageArticlesHandler() fiber.Handler {
	return k.handler(k.CanManageArticles)
}

func (k *KnowledgeBase) ViewHandler() fiber.Handler {
	return k.handler(k.CanViewKnowledgeBase)
}

// AuthorOrAdminHandler runs IsArticleAuthorOrAdmin on the article named by
// the route param.
func (k *KnowledgeBase) AuthorOrAdminHandler(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := FromCtx(c)
		if err := req.check(); err != nil {
			return err
		}
		id, err := ParamID(c, param)
		if err != nil {
			return err
		}
		if err := k.IsArticleAuthorOrAdmin(c.UserContext(), req, id); err != nil {
			return err
		}
		return c.Next()
	}
}

func (k *KnowledgeBase) handler(check func(context.Context, Request) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := check(c.UserContext(), FromCtx(c)); err != nil {
			return err
		}
		return c.Next()
	}
}
