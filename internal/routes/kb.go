package routes

import (
	"errors"
	"fmt"
	"strings"

	rbac "github.com/bohemiyan/supportdesk"
	"github.com/bohemiyan/supportdesk/internal/access"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type kbHandlers struct {
	db    *gorm.DB
	store access.DomainStore
}

type articleRequest struct {
	Title      *string `json:"title"`
	Body       *string `json:"body"`
	CategoryID *string `json:"category_id"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *kbHandlers) getArticle(c *fiber.Ctx) error {
	id, err := access.ParamID(c, "id")
	if err != nil {
		return err
	}
	article, err := h.store.Article(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(article)
}

func (h *kbHandlers) createArticle(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	var body articleRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		return &rbac.ValidationError{
			Message: "invalid article",
			Fields:  []rbac.FieldError{{Field: "title", Message: "is required"}},
		}
	}

	article := rbac.KBArticle{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(*body.Title),
		AuthorID:   actorID,
		CategoryID: body.CategoryID,
	}
	if body.Body != nil {
		article.Body = *body.Body
	}
	if err := h.db.WithContext(c.UserContext()).Create(&article).Error; err != nil {
		return fmt.Errorf("create article: %w", err)
	}
	return c.Status(fiber.StatusCreated).JSON(article)
}

func (h *kbHandlers) updateArticle(c *fiber.Ctx) error {
	id, err := access.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body articleRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}

	changes := map[string]any{}
	if body.Title != nil {
		if strings.TrimSpace(*body.Title) == "" {
			return &rbac.ValidationError{
				Message: "invalid article",
				Fields:  []rbac.FieldError{{Field: "title", Message: "must not be blank"}},
			}
		}
		changes["title"] = strings.TrimSpace(*body.Title)
	}
	if body.Body != nil {
		changes["body"] = *body.Body
	}
	if body.CategoryID != nil {
		changes["category_id"] = *body.CategoryID
	}
	if len(changes) == 0 {
		return rbac.NewValidationError("no fields to update")
	}

	err = h.db.WithContext(c.UserContext()).Model(&rbac.KBArticle{ID: id}).Updates(changes).Error
	if err != nil {
		return fmt.Errorf("update article %s: %w", id, err)
	}
	return h.getArticle(c)
}

func (h *kbHandlers) createCategory(c *fiber.Ctx) error {
	var body categoryRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return &rbac.ValidationError{
			Message: "invalid category",
			Fields:  []rbac.FieldError{{Field: "name", Message: "is required"}},
		}
	}

	category := rbac.KBCategory{ID: uuid.NewString(), Name: name}
	if err := h.db.WithContext(c.UserContext()).Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return rbac.NewValidationError("Category already exists")
		}
		return fmt.Errorf("create category: %w", err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}
