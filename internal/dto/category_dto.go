package dto

import (
	"encoding/json"

	"github.com/noah-isme/pazar-go-api/internal/models"
)

// CategoryCreateRequest is the payload to create a category node.
type CategoryCreateRequest struct {
	Name        string          `json:"name" validate:"required,min=2,max=255"`
	Slug        string          `json:"slug" validate:"required,min=2,max=255,lowercase"`
	Description string          `json:"description" validate:"omitempty,max=2000"`
	Image       string          `json:"image" validate:"omitempty,url"`
	ParentID    *uint           `json:"parent_id"`
	Position    int             `json:"position" validate:"gte=0"`
	IsFeatured  bool            `json:"is_featured"`
	Template    json.RawMessage `json:"template"`
}

// CategoryUpdateRequest carries partial category updates. Nil fields stay
// untouched.
type CategoryUpdateRequest struct {
	Name        *string         `json:"name" validate:"omitempty,min=2,max=255"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	Image       *string         `json:"image" validate:"omitempty,url"`
	Position    *int            `json:"position" validate:"omitempty,gte=0"`
	IsActive    *bool           `json:"is_active"`
	IsFeatured  *bool           `json:"is_featured"`
	Template    json.RawMessage `json:"template"`
}

// CategoryResponse is the serialized representation of a category.
type CategoryResponse struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	IsActive    bool            `json:"is_active"`
	IsFeatured  bool            `json:"is_featured"`
	ParentID    *uint           `json:"parent_id,omitempty"`
	Position    int             `json:"position"`
	Template    json.RawMessage `json:"template,omitempty"`
}

// NewCategoryResponse converts a model into a DTO.
func NewCategoryResponse(category models.Category) CategoryResponse {
	return CategoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		Image:       category.Image,
		IsActive:    category.IsActive,
		IsFeatured:  category.IsFeatured,
		ParentID:    category.ParentID,
		Position:    category.Position,
		Template:    json.RawMessage(category.Template),
	}
}

// NewCategoryResponseSlice converts a slice of models into DTOs.
func NewCategoryResponseSlice(categories []models.Category) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		out = append(out, NewCategoryResponse(category))
	}
	return out
}

// CategoryTreeNode is a category with its children resolved, used by the
// tree endpoint.
type CategoryTreeNode struct {
	CategoryResponse
	Children []CategoryTreeNode `json:"children,omitempty"`
}

// CategoryWithCountResponse pairs a category with its active listing count.
type CategoryWithCountResponse struct {
	CategoryResponse
	ListingCount int64 `json:"listing_count"`
}
