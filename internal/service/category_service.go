package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/pazar-go-api/internal/dto"
	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/repository"
	"github.com/noah-isme/pazar-go-api/internal/taxonomy"
)

// ErrCategoryInUse indicates a delete was refused because listings still
// reference the category.
var ErrCategoryInUse = errors.New("category still has active listings")

// ErrSpecificationsInvalid indicates dynamic listing fields failed the
// category template.
var ErrSpecificationsInvalid = errors.New("specifications do not match category template")

// CategoryService exposes the category forest and its derived taxonomy
// snapshot. The snapshot is rebuilt lazily and cached for the configured
// TTL; writes invalidate it immediately.
type CategoryService interface {
	Tree(ctx context.Context) ([]dto.CategoryTreeNode, error)
	Snapshot(ctx context.Context) (*taxonomy.Tree, error)
	ListWithCounts(ctx context.Context) ([]dto.CategoryWithCountResponse, error)
	GetBySlug(ctx context.Context, slug string) (dto.CategoryResponse, error)
	Create(ctx context.Context, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error)
	Update(ctx context.Context, id uint, payload dto.CategoryUpdateRequest) (dto.CategoryResponse, error)
	Delete(ctx context.Context, id uint) error
	ValidateSpecifications(ctx context.Context, categorySlug string, specs map[string]interface{}) error
}

type categoryService struct {
	repo      repository.CategoryRepository
	redis     *redis.Client
	cacheKey  string
	cacheTTL  time.Duration
	events    EventPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	mu         sync.RWMutex
	snapshot   *taxonomy.Tree
	snapshotAt time.Time
}

// NewCategoryService constructs a category service. The redis client and
// event publisher are optional.
func NewCategoryService(repo repository.CategoryRepository, redisClient *redis.Client, cacheTTL time.Duration, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) CategoryService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &categoryService{
		repo:      repo,
		redis:     redisClient,
		cacheKey:  "pazar:categories:tree",
		cacheTTL:  cacheTTL,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "category_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/pazar-go-api/internal/service/category"),
		now:       time.Now,
	}
}

// Snapshot returns the cached taxonomy tree, rebuilding it from storage
// when the cache is stale. Queries tolerate a slightly stale snapshot.
func (s *categoryService) Snapshot(ctx context.Context) (*taxonomy.Tree, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.now().Sub(s.snapshotAt) < s.cacheTTL {
		tree := s.snapshot
		s.mu.RUnlock()
		return tree, nil
	}
	s.mu.RUnlock()

	categories, err := s.repo.ListAll(ctx)
	if err != nil {
		// Serve the stale snapshot over failing the query outright.
		s.mu.RLock()
		stale := s.snapshot
		s.mu.RUnlock()
		if stale != nil {
			s.logger.Warn().Err(err).Msg("category reload failed, serving stale snapshot")
			return stale, nil
		}
		return nil, err
	}

	tree := taxonomy.NewTree(categories)

	s.mu.Lock()
	s.snapshot = tree
	s.snapshotAt = s.now()
	s.mu.Unlock()

	return tree, nil
}

func (s *categoryService) Tree(ctx context.Context) ([]dto.CategoryTreeNode, error) {
	ctx, span := s.tracer.Start(ctx, "categories.tree")
	defer span.End()

	if cached, ok := s.treeFromRedis(ctx); ok {
		return cached, nil
	}

	categories, err := s.repo.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	nodes := buildTreeNodes(categories)
	s.treeToRedis(ctx, nodes)
	return nodes, nil
}

func (s *categoryService) treeFromRedis(ctx context.Context) ([]dto.CategoryTreeNode, bool) {
	if s.redis == nil {
		return nil, false
	}

	raw, err := s.redis.Get(ctx, s.cacheKey).Bytes()
	if err != nil {
		return nil, false
	}

	var nodes []dto.CategoryTreeNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, false
	}
	return nodes, true
}

func (s *categoryService) treeToRedis(ctx context.Context, nodes []dto.CategoryTreeNode) {
	if s.redis == nil {
		return
	}

	raw, err := json.Marshal(nodes)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache category tree")
	}
}

func buildTreeNodes(categories []models.Category) []dto.CategoryTreeNode {
	children := make(map[uint][]models.Category)
	var roots []models.Category
	for _, category := range categories {
		if category.ParentID == nil {
			roots = append(roots, category)
			continue
		}
		children[*category.ParentID] = append(children[*category.ParentID], category)
	}

	var build func(category models.Category) dto.CategoryTreeNode
	build = func(category models.Category) dto.CategoryTreeNode {
		node := dto.CategoryTreeNode{CategoryResponse: dto.NewCategoryResponse(category)}
		for _, child := range children[category.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	nodes := make([]dto.CategoryTreeNode, 0, len(roots))
	for _, root := range roots {
		nodes = append(nodes, build(root))
	}
	return nodes
}

func (s *categoryService) ListWithCounts(ctx context.Context) ([]dto.CategoryWithCountResponse, error) {
	categories, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]dto.CategoryWithCountResponse, 0, len(categories))
	for _, category := range categories {
		count, err := s.repo.CountActiveListings(ctx, category.Slug)
		if err != nil {
			return nil, err
		}
		out = append(out, dto.CategoryWithCountResponse{
			CategoryResponse: dto.NewCategoryResponse(category),
			ListingCount:     count,
		})
	}
	return out, nil
}

func (s *categoryService) GetBySlug(ctx context.Context, slug string) (dto.CategoryResponse, error) {
	category, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return dto.CategoryResponse{}, err
	}
	return dto.NewCategoryResponse(category), nil
}

func (s *categoryService) Create(ctx context.Context, payload dto.CategoryCreateRequest) (dto.CategoryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CategoryResponse{}, err
	}

	category := models.Category{
		Name:        strings.TrimSpace(payload.Name),
		Slug:        strings.ToLower(strings.TrimSpace(payload.Slug)),
		Description: strings.TrimSpace(payload.Description),
		Image:       payload.Image,
		IsActive:    true,
		IsFeatured:  payload.IsFeatured,
		ParentID:    payload.ParentID,
		Position:    payload.Position,
		Template:    datatypes.JSON(payload.Template),
	}

	if err := s.repo.Create(ctx, &category); err != nil {
		return dto.CategoryResponse{}, err
	}

	s.invalidate(ctx)
	return dto.NewCategoryResponse(category), nil
}

func (s *categoryService) Update(ctx context.Context, id uint, payload dto.CategoryUpdateRequest) (dto.CategoryResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CategoryResponse{}, err
	}

	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.CategoryResponse{}, err
	}

	if payload.Name != nil {
		category.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Description != nil {
		category.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.Image != nil {
		category.Image = *payload.Image
	}
	if payload.Position != nil {
		category.Position = *payload.Position
	}
	if payload.IsActive != nil {
		category.IsActive = *payload.IsActive
	}
	if payload.IsFeatured != nil {
		category.IsFeatured = *payload.IsFeatured
	}
	if len(payload.Template) > 0 {
		category.Template = datatypes.JSON(payload.Template)
	}

	if err := s.repo.Update(ctx, &category); err != nil {
		return dto.CategoryResponse{}, err
	}

	s.invalidate(ctx)
	return dto.NewCategoryResponse(category), nil
}

func (s *categoryService) Delete(ctx context.Context, id uint) error {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repo.CountActiveListings(ctx, category.Slug)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoryInUse
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

func (s *categoryService) invalidate(ctx context.Context) {
	s.mu.Lock()
	s.snapshot = nil
	s.snapshotAt = time.Time{}
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Del(ctx, s.cacheKey).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drop category tree cache")
		}
	}
	if s.events != nil {
		s.events.Publish(ctx, ChangeEvent{Kind: EventCategoryChanged})
	}
}

// ValidateSpecifications checks dynamic listing fields against the
// category's JSON schema template. Categories without a template accept
// anything.
func (s *categoryService) ValidateSpecifications(ctx context.Context, categorySlug string, specs map[string]interface{}) error {
	category, err := s.repo.GetBySlug(ctx, categorySlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if len(category.Template) == 0 {
		return nil
	}

	schema, err := jsonschema.CompileString(category.Slug+".json", string(category.Template))
	if err != nil {
		s.logger.Warn().Err(err).Str("category", category.Slug).Msg("unusable category template, skipping validation")
		return nil
	}

	document := make(map[string]interface{}, len(specs))
	for key, value := range specs {
		document[key] = value
	}

	if err := schema.Validate(document); err != nil {
		return errors.Join(ErrSpecificationsInvalid, err)
	}
	return nil
}
