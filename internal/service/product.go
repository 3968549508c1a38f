package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

const defaultProductCacheTTL = 60 * time.Second

type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
	cacheTTL    time.Duration
}

// NewProductService builds the catalog service. redisClient may be nil to
// disable the read cache.
func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client, cacheTTL time.Duration) *ProductService {
	if cacheTTL <= 0 {
		cacheTTL = defaultProductCacheTTL
	}
	return &ProductService{productRepo: productRepo, redisClient: redisClient, cacheTTL: cacheTTL}
}

func (s *ProductService) Create(ctx context.Context, p Principal, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Price.IsPositive() {
		return nil, validationError("price must be greater than zero")
	}
	if err := checkMoney("price", req.Price); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = model.ProductStatusActive
	}

	product := &model.Product{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		ImageURL:      req.ImageURL,
		Category:      req.Category,
		StockQuantity: req.StockQuantity,
		Status:        status,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := productCacheKey(id)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return &resp, nil
}

// List returns a page of products. Non-admin callers only ever see active
// products; admins see every status unless they filter.
func (s *ProductService) List(ctx context.Context, p Principal, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	status := model.ProductStatus(req.Status)
	if !p.Admin {
		status = model.ProductStatusActive
	}

	products, total, err := s.productRepo.List(ctx, model.ProductFilter{
		Category: req.Category,
		Status:   status,
		Search:   req.Search,
		Sort:     req.Sort,
		Order:    req.Order,
		Limit:    req.Limit,
		Offset:   (req.Page - 1) * req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, toProductResponse(&products[i]))
	}

	return &dto.ProductListResponse{Products: items, Total: total, Page: req.Page, Limit: req.Limit}, nil
}

func (s *ProductService) Update(ctx context.Context, p Principal, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, validationError("price must be greater than zero")
		}
		if err := checkMoney("price", *req.Price); err != nil {
			return nil, err
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.StockQuantity != nil {
		product.StockQuantity = *req.StockQuantity
	}
	if req.Status != nil {
		product.Status = *req.Status
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.InvalidateCache(ctx, id)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, p Principal, id uuid.UUID) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.InvalidateCache(ctx, id)
	return nil
}

// InvalidateCache drops cached catalog entries, e.g. after stock moved.
func (s *ProductService) InvalidateCache(ctx context.Context, ids ...uuid.UUID) {
	if s.redisClient == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productCacheKey(id)
	}
	s.redisClient.Del(ctx, keys...)
}

func productCacheKey(id uuid.UUID) string {
	return "product:" + id.String()
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		ImageURL:      p.ImageURL,
		Category:      p.Category,
		StockQuantity: p.StockQuantity,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
