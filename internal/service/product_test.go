package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
)

type mockProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (m *mockProductRepo) add(name string, price string, stock int) *model.Product {
	p := &model.Product{
		ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price),
		StockQuantity: stock, Status: model.ProductStatusActive,
	}
	m.products[p.ID] = p
	return p
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) List(_ context.Context, f model.ProductFilter) ([]model.Product, int, error) {
	var all []model.Product
	for _, p := range m.products {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.products, id)
	return nil
}

var adminPrincipal = Principal{UserID: uuid.New(), Admin: true}

func TestProductService_Create(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil, 0)

	resp, err := svc.Create(context.Background(), adminPrincipal, dto.CreateProductRequest{
		Name: "Roses", Price: decimal.RequireFromString("9.99"), StockQuantity: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Roses", resp.Name)
	assert.Equal(t, 100, resp.StockQuantity)
	assert.Equal(t, model.ProductStatusActive, resp.Status)
}

func TestProductService_Create_Rejects(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil, 0)

	_, err := svc.Create(context.Background(), Principal{UserID: uuid.New()}, dto.CreateProductRequest{
		Name: "Roses", Price: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), adminPrincipal, dto.CreateProductRequest{
		Name: "Roses", Price: decimal.Zero,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), adminPrincipal, dto.CreateProductRequest{
		Name: "Roses", Price: decimal.NewFromInt(1), StockQuantity: -1,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil, 0)
	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_List_HidesInactiveFromCustomers(t *testing.T) {
	repo := newMockProductRepo()
	repo.add("Lily", "5", 1)
	hidden := repo.add("Tulip", "4", 1)
	hidden.Status = model.ProductStatusInactive
	svc := NewProductService(repo, nil, 0)
	req := dto.ListProductsRequest{Page: 1, Limit: 20, Sort: "name", Order: "asc", Status: "inactive"}

	resp, err := svc.List(context.Background(), Principal{UserID: uuid.New()}, req)
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Lily", resp.Products[0].Name)

	resp, err = svc.List(context.Background(), adminPrincipal, req)
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Tulip", resp.Products[0].Name)

	req.Status = ""
	resp, err = svc.List(context.Background(), adminPrincipal, req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
}

func TestProductService_Update(t *testing.T) {
	repo := newMockProductRepo()
	p := repo.add("Lily", "5", 1)
	svc := NewProductService(repo, nil, 0)
	price := decimal.RequireFromString("7.50")
	inactive := model.ProductStatusInactive

	resp, err := svc.Update(context.Background(), adminPrincipal, p.ID, dto.UpdateProductRequest{
		Price: &price, Status: &inactive,
	})
	require.NoError(t, err)
	assert.True(t, price.Equal(resp.Price))
	assert.Equal(t, model.ProductStatusInactive, repo.products[p.ID].Status)

	_, err = svc.Update(context.Background(), adminPrincipal, uuid.New(), dto.UpdateProductRequest{Price: &price})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_RejectsSubCentPrice(t *testing.T) {
	repo := newMockProductRepo()
	p := repo.add("Lily", "5", 1)
	svc := NewProductService(repo, nil, 0)

	_, err := svc.Create(context.Background(), adminPrincipal, dto.CreateProductRequest{
		Name: "Roses", Price: decimal.RequireFromString("10.005"),
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Len(t, repo.products, 1)

	price := decimal.RequireFromString("7.999")
	_, err = svc.Update(context.Background(), adminPrincipal, p.ID, dto.UpdateProductRequest{Price: &price})
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, decimal.NewFromInt(5).Equal(repo.products[p.ID].Price))
}

// vanishingProductRepo loses the row between the read and the write of an update.
type vanishingProductRepo struct {
	*mockProductRepo
}

func (v vanishingProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := v.mockProductRepo.GetByID(ctx, id)
	delete(v.products, id)
	return p, err
}

func TestProductService_Update_DeletedConcurrently(t *testing.T) {
	repo := newMockProductRepo()
	p := repo.add("Lily", "5", 1)
	svc := NewProductService(vanishingProductRepo{repo}, nil, 0)
	name := "Lilac"

	_, err := svc.Update(context.Background(), adminPrincipal, p.ID, dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_Delete(t *testing.T) {
	repo := newMockProductRepo()
	p := repo.add("Lily", "5", 1)
	svc := NewProductService(repo, nil, 0)

	assert.ErrorIs(t, svc.Delete(context.Background(), Principal{UserID: uuid.New()}, p.ID), ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), adminPrincipal, p.ID))
	assert.Empty(t, repo.products)
	assert.ErrorIs(t, svc.Delete(context.Background(), adminPrincipal, p.ID), ErrProductNotFound)
}
