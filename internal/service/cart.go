package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

const defaultUnit = "box"

type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

// GetOrCreate returns the caller's cart, creating an empty one on first access.
func (s *CartService) GetOrCreate(ctx context.Context, p Principal) (*model.Cart, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) View(ctx context.Context, p Principal) (*dto.CartResponse, error) {
	cart, err := s.GetOrCreate(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// AddItem merges a line into the cart. Lines are keyed by product and
// selected size; a repeated key adds to the existing quantity.
func (s *CartService) AddItem(ctx context.Context, p Principal, req dto.AddCartItemRequest) (*dto.CartResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.PricePerUnit != nil {
		if !req.PricePerUnit.IsPositive() {
			return nil, validationError("price_per_unit must be greater than zero")
		}
		if err := checkMoney("price_per_unit", *req.PricePerUnit); err != nil {
			return nil, err
		}
	}
	if err := s.requireProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}

	cart, err := s.GetOrCreate(ctx, p)
	if err != nil {
		return nil, err
	}
	cart.Items = mergeItem(cart.Items, model.CartItem{
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		SelectedSize: req.SelectedSize,
		PricePerUnit: req.PricePerUnit,
		Unit:         req.Unit,
	})
	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return s.view(ctx, cart)
}

// UpdateItem sets the quantity of a line. A quantity <= 0 removes the lines
// for the product, limited to the selected size when one is given.
func (s *CartService) UpdateItem(ctx context.Context, p Principal, productID uuid.UUID, req dto.UpdateCartItemRequest) (*dto.CartResponse, error) {
	if req.PricePerUnit != nil {
		if !req.PricePerUnit.IsPositive() {
			return nil, validationError("price_per_unit must be greater than zero")
		}
		if err := checkMoney("price_per_unit", *req.PricePerUnit); err != nil {
			return nil, err
		}
	}
	if req.Quantity > 0 {
		if err := s.requireProduct(ctx, productID); err != nil {
			return nil, err
		}
	}

	cart, err := s.GetOrCreate(ctx, p)
	if err != nil {
		return nil, err
	}

	if req.Quantity <= 0 {
		cart.Items = removeItems(cart.Items, productID, req.SelectedSize)
	} else {
		var found bool
		cart.Items, found = updateItem(cart.Items, productID, req)
		if !found {
			return nil, ErrCartItemNotFound
		}
	}

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return s.view(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, p Principal, productID uuid.UUID, selectedSize string) (*dto.CartResponse, error) {
	return s.UpdateItem(ctx, p, productID, dto.UpdateCartItemRequest{SelectedSize: selectedSize})
}

func (s *CartService) Clear(ctx context.Context, p Principal) error {
	if _, err := s.GetOrCreate(ctx, p); err != nil {
		return err
	}
	if err := s.cartRepo.Clear(ctx, p.UserID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *CartService) requireProduct(ctx context.Context, id uuid.UUID) error {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return ErrProductNotFound
	}
	return nil
}

// view joins cart lines with the current catalog. Lines whose product was
// deleted are left out of the view and the total.
func (s *CartService) view(ctx context.Context, cart *model.Cart) (*dto.CartResponse, error) {
	resp := &dto.CartResponse{Items: make([]dto.CartItemResponse, 0, len(cart.Items)), TotalPrice: decimal.Zero}
	for _, item := range cart.Items {
		product, err := s.productRepo.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			continue
		}

		price := product.Price
		if item.PricePerUnit != nil {
			price = *item.PricePerUnit
		}
		unit := item.Unit
		if unit == "" {
			unit = defaultUnit
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))

		resp.Items = append(resp.Items, dto.CartItemResponse{
			ProductID:    item.ProductID,
			Product:      toProductResponse(product),
			Quantity:     item.Quantity,
			SelectedSize: item.SelectedSize,
			PricePerUnit: price,
			Unit:         unit,
			LineTotal:    lineTotal,
		})
		resp.TotalPrice = resp.TotalPrice.Add(lineTotal)
	}
	return resp, nil
}

func mergeItem(items []model.CartItem, add model.CartItem) []model.CartItem {
	for i := range items {
		if items[i].ProductID != add.ProductID || items[i].SelectedSize != add.SelectedSize {
			continue
		}
		items[i].Quantity += add.Quantity
		if add.PricePerUnit != nil {
			items[i].PricePerUnit = add.PricePerUnit
		}
		if add.Unit != "" {
			items[i].Unit = add.Unit
		}
		return items
	}
	return append(items, add)
}

func removeItems(items []model.CartItem, productID uuid.UUID, selectedSize string) []model.CartItem {
	kept := items[:0]
	for _, it := range items {
		if it.ProductID == productID && (selectedSize == "" || it.SelectedSize == selectedSize) {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

// updateItem changes the first line matching the product (and size, if given).
func updateItem(items []model.CartItem, productID uuid.UUID, req dto.UpdateCartItemRequest) ([]model.CartItem, bool) {
	for i := range items {
		if items[i].ProductID != productID {
			continue
		}
		if req.SelectedSize != "" && items[i].SelectedSize != req.SelectedSize {
			continue
		}
		items[i].Quantity = req.Quantity
		if req.PricePerUnit != nil {
			items[i].PricePerUnit = req.PricePerUnit
		}
		if req.Unit != "" {
			items[i].Unit = req.Unit
		}
		return items, true
	}
	return items, false
}
