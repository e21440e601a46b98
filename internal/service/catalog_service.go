package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/apiclient"
	"storefront/internal/domain"
	"storefront/internal/validation"

	"go.uber.org/zap"
)

var ErrProductNotFound = errors.New("product not found")

// CatalogService defines product browsing and admin product management
type CatalogService interface {
	List(ctx context.Context, sess *Session, search string) ([]domain.Product, error)
	Get(ctx context.Context, sess *Session, id string) (*domain.Product, error)
	Create(ctx context.Context, sess *Session, input domain.ProductInput) (*domain.Product, error)
	Update(ctx context.Context, sess *Session, id string, input domain.ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, sess *Session, id string) error
}

type catalogService struct {
	logger *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(logger *zap.Logger) CatalogService {
	return &catalogService{logger: logger}
}

// List returns the catalog, narrowed to products whose name or description
// contains search (case-insensitive)
func (s *catalogService) List(ctx context.Context, sess *Session, search string) ([]domain.Product, error) {
	if err := sess.Authorize().Err(); err != nil {
		return nil, err
	}

	products, err := sess.Client.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return products, nil
	}

	matched := products[:0]
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Description), term) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

func (s *catalogService) Get(ctx context.Context, sess *Session, id string) (*domain.Product, error) {
	if err := sess.Authorize().Err(); err != nil {
		return nil, err
	}

	product, err := sess.Client.GetProduct(ctx, id)
	if err != nil {
		return nil, productError("get", err)
	}
	return product, nil
}

func (s *catalogService) Create(ctx context.Context, sess *Session, input domain.ProductInput) (*domain.Product, error) {
	if err := sess.Authorize(domain.RoleAdmin).Err(); err != nil {
		return nil, err
	}
	input = normalizeProductInput(input)
	if err := validation.Struct(input); err != nil {
		return nil, newValidationError(err)
	}

	product, err := sess.Client.CreateProduct(ctx, input)
	if err != nil {
		return nil, productError("create", err)
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("by", sess.User().ID))
	return product, nil
}

// Update replaces every field of a product
func (s *catalogService) Update(ctx context.Context, sess *Session, id string, input domain.ProductInput) (*domain.Product, error) {
	if err := sess.Authorize(domain.RoleAdmin).Err(); err != nil {
		return nil, err
	}
	input = normalizeProductInput(input)
	if err := validation.Struct(input); err != nil {
		return nil, newValidationError(err)
	}

	product, err := sess.Client.UpdateProduct(ctx, id, input)
	if err != nil {
		return nil, productError("update", err)
	}

	s.logger.Info("Product updated", zap.String("product_id", id), zap.String("by", sess.User().ID))
	return product, nil
}

func (s *catalogService) Delete(ctx context.Context, sess *Session, id string) error {
	if err := sess.Authorize(domain.RoleAdmin).Err(); err != nil {
		return err
	}

	if err := sess.Client.DeleteProduct(ctx, id); err != nil {
		return productError("delete", err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", id), zap.String("by", sess.User().ID))
	return nil
}

func normalizeProductInput(input domain.ProductInput) domain.ProductInput {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Badge = strings.TrimSpace(input.Badge)
	input.ImageURL = strings.TrimSpace(input.ImageURL)
	return input
}

func productError(op string, err error) error {
	if apiclient.IsStatus(err, http.StatusNotFound) {
		return ErrProductNotFound
	}
	return fmt.Errorf("failed to %s product: %w", op, err)
}
