package service

import (
	"context"
	"fmt"
	"sort"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// recentOrdersShown is how many orders the dashboard lists
const recentOrdersShown = 5

// Dashboard is the admin overview
type Dashboard struct {
	TotalProducts    int             `json:"totalProducts"`
	TotalOrders      int             `json:"totalOrders"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	LowStockProducts int             `json:"lowStockProducts"`
	RecentOrders     []domain.Order  `json:"recentOrders"`
}

// DashboardService defines the admin overview
type DashboardService interface {
	Overview(ctx context.Context, sess *Session) (*Dashboard, error)
}

type dashboardService struct {
	logger *zap.Logger
}

// NewDashboardService creates a new instance of DashboardService
func NewDashboardService(logger *zap.Logger) DashboardService {
	return &dashboardService{logger: logger}
}

// Overview loads products and orders concurrently and aggregates them
func (s *dashboardService) Overview(ctx context.Context, sess *Session) (*Dashboard, error) {
	if err := sess.Authorize(domain.RoleAdmin).Err(); err != nil {
		return nil, err
	}

	var (
		products []domain.Product
		orders   []domain.Order
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = sess.Client.GetProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = sess.Client.GetOrders(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}

	return summarize(products, orders), nil
}

func summarize(products []domain.Product, orders []domain.Order) *Dashboard {
	d := &Dashboard{
		TotalProducts: len(products),
		TotalOrders:   len(orders),
		TotalRevenue:  decimal.Zero,
	}

	for _, p := range products {
		if p.Stock < domain.LowStockThreshold {
			d.LowStockProducts++
		}
	}
	for _, o := range orders {
		d.TotalRevenue = d.TotalRevenue.Add(o.Total)
	}

	recent := make([]domain.Order, len(orders))
	copy(recent, orders)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentOrdersShown {
		recent = recent[:recentOrdersShown]
	}
	d.RecentOrders = recent

	return d
}
