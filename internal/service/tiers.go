package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lark/internal/errors"
	"lark/internal/models"
)

// TierService manages ticket tier inventory definitions.
type TierService struct {
	store Store
}

func NewTierService(store Store) *TierService {
	return &TierService{store: store}
}

func (s *TierService) Create(ctx context.Context, req *models.CreateTierRequest) (*models.TicketTier, error) {
	if req.Name == "" {
		return nil, errors.New(errors.KindValidation, "tier name is required")
	}
	if req.TotalQuantity <= 0 {
		return nil, errors.New(errors.KindValidation, "total quantity must be positive")
	}
	if req.UnitPrice.IsNegative() {
		return nil, errors.New(errors.KindValidation, "unit price cannot be negative")
	}
	if req.ServiceFee.IsNegative() {
		return nil, errors.New(errors.KindValidation, "service fee cannot be negative")
	}

	now := time.Now()
	tier := &models.TicketTier{
		ID:                uuid.New().String(),
		Name:              req.Name,
		UnitPrice:         req.UnitPrice,
		ServiceFee:        req.ServiceFee,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.TotalQuantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.CreateTier(ctx, tier); err != nil {
		return nil, fmt.Errorf("failed to create tier: %w", err)
	}
	return tier, nil
}

func (s *TierService) Get(ctx context.Context, id string) (*models.TicketTier, error) {
	tier, err := s.store.GetTier(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	if tier == nil {
		return nil, errors.New(errors.KindNotFound, "tier not found")
	}
	return tier, nil
}

func (s *TierService) List(ctx context.Context) ([]models.TicketTier, error) {
	tiers, err := s.store.ListTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	return tiers, nil
}
