package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/store"
)

type CalculateInput struct {
	CustomerID  int64  `json:"customerId" validate:"required,min=1"`
	EventID     int64  `json:"eventId" validate:"required,min=1"`
	KitQuantity int    `json:"kitQuantity" validate:"min=1,max=5"`
	AddressID   int64  `json:"addressId" validate:"omitempty,min=1"`
	CouponCode  string `json:"couponCode"`
}

type CostPreview struct {
	Quotation
	AddressID int64 `json:"addressId"`
}

// DeliveryService prices an order before it is placed.
type DeliveryService struct {
	repo   store.Repository
	pricer *Pricer
	logger *zap.Logger
}

func NewDeliveryService(repo store.Repository, pricer *Pricer, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{repo: repo, pricer: pricer, logger: logger}
}

// Calculate returns the cost breakdown shown on the preview step. Without an
// address id the customer's default address is used.
func (s *DeliveryService) Calculate(ctx context.Context, in CalculateInput) (*CostPreview, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	customer, err := loadCustomer(ctx, s.repo, s.logger, in.CustomerID)
	if err != nil {
		return nil, err
	}
	event, err := loadEvent(ctx, s.repo, s.logger, in.EventID)
	if err != nil {
		return nil, err
	}

	address, err := s.pickAddress(ctx, customer.ID, in.AddressID)
	if err != nil {
		return nil, err
	}

	q, err := s.pricer.Price(ctx, s.repo, event, address, in.KitQuantity, in.CouponCode)
	if err != nil {
		return nil, err
	}

	return &CostPreview{Quotation: *q, AddressID: address.ID}, nil
}

func (s *DeliveryService) pickAddress(ctx context.Context, customerID, addressID int64) (*models.Address, error) {
	if addressID != 0 {
		return loadOwnedAddress(ctx, s.repo, s.logger, customerID, addressID)
	}

	addresses, err := s.repo.ListAddressesByCustomer(ctx, customerID)
	if err != nil {
		s.logger.Error("list addresses failed", zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, apperr.Persistence(msgAddressListFailed, err)
	}
	for i := range addresses {
		if addresses[i].IsDefault {
			return &addresses[i], nil
		}
	}
	if len(addresses) > 0 {
		return &addresses[0], nil
	}
	return nil, apperr.Invalid("addressId", "Cadastre um endereço de entrega")
}

func loadOwnedAddress(ctx context.Context, repo store.Repository, logger *zap.Logger, customerID, addressID int64) (*models.Address, error) {
	address, err := repo.GetAddress(ctx, addressID)
	if err != nil {
		if errors.Is(err, store.ErrAddressNotFound) {
			return nil, apperr.NotFound("address", msgAddressNotFound)
		}
		logger.Error("get address failed", zap.Int64("address_id", addressID), zap.Error(err))
		return nil, apperr.Persistence("Erro ao buscar endereço", err)
	}
	if address.CustomerID != customerID {
		return nil, apperr.Invalid("addressId", "Endereço não pertence ao cliente")
	}
	return address, nil
}
