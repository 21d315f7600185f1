package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/normalize"
	"github.com/safar/kitrunner/internal/store"
)

const (
	msgOrderNotFound     = "Pedido não encontrado"
	msgOrderCreateFailed = "Erro ao criar pedido"
	msgEventUnavailable  = "Evento indisponível"

	orderNumberAttempts = 3
)

// NumberGenerator issues order numbers.
type NumberGenerator interface {
	Next() string
}

type KitInput struct {
	Name      string `json:"name" validate:"notblank"`
	CPF       string `json:"cpf" validate:"required,cpf"`
	ShirtSize string `json:"shirtSize" validate:"required,shirtsize"`
}

type CreateOrderInput struct {
	EventID       int64      `json:"eventId" validate:"required,min=1"`
	CustomerID    int64      `json:"customerId" validate:"required,min=1"`
	AddressID     int64      `json:"addressId" validate:"required,min=1"`
	KitQuantity   int        `json:"kitQuantity" validate:"min=1,max=5"`
	Kits          []KitInput `json:"kits" validate:"dive"`
	PaymentMethod string     `json:"paymentMethod" validate:"required,payment"`
	CouponCode    string     `json:"couponCode"`
}

type DeliveryEstimate struct {
	EventDate    string `json:"eventDate"`
	DeliveryDate string `json:"deliveryDate"`
}

type OrderConfirmation struct {
	Order            models.Order     `json:"order"`
	Kits             []models.Kit     `json:"kits"`
	Event            models.Event     `json:"event"`
	DeliveryEstimate DeliveryEstimate `json:"deliveryEstimate"`
}

type OrderService struct {
	store        store.Store
	pricer       *Pricer
	numbers      NumberGenerator
	estimateDays int
	logger       *zap.Logger
}

func NewOrderService(s store.Store, pricer *Pricer, numbers NumberGenerator, estimateDays int, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:        s,
		pricer:       pricer,
		numbers:      numbers,
		estimateDays: estimateDays,
		logger:       logger,
	}
}

// CreateOrder validates the request, prices it and stores the order with its
// kits in one transaction. Nothing is written when any step fails.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderConfirmation, error) {
	err := validateStruct(in, func(verr *apperr.ValidationError) {
		if in.KitQuantity >= models.MinKitQuantity && in.KitQuantity <= models.MaxKitQuantity && len(in.Kits) != in.KitQuantity {
			verr.Add("kits", fmt.Sprintf("Informe os dados de %d kit(s)", in.KitQuantity))
		}
	})
	if err != nil {
		return nil, err
	}

	event, err := loadEvent(ctx, s.store, s.logger, in.EventID)
	if err != nil {
		return nil, err
	}
	if _, err := loadCustomer(ctx, s.store, s.logger, in.CustomerID); err != nil {
		return nil, err
	}
	address, err := loadOwnedAddress(ctx, s.store, s.logger, in.CustomerID, in.AddressID)
	if err != nil {
		return nil, err
	}
	if !event.Available {
		return nil, apperr.Invalid("eventId", msgEventUnavailable)
	}

	quotation, err := s.pricer.Price(ctx, s.store, event, address, in.KitQuantity, in.CouponCode)
	if err != nil {
		return nil, err
	}
	b := quotation.Breakdown

	template := models.Order{
		EventID:        event.ID,
		CustomerID:     in.CustomerID,
		AddressID:      address.ID,
		KitQuantity:    in.KitQuantity,
		DeliveryCost:   b.Delivery,
		DonationCost:   b.Donation,
		BaseCost:       b.Base,
		ExtraKitsCost:  b.ExtraKitsCost,
		DiscountAmount: b.Discount,
		CouponCode:     b.CouponCode,
		TotalCost:      b.Total,
		PaymentMethod:  models.PaymentMethod(in.PaymentMethod),
		Status:         models.OrderStatusConfirmed,
	}

	kits := make([]models.Kit, len(in.Kits))
	for i, k := range in.Kits {
		kits[i] = models.Kit{
			Name:      strings.TrimSpace(k.Name),
			CPF:       normalize.CPF(k.CPF),
			ShirtSize: models.ShirtSize(k.ShirtSize),
		}
	}

	order, savedKits, err := s.persist(ctx, template, kits)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("order_id", order.ID),
		zap.Int64("event_id", order.EventID),
		zap.Int64("customer_id", order.CustomerID),
		zap.Int("kit_quantity", order.KitQuantity),
		zap.String("total_cost", order.TotalCost.StringFixed(2)),
	)

	return &OrderConfirmation{
		Order:            *order,
		Kits:             savedKits,
		Event:            *event,
		DeliveryEstimate: s.estimate(event),
	}, nil
}

// persist inserts the order and its kits, drawing a fresh order number when
// another process already used the generated one.
func (s *OrderService) persist(ctx context.Context, template models.Order, kits []models.Kit) (*models.Order, []models.Kit, error) {
	var (
		order  models.Order
		stored []models.Kit
		err    error
	)

	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order = template
		order.OrderNumber = s.numbers.Next()

		err = s.store.WithinTx(ctx, func(tx store.Repository) error {
			o := order
			if err := tx.CreateOrder(ctx, &o); err != nil {
				return err
			}
			created := make([]models.Kit, 0, len(kits))
			for _, k := range kits {
				k.OrderID = o.ID
				if err := tx.CreateKit(ctx, &k); err != nil {
					return err
				}
				created = append(created, k)
			}
			order = o
			stored = created
			return nil
		})
		if !errors.Is(err, store.ErrDuplicateOrderNumber) {
			break
		}
		s.logger.Warn("order number collision",
			zap.String("order_number", order.OrderNumber),
			zap.Int("attempt", attempt),
		)
	}

	if err != nil {
		s.logger.Error("persist order failed", zap.Error(err))
		return nil, nil, apperr.Persistence(msgOrderCreateFailed, err)
	}

	return &order, stored, nil
}

func (s *OrderService) estimate(event *models.Event) DeliveryEstimate {
	est := DeliveryEstimate{EventDate: event.Date}
	if t, err := time.Parse(normalize.DateLayout, event.Date); err == nil {
		est.DeliveryDate = t.AddDate(0, 0, s.estimateDays).Format(normalize.DateLayout)
	}
	return est
}

// GetOrderByNumber returns the order with its kits and event.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderConfirmation, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, apperr.NotFound("order", msgOrderNotFound)
	}

	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return nil, apperr.NotFound("order", msgOrderNotFound)
		}
		s.logger.Error("get order failed", zap.String("order_number", orderNumber), zap.Error(err))
		return nil, apperr.Persistence("Erro ao buscar pedido", err)
	}

	kits, err := s.store.ListKitsByOrder(ctx, order.ID)
	if err != nil {
		s.logger.Error("list kits failed", zap.Int64("order_id", order.ID), zap.Error(err))
		return nil, apperr.Persistence("Erro ao buscar pedido", err)
	}

	event, err := loadEvent(ctx, s.store, s.logger, order.EventID)
	if err != nil {
		return nil, err
	}

	return &OrderConfirmation{
		Order:            *order,
		Kits:             kits,
		Event:            *event,
		DeliveryEstimate: s.estimate(event),
	}, nil
}

// ListCustomerOrders pages through a customer's orders, newest first.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID int64, cursor string, limit int) (*store.CursorPage, error) {
	if _, err := loadCustomer(ctx, s.store, s.logger, customerID); err != nil {
		return nil, err
	}

	if _, err := store.DecodeCursor(cursor); err != nil {
		return nil, apperr.Invalid("cursor", "Cursor inválido")
	}

	page, err := s.store.ListOrdersByCustomer(ctx, customerID, cursor, limit)
	if err != nil {
		s.logger.Error("list orders failed", zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, apperr.Persistence("Erro ao buscar pedidos", err)
	}
	return page, nil
}
