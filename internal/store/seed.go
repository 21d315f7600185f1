package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/safar/kitrunner/internal/models"
)

// Seed loads the demo catalogue. It does nothing when events already exist,
// so it is safe to call on every start.
func Seed(ctx context.Context, s Store) error {
	existing, err := s.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	return s.WithinTx(ctx, func(tx Repository) error {
		for _, e := range seedEvents() {
			if err := tx.CreateEvent(ctx, &e); err != nil {
				return fmt.Errorf("seed event %q: %w", e.Name, err)
			}
		}

		for _, sc := range seedCustomers() {
			c := sc.customer
			if err := tx.CreateCustomer(ctx, &c); err != nil {
				return fmt.Errorf("seed customer %q: %w", c.Name, err)
			}
			a := sc.address
			a.CustomerID = c.ID
			if err := tx.CreateAddress(ctx, &a); err != nil {
				return fmt.Errorf("seed address for %q: %w", c.Name, err)
			}
		}

		coupon := models.Coupon{Code: "KITRUNNER10", DiscountPercent: decimal.NewFromInt(10), Active: true}
		if err := tx.CreateCoupon(ctx, &coupon); err != nil {
			return fmt.Errorf("seed coupon: %w", err)
		}
		return nil
	})
}

func seedEvents() []models.Event {
	eight := decimal.RequireFromString("8.00")
	donation := decimal.RequireFromString("5.00")
	fixed := decimal.RequireFromString("45.00")
	couponPct := decimal.NewFromInt(15)

	return []models.Event{
		{
			Name:           "Maratona de São Paulo 2024",
			Date:           "2024-12-15",
			Time:           "06:00",
			Location:       "Parque Ibirapuera",
			City:           "São Paulo",
			State:          "SP",
			Participants:   12000,
			Available:      true,
			ExtraKitPrice:  eight,
			CouponCode:     "MARATONA15",
			CouponDiscount: &couponPct,
			PickupZipCode:  "04094050",
		},
		{
			Name:                "Corrida de Rua Rio 2024",
			Date:                "2024-12-22",
			Time:                "07:00",
			Location:            "Copacabana",
			City:                "Rio de Janeiro",
			State:               "RJ",
			Participants:        8000,
			Available:           true,
			ExtraKitPrice:       eight,
			DonationRequired:    true,
			DonationDescription: "Doação para o projeto Corrida Solidária",
			DonationAmount:      &donation,
			PickupZipCode:       "22070011",
		},
		{
			Name:          "Meia Maratona BH",
			Date:          "2024-12-28",
			Time:          "06:30",
			Location:      "Lagoa da Pampulha",
			City:          "Belo Horizonte",
			State:         "MG",
			Participants:  5000,
			Available:     false,
			ExtraKitPrice: eight,
			PickupZipCode: "31270901",
		},
		{
			Name:          "Corrida Noturna Curitiba",
			Date:          "2025-01-18",
			Time:          "19:30",
			Location:      "Parque Barigui",
			City:          "Curitiba",
			State:         "PR",
			Participants:  3000,
			Available:     true,
			FixedPrice:    &fixed,
			ExtraKitPrice: eight,
			PickupZipCode: "80810000",
		},
	}
}

type seedCustomer struct {
	customer models.Customer
	address  models.Address
}

func seedCustomers() []seedCustomer {
	return []seedCustomer{
		{
			customer: models.Customer{
				Name:      "João Silva Santos",
				CPF:       "12345678901",
				BirthDate: "1990-05-15",
				Email:     "joao.santos@example.com",
				Phone:     "11987654321",
			},
			address: models.Address{
				Label:        "Casa",
				Street:       "Rua das Flores",
				Number:       "123",
				Complement:   "Apto 45",
				Neighborhood: "Jardim Paulista",
				City:         "São Paulo",
				State:        "SP",
				ZipCode:      "01234567",
				IsDefault:    true,
			},
		},
		{
			customer: models.Customer{
				Name:      "Maria Oliveira Costa",
				CPF:       "98765432100",
				BirthDate: "1985-03-20",
				Email:     "maria.costa@example.com",
				Phone:     "21912345678",
			},
			address: models.Address{
				Label:        "Casa",
				Street:       "Avenida Atlântica",
				Number:       "456",
				Complement:   "Apto 102",
				Neighborhood: "Copacabana",
				City:         "Rio de Janeiro",
				State:        "RJ",
				ZipCode:      "22070011",
				IsDefault:    true,
			},
		},
	}
}
