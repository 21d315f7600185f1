package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID                  int64            `json:"id"`
	Name                string           `json:"name"`
	Date                string           `json:"date"`
	Time                string           `json:"time"`
	Location            string           `json:"location"`
	City                string           `json:"city"`
	State               string           `json:"state"`
	Participants        int              `json:"participants"`
	Available           bool             `json:"available"`
	FixedPrice          *decimal.Decimal `json:"fixedPrice"`
	ExtraKitPrice       decimal.Decimal  `json:"extraKitPrice"`
	DonationRequired    bool             `json:"donationRequired"`
	DonationDescription string           `json:"donationDescription,omitempty"`
	DonationAmount      *decimal.Decimal `json:"donationAmount"`
	CouponCode          string           `json:"couponCode,omitempty"`
	CouponDiscount      *decimal.Decimal `json:"couponDiscount"`
	PickupZipCode       string           `json:"pickupZipCode,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf"`
	BirthDate string    `json:"birthDate"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

type Address struct {
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customerId"`
	Label        string    `json:"label"`
	Street       string    `json:"street"`
	Number       string    `json:"number"`
	Complement   string    `json:"complement,omitempty"`
	Neighborhood string    `json:"neighborhood"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	ZipCode      string    `json:"zipCode"`
	IsDefault    bool      `json:"isDefault"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AddressPatch carries a partial address update; nil fields are left untouched.
type AddressPatch struct {
	Label        *string
	Street       *string
	Number       *string
	Complement   *string
	Neighborhood *string
	City         *string
	State        *string
	ZipCode      *string
	IsDefault    *bool
}

// Apply copies the set fields of p onto a.
func (p AddressPatch) Apply(a *Address) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.Label, p.Label)
	set(&a.Street, p.Street)
	set(&a.Number, p.Number)
	set(&a.Complement, p.Complement)
	set(&a.Neighborhood, p.Neighborhood)
	set(&a.City, p.City)
	set(&a.State, p.State)
	set(&a.ZipCode, p.ZipCode)
	if p.IsDefault != nil {
		a.IsDefault = *p.IsDefault
	}
}

type Kit struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	Name      string    `json:"name"`
	CPF       string    `json:"cpf"`
	ShirtSize ShirtSize `json:"shirtSize"`
}

type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"orderNumber"`
	EventID        int64           `json:"eventId"`
	CustomerID     int64           `json:"customerId"`
	AddressID      int64           `json:"addressId"`
	KitQuantity    int             `json:"kitQuantity"`
	DeliveryCost   decimal.Decimal `json:"deliveryCost"`
	DonationCost   decimal.Decimal `json:"donationCost"`
	BaseCost       decimal.Decimal `json:"baseCost"`
	ExtraKitsCost  decimal.Decimal `json:"extraKitsCost"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	CouponCode     string          `json:"couponCode,omitempty"`
	TotalCost      decimal.Decimal `json:"totalCost"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type Coupon struct {
	ID              int64           `json:"id"`
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type ShirtSize string

const (
	ShirtPP  ShirtSize = "PP"
	ShirtP   ShirtSize = "P"
	ShirtM   ShirtSize = "M"
	ShirtG   ShirtSize = "G"
	ShirtGG  ShirtSize = "GG"
	ShirtXGG ShirtSize = "XGG"
)

var ShirtSizes = []ShirtSize{ShirtPP, ShirtP, ShirtM, ShirtG, ShirtGG, ShirtXGG}

func (s ShirtSize) Valid() bool {
	for _, v := range ShirtSizes {
		if s == v {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCredit PaymentMethod = "credit"
	PaymentDebit  PaymentMethod = "debit"
	PaymentPix    PaymentMethod = "pix"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCredit, PaymentDebit, PaymentPix:
		return true
	}
	return false
}

const (
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
	OrderStatusDelivered = "delivered"
)

const (
	MinKitQuantity = 1
	MaxKitQuantity = 5
)
