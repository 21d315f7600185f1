// Package wizard drives the multi step ordering flow: pick an event, identify
// or register, choose an address, review the price, fill in the kits and pay.
//
// The coordinator owns the per session State and only reaches the backend
// through the API interface.
package wizard

import (
	"time"

	"github.com/safar/kitrunner/internal/handler/dto"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/service"
)

type Step int

const (
	StepEventView Step = iota
	StepIdentify
	StepRegister
	StepAddressSelect
	StepNewAddress
	StepCostPreview
	StepKitDetails
	StepPayment
	StepConfirmation
)

var stepNames = map[Step]string{
	StepEventView:     "event",
	StepIdentify:      "identify",
	StepRegister:      "register",
	StepAddressSelect: "address",
	StepNewAddress:    "new-address",
	StepCostPreview:   "preview",
	StepKitDetails:    "kits",
	StepPayment:       "payment",
	StepConfirmation:  "confirmation",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// State is everything the flow has collected for one session.
type State struct {
	SessionID string
	Step      Step

	Event     *models.Event
	Customer  *models.Customer
	Addresses []models.Address
	AddressID int64

	KitQuantity int
	CouponCode  string
	Preview     *dto.Preview

	Kits          []service.KitInput
	PaymentMethod string

	// PaymentKey is sent as the Idempotency-Key of the order request. It is
	// kept across failed attempts so a retry cannot create a second order.
	PaymentKey   string
	Confirmation *service.OrderConfirmation
	LastError    string

	UpdatedAt time.Time
}

func (s *State) clone() *State {
	c := *s
	c.Addresses = append([]models.Address(nil), s.Addresses...)
	c.Kits = append([]service.KitInput(nil), s.Kits...)
	return &c
}

// requirement is a piece of state a step depends on, paired with the step
// that produces it.
type requirement struct {
	producer Step
	met      func(*State) bool
}

var (
	needEvent = requirement{StepEventView, func(s *State) bool { return s.Event != nil }}
	needCust  = requirement{StepIdentify, func(s *State) bool { return s.Customer != nil }}
	needAddr  = requirement{StepAddressSelect, func(s *State) bool { return s.AddressID != 0 }}
	needQuote = requirement{StepCostPreview, func(s *State) bool { return s.Preview != nil }}
	needKits  = requirement{StepKitDetails, func(s *State) bool { return s.KitQuantity > 0 && len(s.Kits) == s.KitQuantity }}
	needOrder = requirement{StepPayment, func(s *State) bool { return s.Confirmation != nil }}
)

// prerequisites lists, in flow order, what must hold before a step is shown.
var prerequisites = map[Step][]requirement{
	StepEventView:     nil,
	StepIdentify:      {needEvent},
	StepRegister:      {needEvent},
	StepAddressSelect: {needEvent, needCust},
	StepNewAddress:    {needEvent, needCust},
	StepCostPreview:   {needEvent, needCust, needAddr},
	StepKitDetails:    {needEvent, needCust, needAddr, needQuote},
	StepPayment:       {needEvent, needCust, needAddr, needQuote, needKits},
	StepConfirmation:  {needEvent, needCust, needAddr, needQuote, needKits, needOrder},
}

// resolve returns step when its prerequisites hold, or the step that
// produces the first missing one.
func resolve(s *State, step Step) Step {
	reqs, ok := prerequisites[step]
	if !ok {
		return StepEventView
	}
	for _, r := range reqs {
		if !r.met(s) {
			return r.producer
		}
	}
	return step
}

// resetFromCustomer drops everything that belongs to the previous customer.
func (s *State) resetFromCustomer() {
	s.Addresses = nil
	s.AddressID = 0
	s.resetFromQuote()
}

func (s *State) resetFromQuote() {
	s.Preview = nil
	s.Kits = nil
	s.PaymentMethod = ""
	s.PaymentKey = ""
	s.Confirmation = nil
}
