package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/safar/kitrunner/internal/apperr"
	"github.com/safar/kitrunner/internal/models"
	"github.com/safar/kitrunner/internal/normalize"
	"github.com/safar/kitrunner/internal/store"
)

const (
	MsgCustomerNotFound   = "Cliente não encontrado. Verifique o CPF e data de nascimento."
	msgCustomerIDNotFound = "Cliente não encontrado"
	msgCustomerExists     = "Cliente já cadastrado com este CPF e data de nascimento"
	msgCPFTaken           = "CPF já cadastrado"
	msgAddressNotFound    = "Endereço não encontrado"
	msgRegisterFailed     = "Erro ao registrar cliente"
	msgAddressWriteFailed = "Erro ao salvar endereço"
	msgAddressListFailed  = "Erro ao buscar endereços"
	msgDefaultConflict    = "Outro endereço padrão foi salvo ao mesmo tempo. Tente novamente."
	msgBirthDateInFuture  = "Data de nascimento deve estar no passado"
)

type IdentifyInput struct {
	CPF       string `json:"cpf" validate:"required,cpf"`
	BirthDate string `json:"birthDate" validate:"required,ymd"`
}

type AddressInput struct {
	Label        string `json:"label"`
	Street       string `json:"street" validate:"notblank"`
	Number       string `json:"number" validate:"notblank"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood" validate:"notblank"`
	City         string `json:"city" validate:"notblank"`
	State        string `json:"state" validate:"required,len=2"`
	ZipCode      string `json:"zipCode" validate:"required,cep"`
	IsDefault    bool   `json:"isDefault"`
}

func (in AddressInput) toModel(customerID int64) models.Address {
	return models.Address{
		CustomerID:   customerID,
		Label:        strings.TrimSpace(in.Label),
		Street:       strings.TrimSpace(in.Street),
		Number:       strings.TrimSpace(in.Number),
		Complement:   strings.TrimSpace(in.Complement),
		Neighborhood: strings.TrimSpace(in.Neighborhood),
		City:         strings.TrimSpace(in.City),
		State:        normalize.State(in.State),
		ZipCode:      normalize.ZipCode(in.ZipCode),
		IsDefault:    in.IsDefault,
	}
}

type RegisterInput struct {
	Name      string         `json:"name" validate:"notblank"`
	CPF       string         `json:"cpf" validate:"required,cpf"`
	BirthDate string         `json:"birthDate" validate:"required,ymd"`
	Email     string         `json:"email" validate:"required,email"`
	Phone     string         `json:"phone" validate:"notblank"`
	Addresses []AddressInput `json:"addresses" validate:"dive"`
}

// AddressPatchInput is a partial update; absent fields keep their value.
type AddressPatchInput struct {
	Label        *string `json:"label"`
	Street       *string `json:"street" validate:"omitempty,notblank"`
	Number       *string `json:"number" validate:"omitempty,notblank"`
	Complement   *string `json:"complement"`
	Neighborhood *string `json:"neighborhood" validate:"omitempty,notblank"`
	City         *string `json:"city" validate:"omitempty,notblank"`
	State        *string `json:"state" validate:"omitempty,len=2"`
	ZipCode      *string `json:"zipCode" validate:"omitempty,cep"`
	IsDefault    *bool   `json:"isDefault"`
}

func (in AddressPatchInput) toPatch() models.AddressPatch {
	trim := func(s *string, fn func(string) string) *string {
		if s == nil {
			return nil
		}
		v := fn(*s)
		return &v
	}
	return models.AddressPatch{
		Label:        trim(in.Label, strings.TrimSpace),
		Street:       trim(in.Street, strings.TrimSpace),
		Number:       trim(in.Number, strings.TrimSpace),
		Complement:   trim(in.Complement, strings.TrimSpace),
		Neighborhood: trim(in.Neighborhood, strings.TrimSpace),
		City:         trim(in.City, strings.TrimSpace),
		State:        trim(in.State, normalize.State),
		ZipCode:      trim(in.ZipCode, normalize.ZipCode),
		IsDefault:    in.IsDefault,
	}
}

type Registration struct {
	Customer  models.Customer  `json:"customer"`
	Addresses []models.Address `json:"addresses"`
}

type CustomerService struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewCustomerService(s store.Store, logger *zap.Logger) *CustomerService {
	return &CustomerService{store: s, logger: logger, now: time.Now}
}

// Identify finds a customer by CPF and birth date. Formatting in the CPF is
// ignored.
func (s *CustomerService) Identify(ctx context.Context, in IdentifyInput) (*models.Customer, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	cpf := normalize.CPF(in.CPF)
	birthDate, _ := normalize.Date(in.BirthDate)

	customer, err := s.store.GetCustomerByCredentials(ctx, cpf, birthDate)
	if err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			return nil, apperr.NotFound("customer", MsgCustomerNotFound)
		}
		s.logger.Error("identify customer failed", zap.Error(err))
		return nil, apperr.Persistence("Erro ao identificar cliente", err)
	}

	return customer, nil
}

// Register creates a customer and its addresses in one transaction. When no
// address is flagged as default the first one becomes the default.
func (s *CustomerService) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	err := validateStruct(in, func(verr *apperr.ValidationError) {
		if date, ok := normalize.Date(in.BirthDate); ok && !s.inPast(date) {
			verr.Add("birthDate", msgBirthDateInFuture)
		}
	})
	if err != nil {
		return nil, err
	}

	cpf := normalize.CPF(in.CPF)
	birthDate, _ := normalize.Date(in.BirthDate)

	_, err = s.store.GetCustomerByCredentials(ctx, cpf, birthDate)
	switch {
	case err == nil:
		return nil, apperr.Conflict(msgCustomerExists)
	case !errors.Is(err, store.ErrCustomerNotFound):
		s.logger.Error("lookup customer before register failed", zap.Error(err))
		return nil, apperr.Persistence(msgRegisterFailed, err)
	}

	addresses := make([]models.Address, len(in.Addresses))
	for i, a := range in.Addresses {
		addresses[i] = a.toModel(0)
	}
	markSingleDefault(addresses)

	customer := models.Customer{
		Name:      strings.TrimSpace(in.Name),
		CPF:       cpf,
		BirthDate: birthDate,
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
	}

	var reg *Registration
	err = s.store.WithinTx(ctx, func(tx store.Repository) error {
		c := customer
		if err := tx.CreateCustomer(ctx, &c); err != nil {
			return err
		}
		created := make([]models.Address, 0, len(addresses))
		for _, a := range addresses {
			a.CustomerID = c.ID
			if err := tx.CreateAddress(ctx, &a); err != nil {
				return err
			}
			created = append(created, a)
		}
		reg = &Registration{Customer: c, Addresses: created}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateCPF) {
			return nil, apperr.Conflict(msgCPFTaken)
		}
		s.logger.Error("register customer failed", zap.Error(err))
		return nil, apperr.Persistence(msgRegisterFailed, err)
	}

	s.logger.Info("customer registered",
		zap.Int64("customer_id", reg.Customer.ID),
		zap.Int("addresses", len(reg.Addresses)),
	)

	return reg, nil
}

func (s *CustomerService) inPast(date string) bool {
	t, err := time.Parse(normalize.DateLayout, date)
	if err != nil {
		return false
	}
	return t.Before(s.now())
}

func (s *CustomerService) ListAddresses(ctx context.Context, customerID int64) ([]models.Address, error) {
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	addresses, err := s.store.ListAddressesByCustomer(ctx, customerID)
	if err != nil {
		s.logger.Error("list addresses failed", zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, apperr.Persistence(msgAddressListFailed, err)
	}
	return addresses, nil
}

// CreateAddress adds an address. The customer's first address, or one
// flagged as default, becomes the single default address.
func (s *CustomerService) CreateAddress(ctx context.Context, customerID int64, in AddressInput) (*models.Address, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	address := in.toModel(customerID)

	err := s.store.WithinTx(ctx, func(tx store.Repository) error {
		if err := tx.LockCustomer(ctx, customerID); err != nil {
			return err
		}
		existing, err := tx.ListAddressesByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			address.IsDefault = true
		}
		if address.IsDefault {
			if err := tx.ClearDefaultAddresses(ctx, customerID); err != nil {
				return err
			}
		}
		return tx.CreateAddress(ctx, &address)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateDefaultAddress) {
			return nil, apperr.Conflict(msgDefaultConflict)
		}
		s.logger.Error("create address failed", zap.Int64("customer_id", customerID), zap.Error(err))
		return nil, apperr.Persistence(msgAddressWriteFailed, err)
	}

	return &address, nil
}

// UpdateAddress applies a partial update. Setting isDefault clears the flag
// on the customer's other addresses.
func (s *CustomerService) UpdateAddress(ctx context.Context, id int64, in AddressPatchInput) (*models.Address, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	patch := in.toPatch()

	var updated *models.Address
	err := s.store.WithinTx(ctx, func(tx store.Repository) error {
		current, err := tx.GetAddress(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.LockCustomer(ctx, current.CustomerID); err != nil {
			return err
		}
		if patch.IsDefault != nil && *patch.IsDefault && !current.IsDefault {
			if err := tx.ClearDefaultAddresses(ctx, current.CustomerID); err != nil {
				return err
			}
		}
		updated, err = tx.UpdateAddress(ctx, id, patch)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrAddressNotFound) {
			return nil, apperr.NotFound("address", msgAddressNotFound)
		}
		if errors.Is(err, store.ErrDuplicateDefaultAddress) {
			return nil, apperr.Conflict(msgDefaultConflict)
		}
		s.logger.Error("update address failed", zap.Int64("address_id", id), zap.Error(err))
		return nil, apperr.Persistence(msgAddressWriteFailed, err)
	}

	return updated, nil
}

func (s *CustomerService) requireCustomer(ctx context.Context, id int64) error {
	_, err := loadCustomer(ctx, s.store, s.logger, id)
	return err
}

func loadCustomer(ctx context.Context, repo store.Repository, logger *zap.Logger, id int64) (*models.Customer, error) {
	customer, err := repo.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			return nil, apperr.NotFound("customer", msgCustomerIDNotFound)
		}
		logger.Error("get customer failed", zap.Int64("customer_id", id), zap.Error(err))
		return nil, apperr.Persistence("Erro ao buscar cliente", err)
	}
	return customer, nil
}

// markSingleDefault keeps the first address flagged as default, or flags the
// first address when none is.
func markSingleDefault(addresses []models.Address) {
	if len(addresses) == 0 {
		return
	}
	found := false
	for i := range addresses {
		if addresses[i].IsDefault && !found {
			found = true
			continue
		}
		addresses[i].IsDefault = false
	}
	if !found {
		addresses[0].IsDefault = true
	}
}
