package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      ErrorClass
		retryable bool
	}{
		{"nil", nil, ErrorClassPermanent, false},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent, false},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization, true},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock, true},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient, true},
		{"unique violation", &pq.Error{Code: "23505"}, ErrorClassPermanent, false},
		{"wrapped deadlock", fmt.Errorf("create order: %w", &pq.Error{Code: "40P01"}), ErrorClassDeadlock, true},
		{"plain error", errors.New("boom"), ErrorClassPermanent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestConstraintViolations(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "customers_cpf_key"})
	name, ok := UniqueViolation(unique)
	assert.True(t, ok)
	assert.Equal(t, "customers_cpf_key", name)

	_, ok = ForeignKeyViolation(unique)
	assert.False(t, ok)

	name, ok = ForeignKeyViolation(&pq.Error{Code: "23503", Constraint: "orders_event_id_fkey"})
	assert.True(t, ok)
	assert.Equal(t, "orders_event_id_fkey", name)

	_, ok = UniqueViolation(errors.New("boom"))
	assert.False(t, ok)
}
