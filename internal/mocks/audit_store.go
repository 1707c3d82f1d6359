package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/carebook-server/internal/model"
)

// AuditStore is a mock type for the model.AuditStore type.
type AuditStore struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, entry
func (_m *AuditStore) Create(ctx context.Context, entry model.AuditEntry) error {
	ret := _m.Called(ctx, entry)
	return ret.Error(0)
}

// ListBefore provides a mock function with given fields: ctx, before, limit
func (_m *AuditStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]model.AuditEntry, error) {
	ret := _m.Called(ctx, before, limit)

	var r0 []model.AuditEntry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.AuditEntry)
	}

	return r0, ret.Error(1)
}

// DeleteByIDs provides a mock function with given fields: ctx, ids
func (_m *AuditStore) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	ret := _m.Called(ctx, ids)
	return ret.Error(0)
}

// NewAuditStore creates a new instance of AuditStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewAuditStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *AuditStore {
	m := &AuditStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
