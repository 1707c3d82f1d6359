package mocks

import (
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/carebook-server/internal/model"
)

// TokenManager is a mock type for the model.TokenManager type.
type TokenManager struct {
	mock.Mock
}

// GenerateAccessToken provides a mock function with given fields: user
func (_m *TokenManager) GenerateAccessToken(user model.User) (string, error) {
	ret := _m.Called(user)
	return ret.String(0), ret.Error(1)
}

// GenerateRefreshToken provides a mock function with given fields: user
func (_m *TokenManager) GenerateRefreshToken(user model.User) (string, string, error) {
	ret := _m.Called(user)
	return ret.String(0), ret.String(1), ret.Error(2)
}

// ParseAccessToken provides a mock function with given fields: token
func (_m *TokenManager) ParseAccessToken(token string) (model.Principal, error) {
	ret := _m.Called(token)
	return ret.Get(0).(model.Principal), ret.Error(1)
}

// ParseRefreshToken provides a mock function with given fields: token
func (_m *TokenManager) ParseRefreshToken(token string) (uuid.UUID, string, error) {
	ret := _m.Called(token)
	return ret.Get(0).(uuid.UUID), ret.String(1), ret.Error(2)
}

// NewTokenManager creates a new instance of TokenManager. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewTokenManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *TokenManager {
	m := &TokenManager{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
