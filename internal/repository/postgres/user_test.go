package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dtroode/carebook-server/internal/model"
)

func TestNewUserRepository(t *testing.T) {
	db := &Connection{}
	repo := NewUserRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestRolesConversion(t *testing.T) {
	roles := []model.Role{model.RolePatient, model.RoleAdmin}
	assert.Equal(t, []string{"PATIENT", "ADMIN"}, rolesToStrings(roles))
	assert.Equal(t, roles, rolesFromStrings([]string{"PATIENT", "ADMIN"}))
	assert.Equal(t, []model.Role{model.RoleNurse}, rolesFromStrings([]string{"NURSE", "RETIRED_ROLE"}))
	assert.Empty(t, rolesFromStrings(nil))
	assert.Empty(t, rolesToStrings(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
