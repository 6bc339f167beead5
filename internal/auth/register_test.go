package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/medledger-backend/internal/accounts"
	"github.com/angelmondragon/medledger-backend/pkg/config"
	"github.com/angelmondragon/medledger-backend/pkg/db"
	"github.com/angelmondragon/medledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/medledger-backend/pkg/db/models"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
	"github.com/angelmondragon/medledger-backend/pkg/security"
)

func sampleRegisterRequest(email string) RegisterRequest {
	return RegisterRequest{
		FirstName: "Ana",
		LastName:  "Lopez",
		Email:     email,
		Password:  "supersecret",
	}
}

func TestRegisterCreatesPatientWithWallet(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.NewFromConn(conn), PasswordConfig: config.PasswordConfig{}})
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), sampleRegisterRequest(" Ana@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, enums.UserRolePatient, user.Role)
	assert.True(t, user.IsActive)

	balance, err := accounts.NewRepository(conn).GetBalance(context.Background(), accounts.WalletOf(user.ID))
	require.NoError(t, err)
	assert.Zero(t, balance)

	var stored models.User
	require.NoError(t, conn.First(&stored, "id = ?", user.ID).Error)
	ok, err := security.VerifyPassword("supersecret", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.NewFromConn(conn)})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), sampleRegisterRequest("dup@example.com"))
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), sampleRegisterRequest("DUP@example.com"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	var count int64
	require.NoError(t, conn.Model(&models.Account{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.NewFromConn(dbtest.Open(t))})
	require.NoError(t, err)

	cases := map[string]RegisterRequest{
		"no email":       {FirstName: "A", LastName: "B", Password: "supersecret"},
		"no name":        {Email: "a@example.com", Password: "supersecret"},
		"short password": {FirstName: "A", LastName: "B", Email: "a@example.com", Password: "short"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestAdminRegisterSkipsWallet(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewAdminRegisterService(AdminRegisterServiceParams{DB: db.NewFromConn(conn)})
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), sampleRegisterRequest("root@example.com"))
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleAdmin, user.Role)

	_, err = accounts.NewRepository(conn).GetBalance(context.Background(), accounts.WalletOf(user.ID))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}
