package auth

import (
	"context"

	"github.com/angelmondragon/medledger-backend/internal/users"
	"github.com/angelmondragon/medledger-backend/pkg/config"
	"github.com/angelmondragon/medledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/medledger-backend/pkg/errors"
)

// AdminRegisterService creates admin users. It is only routed in dev.
type AdminRegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

// AdminRegisterServiceParams names the dependencies for the admin register flow.
type AdminRegisterServiceParams struct {
	DB             txRunner
	PasswordConfig config.PasswordConfig
}

type adminRegisterService struct {
	db          txRunner
	passwordCfg config.PasswordConfig
}

// NewAdminRegisterService builds a dev admin registration service.
func NewAdminRegisterService(params AdminRegisterServiceParams) (AdminRegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &adminRegisterService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register creates an admin without a wallet; admins never hold funds.
func (s *adminRegisterService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	return createUser(ctx, s.db, s.passwordCfg, req, enums.UserRoleAdmin, false)
}
