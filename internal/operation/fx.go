package operation

import (
	"github.com/smallbiznis/bsma/internal/operation/repository"
	"github.com/smallbiznis/bsma/internal/operation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("operation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
