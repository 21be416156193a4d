package mac

import (
	"github.com/smallbiznis/bsma/internal/mac/repository"
	"github.com/smallbiznis/bsma/internal/mac/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mac.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
