package product

import (
	"github.com/smallbiznis/bsma/internal/product/repository"
	"github.com/smallbiznis/bsma/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
