package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bsma/internal/activation"
	"github.com/smallbiznis/bsma/internal/article"
	"github.com/smallbiznis/bsma/internal/clock"
	"github.com/smallbiznis/bsma/internal/config"
	"github.com/smallbiznis/bsma/internal/mac"
	"github.com/smallbiznis/bsma/internal/observability"
	"github.com/smallbiznis/bsma/internal/operation"
	"github.com/smallbiznis/bsma/internal/product"
	"github.com/smallbiznis/bsma/pkg/db"
	"go.uber.org/fx"
)

func main() {

	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// article.Service needs its collaborators even though the poller
		// only reads pending articles and merges payloads.
		product.Module,
		mac.Module,
		article.Module,
		operation.Module,

		// No server module!
		activation.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
