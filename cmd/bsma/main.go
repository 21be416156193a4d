package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bsma/internal/activation"
	"github.com/smallbiznis/bsma/internal/article"
	"github.com/smallbiznis/bsma/internal/clock"
	"github.com/smallbiznis/bsma/internal/config"
	"github.com/smallbiznis/bsma/internal/mac"
	"github.com/smallbiznis/bsma/internal/migration"
	"github.com/smallbiznis/bsma/internal/observability"
	"github.com/smallbiznis/bsma/internal/operation"
	"github.com/smallbiznis/bsma/internal/product"
	"github.com/smallbiznis/bsma/internal/server"
	"github.com/smallbiznis/bsma/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domains
		product.Module,
		mac.Module,
		article.Module,
		operation.Module,

		server.Module,
		activation.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
