package main

import (
	"github.com/MamadouKernel/CantineObeli-sub002/internal/billing"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/clock"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/config"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/notification"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/observability"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/observability/logger"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/order"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/quota"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/scheduler"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/scheduler/guard"
	"github.com/MamadouKernel/CantineObeli-sub002/internal/settings"
	"github.com/MamadouKernel/CantineObeli-sub002/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Full deployment: the background pipeline plus the Prometheus scrape
// endpoint.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		settings.Module,
		quota.Module,
		order.Module,
		billing.Module,
		guard.Module,
		notification.Module,
		scheduler.Module,

		fx.Invoke(observability.RegisterInstrumentation),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
