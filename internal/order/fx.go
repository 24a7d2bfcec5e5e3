package order

import (
	"github.com/MamadouKernel/CantineObeli-sub002/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(service.New),
)
