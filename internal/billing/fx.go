package billing

import (
	"github.com/MamadouKernel/CantineObeli-sub002/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(service.New),
)
