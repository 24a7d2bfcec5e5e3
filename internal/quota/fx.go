package quota

import (
	"github.com/MamadouKernel/CantineObeli-sub002/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(service.New),
)
