package settings

import (
	"github.com/MamadouKernel/CantineObeli-sub002/internal/settings/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("settings",
	fx.Provide(repository.Provide),
)
