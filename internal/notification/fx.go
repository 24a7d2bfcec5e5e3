package notification

import (
	"context"

	"github.com/MamadouKernel/CantineObeli-sub002/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Provide(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Sink, error) {
	if cfg.AMQP.URL == "" {
		return NewLogSink(log), nil
	}

	sink, err := DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sink.Close()
			return nil
		},
	})
	log.Info("job events published to broker", zap.String("exchange", cfg.AMQP.Exchange))
	return sink, nil
}

var Module = fx.Module("notification",
	fx.Provide(Provide),
)
