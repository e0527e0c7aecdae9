package email

import (
	"context"

	"go.uber.org/zap"

	"github.com/forense-lab/peritia-trust/internal/observability/logger"
)

// LogDispatcher solo loguea el despacho (dev sin SMTP). No loguea el
// token completo: con los primeros caracteres alcanza para correlacionar.
type LogDispatcher struct {
	log *zap.Logger
}

func NewLog() *LogDispatcher {
	return &LogDispatcher{log: logger.Named("email.log")}
}

func (d *LogDispatcher) Dispatch(_ context.Context, msg Message) {
	prefix := msg.Token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	d.log.Info("email dispatch (dev)",
		logger.Kind(string(msg.Kind)),
		zap.String("to", msg.To),
		zap.String("token_prefix", prefix),
	)
}
