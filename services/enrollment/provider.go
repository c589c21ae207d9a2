package enrollment

import (
	"github.com/driplo/twofa/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(db *gorm.DB, logger *logging.Service) *Service {
	return NewService(NewGormStore(db), logger)
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
