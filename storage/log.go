package storage

import (
	"github.com/gamestatenet/gamestated/infrastructure/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.STOR)
