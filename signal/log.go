package signal

import (
	"github.com/gamestatenet/gamestated/infrastructure/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.GSTD)
