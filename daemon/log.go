package daemon

import (
	"github.com/gamestatenet/gamestated/infrastructure/logger"
	"github.com/gamestatenet/gamestated/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.DAEM)
var spawn = panics.GoroutineWrapperFunc(log)
