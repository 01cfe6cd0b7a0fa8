package game

import (
	"github.com/gamestatenet/gamestated/infrastructure/logger"
	"github.com/gamestatenet/gamestated/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.GAME)
var spawn = panics.GoroutineWrapperFunc(log)
