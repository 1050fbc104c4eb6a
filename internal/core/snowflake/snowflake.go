package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"barebones/internal/core/config"
	"barebones/internal/core/logger"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init Initialize snowflake generator
func Init(cfg *config.SnowflakeConfig) error {
	var initErr error
	nodeOnce.Do(func() {
		var err error
		node, err = snowflake.NewNode(cfg.WorkerID)
		if err != nil {
			logger.Error("failed to initialize snowflake",
				logger.String("error", err.Error()),
				logger.Int64("worker_id", cfg.WorkerID))
			initErr = err
			return
		}
		logger.Info("snowflake initialized",
			logger.Int64("worker_id", cfg.WorkerID))
	})
	return initErr
}

// Generate Generate new snowflake ID. Ids are strictly increasing per node,
// so id order doubles as creation order.
func Generate() int64 {
	if node == nil {
		// worker 0 is always valid
		_ = Init(&config.SnowflakeConfig{WorkerID: 0})
	}
	return node.Generate().Int64()
}
