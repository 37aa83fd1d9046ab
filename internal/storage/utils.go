package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/observerip/internal/types"
	"go.uber.org/zap"
)

// ProcessReadings hands each reading from readingChan to processor until ctx
// is cancelled. A processor error is logged and the loop continues. The
// caller must have added this goroutine to wg.
func ProcessReadings(ctx context.Context, wg *sync.WaitGroup, readingChan <-chan types.Reading, processor func(types.Reading) error, name string, logger *zap.SugaredLogger) {
	defer wg.Done()

	for {
		select {
		case r := <-readingChan:
			if err := processor(r); err != nil {
				logger.Errorf("%s reading processor error: %v", name, err)
			}
		case <-ctx.Done():
			logger.Infof("cancellation request received. Cancelling %s readings processor", name)
			return
		}
	}
}
