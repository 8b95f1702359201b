package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-signals/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RateLimitTestSuite struct {
	suite.Suite
}

func TestRateLimitSuite(t *testing.T) {
	suite.Run(t, new(RateLimitTestSuite))
}

func (suite *RateLimitTestSuite) TestNewPicksNoopForZeroRate() {
	suite.IsType(Noop{}, New(Config{RequestsPerSecond: 0, Burst: 5}))
	suite.IsType(&TokenBucket{}, New(Config{RequestsPerSecond: 10, Burst: 5})) //nolint:exhaustruct
}

func (suite *RateLimitTestSuite) TestBurstIsShared() {
	bucket := NewTokenBucket(0.001, 3)

	var wg sync.WaitGroup

	allowed := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			allowed <- bucket.Allow()
		}()
	}

	wg.Wait()
	close(allowed)

	count := 0

	for ok := range allowed {
		if ok {
			count++
		}
	}

	suite.Equal(3, count)
}

func (suite *RateLimitTestSuite) TestWaitHonoursContext() {
	bucket := NewTokenBucket(0.001, 1)
	suite.NoError(bucket.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := bucket.Wait(ctx)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeRateLimited))
	suite.True(errors.IsRetryable(err))
}

func (suite *RateLimitTestSuite) TestNoop() {
	suite.NoError(Noop{}.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suite.ErrorIs(Noop{}.Wait(ctx), context.Canceled)
}
