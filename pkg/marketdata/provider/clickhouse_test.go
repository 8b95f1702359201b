package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type ClickHouseProviderTestSuite struct {
	suite.Suite
	container testcontainers.Container
	provider  *ClickHouseProvider
}

func TestClickHouseProviderSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite.Run(t, new(ClickHouseProviderTestSuite))
}

func (suite *ClickHouseProviderTestSuite) SetupSuite() {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{ //nolint:exhaustruct
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready for connections").WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ //nolint:exhaustruct
		ContainerRequest: req,
		Started:          true,
	})
	suite.Require().NoError(err)
	suite.container = container

	host, err := container.Host(ctx)
	suite.Require().NoError(err)

	port, err := container.MappedPort(ctx, "9000")
	suite.Require().NoError(err)

	p, err := NewClickHouseProvider(ctx, fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port()), logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.Require().NoError(p.EnsureSchema(ctx))
	suite.provider = p
}

func (suite *ClickHouseProviderTestSuite) TearDownSuite() {
	if suite.provider != nil {
		suite.provider.Close()
	}

	if suite.container != nil {
		_ = suite.container.Terminate(context.Background())
	}
}

func (suite *ClickHouseProviderTestSuite) TestInsertAndQuery() {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	points := []types.PricePoint{
		{Timestamp: base, Price: 50000},
		{Timestamp: base.Add(time.Minute), Price: 50100},
		{Timestamp: base.Add(2 * time.Minute), Price: 50200},
	}
	suite.Require().NoError(suite.provider.InsertBulk(ctx, "BTCUSDT", points))

	got, err := suite.provider.GetPriceHistory(ctx, "BTCUSDT", base, base.Add(time.Minute))
	suite.Require().NoError(err)
	suite.Len(got, 2)

	price, err := suite.provider.GetCurrentPrice(ctx, "BTCUSDT")
	suite.NoError(err)
	suite.Equal(50200.0, price.Unwrap())

	price, err = suite.provider.GetCurrentPrice(ctx, "UNKNOWN")
	suite.NoError(err)
	suite.True(price.IsNone())
}
