package mocks

//go:generate mockgen -destination=./mock_marketdata.go -package=mocks github.com/rxtech-lab/argo-signals/pkg/marketdata PriceSeriesProvider
//go:generate mockgen -destination=./mock_storage.go -package=mocks github.com/rxtech-lab/argo-signals/internal/storage Store
//go:generate mockgen -destination=./mock_ratelimit.go -package=mocks github.com/rxtech-lab/argo-signals/internal/ratelimit Limiter
