package mocks

//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/eyalcarmi01-ux/trading-bot/internal/strategy Strategy,Host
//go:generate mockgen -destination=./mock_scheduler.go -package=mocks github.com/eyalcarmi01-ux/trading-bot/internal/scheduler Monitor,Broker,Quoter
//go:generate mockgen -destination=./mock_gateway.go -package=mocks github.com/eyalcarmi01-ux/trading-bot/internal/gateway Gateway,QuoteStream
