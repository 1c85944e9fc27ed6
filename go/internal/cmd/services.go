package main

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/witslabs/quizwall/go/internal/bus"
	"github.com/witslabs/quizwall/go/internal/chain"
	"github.com/witslabs/quizwall/go/internal/driver"
	"github.com/witslabs/quizwall/go/internal/gateway"
	"github.com/witslabs/quizwall/go/internal/quiz"
)

type Services struct {
	Quiz        *quiz.Service
	Broadcaster *bus.NATSBroadcaster
	Registry    *driver.Registry
	Manager     *gateway.ConnectionManager
	Consumer    *gateway.EventConsumer
	WebSocket   *gateway.WebSocketHandler
}

func setupServices(database *sql.DB, config *Config, broadcaster *bus.NATSBroadcaster) *Services {
	clock := clockwork.NewRealClock()
	windows := config.Windows()

	// Repository layer
	competitionRepo := quiz.NewCompetitionRepository(database)
	questionRepo := quiz.NewQuestionRepository(database)
	enrollmentRepo := quiz.NewEnrollmentRepository(database)
	answerRepo := quiz.NewAnswerRepository(database)

	quizService := quiz.NewService(competitionRepo, questionRepo, enrollmentRepo, answerRepo, windows)

	// Settlement
	chainCfg := chain.DefaultClientConfig()
	chainCfg.BaseURL = getEnv("CHAIN_RELAY_URL", config.Chain.BaseURL)
	chainCfg.APIKey = getEnv("CHAIN_RELAY_API_KEY", "")
	if config.Chain.TimeoutSeconds > 0 {
		chainCfg.Timeout = time.Duration(config.Chain.TimeoutSeconds) * time.Second
	}
	tokenDecimals := config.Chain.TokenDecimals
	if tokenDecimals == 0 {
		tokenDecimals = 18
	}
	sink := chain.NewClient(chainCfg)
	settler := driver.NewSettler(enrollmentRepo, competitionRepo, sink, tokenDecimals)

	// Drivers
	registry := driver.NewRegistry(competitionRepo, func(competitionID uuid.UUID) *driver.Driver {
		return driver.New(competitionID, windows, competitionRepo, quizService, settler, broadcaster, clock)
	})

	// Gateway
	gatewayCfg := gateway.DefaultConnectionConfig()
	if config.Gateway.PingIntervalSeconds > 0 {
		gatewayCfg.PingInterval = time.Duration(config.Gateway.PingIntervalSeconds) * time.Second
	}
	if config.Gateway.ReadTimeoutSeconds > 0 {
		gatewayCfg.ReadTimeout = time.Duration(config.Gateway.ReadTimeoutSeconds) * time.Second
	}
	if config.Gateway.MaxMessageSize > 0 {
		gatewayCfg.MaxMessageSize = config.Gateway.MaxMessageSize
	}
	commands := gateway.NewCommandHandler(quizService, clock)
	manager := gateway.NewConnectionManager(gatewayCfg, commands)
	consumer := gateway.NewEventConsumer(manager)
	websocket := gateway.NewWebSocketHandler(manager, commands)

	return &Services{
		Quiz:        quizService,
		Broadcaster: broadcaster,
		Registry:    registry,
		Manager:     manager,
		Consumer:    consumer,
		WebSocket:   websocket,
	}
}
