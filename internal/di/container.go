// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"sync"

	"derjachat/internal/config"
	"derjachat/internal/dialect"
	"derjachat/internal/observability"
	"derjachat/internal/serviceinterfaces"
	"derjachat/internal/services"
	contextutils "derjachat/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetChatService() (services.ChatServiceInterface, error)
	GetQuizService() (*services.QuizService, error)
	GetClassifier() (*services.IntentClassifier, error)
	GetEnforcer() (*services.DialectEnforcer, error)
	GetGenerator() (serviceinterfaces.Generator, error)
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Service names
const (
	ServiceGenerator  = "generator"
	ServiceSearcher   = "searcher"
	ServiceFetcher    = "fetcher"
	ServiceClassifier = "classifier"
	ServiceAggregator = "aggregator"
	ServiceAssembler  = "assembler"
	ServiceEnforcer   = "enforcer"
	ServiceQuiz       = "quiz"
	ServiceChat       = "chat"
)

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.PipelineMetrics
	services map[string]interface{}
	// order is the registration order; shutdown walks it backwards
	order         []string
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

var _ ServiceContainerInterface = (*ServiceContainer)(nil)

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		metrics:  observability.GetPipelineMetrics(),
		services: make(map[string]interface{}),
	}
}

// Initialize builds the pipeline from the configuration
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services: %w", err)
	}

	sc.logger.Info(ctx, "Service container initialized", map[string]interface{}{
		"services": len(sc.services),
		"search":   sc.cfg.Search.Enabled,
		"provider": sc.cfg.Generation.Provider,
	})
	return nil
}

func (sc *ServiceContainer) register(name string, service interface{}) {
	sc.services[name] = service
	sc.order = append(sc.order, name)
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(ctx context.Context) error {
	// Outbound boundaries
	generator, err := services.NewGenerator(ctx, sc.cfg, sc.logger)
	if err != nil {
		return err
	}
	sc.register(ServiceGenerator, generator)

	searcher := services.NewSearchClient(sc.cfg, sc.logger)
	sc.register(ServiceSearcher, searcher)

	fetcher := services.NewPageFetcher(sc.cfg, sc.logger)
	sc.register(ServiceFetcher, fetcher)

	// Pipeline stages
	templates, err := services.NewPromptTemplateManager()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to load prompt templates: %w", err)
	}
	assembler := services.NewPromptAssembler(sc.cfg, templates)
	sc.register(ServiceAssembler, assembler)

	classifier := services.NewIntentClassifier(&sc.cfg.Search, sc.logger)
	sc.register(ServiceClassifier, classifier)

	aggregator := services.NewContextAggregator(sc.cfg, searcher, fetcher, sc.logger, sc.metrics)
	sc.register(ServiceAggregator, aggregator)

	enforcer := services.NewDialectEnforcer(sc.cfg, dialect.DefaultEngine(), generator, assembler, sc.logger, sc.metrics)
	sc.register(ServiceEnforcer, enforcer)

	// Quiz depends on every stage above; chat depends on quiz
	quiz := services.NewQuizService(sc.cfg, classifier, aggregator, assembler, generator, enforcer, sc.logger, sc.metrics)
	sc.register(ServiceQuiz, quiz)

	chat := services.NewChatService(sc.cfg, classifier, aggregator, assembler, generator, enforcer, quiz, sc.logger, sc.metrics)
	sc.register(ServiceChat, chat)

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetChatService returns the chat pipeline
func (sc *ServiceContainer) GetChatService() (services.ChatServiceInterface, error) {
	return GetServiceAs[services.ChatServiceInterface](sc, ServiceChat)
}

// GetQuizService returns the quiz state machine
func (sc *ServiceContainer) GetQuizService() (*services.QuizService, error) {
	return GetServiceAs[*services.QuizService](sc, ServiceQuiz)
}

// GetClassifier returns the intent classifier
func (sc *ServiceContainer) GetClassifier() (*services.IntentClassifier, error) {
	return GetServiceAs[*services.IntentClassifier](sc, ServiceClassifier)
}

// GetEnforcer returns the dialect enforcer
func (sc *ServiceContainer) GetEnforcer() (*services.DialectEnforcer, error) {
	return GetServiceAs[*services.DialectEnforcer](sc, ServiceEnforcer)
}

// GetGenerator returns the rate-limited generation boundary
func (sc *ServiceContainer) GetGenerator() (serviceinterfaces.Generator, error) {
	return GetServiceAs[serviceinterfaces.Generator](sc, ServiceGenerator)
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// AddShutdownFunc registers fn to run after the services have shut down
func (sc *ServiceContainer) AddShutdownFunc(fn func(context.Context) error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.shutdownFuncs = append(sc.shutdownFuncs, fn)
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup shuts lifecycle services down in reverse registration order, then
// runs the shutdown funcs in reverse order
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	for i := len(sc.order) - 1; i >= 0; i-- {
		name := sc.order[i]
		lifecycleService, ok := sc.services[name].(serviceinterfaces.Lifecycle)
		if !ok {
			continue
		}
		sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
		if err := lifecycleService.Shutdown(ctx); err != nil {
			sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
			errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
		}
	}

	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}
