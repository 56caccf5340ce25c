package service

import (
	"context"
	"errors"
	"fmt"

	"matatu-feedback/config"
	"matatu-feedback/database"
	"matatu-feedback/dispatch"
	"matatu-feedback/email"
	"matatu-feedback/escalation"
	"matatu-feedback/handlers"
	"matatu-feedback/notify"
	"matatu-feedback/pipeline"
	"matatu-feedback/rabbitmq"
	"matatu-feedback/triage"
	"matatu-feedback/websocket"

	"github.com/apex/log"
)

// Service owns the long-lived components of the feedback backend
type Service struct {
	config     *config.Config
	db         *database.Database
	hub        *websocket.Hub
	pool       *dispatch.Pool
	publisher  *rabbitmq.Publisher
	dispatcher *dispatch.Dispatcher
	forwarder  *escalation.Forwarder
	pipeline   *pipeline.Pipeline
	handlers   *handlers.Handlers
}

// NewService connects to the database and wires the report pipeline
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	policy := triage.DefaultPolicy()
	if cfg.TriagePolicyFile != "" {
		p, err := triage.LoadPolicy(cfg.TriagePolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load triage policy: %w", err)
		}
		policy = p
		log.Infof("Loaded triage policy from %s", cfg.TriagePolicyFile)
	}

	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub()

	twilio := notify.NewTwilioTransport(cfg.TwilioAccountSID, cfg.TwilioAuthToken,
		cfg.TwilioSMSFrom, cfg.TwilioWhatsAppFrom, cfg.TransportTimeout)
	if !twilio.Enabled() {
		log.Warn("Twilio credentials not set, SMS and WhatsApp sends will fail")
	}

	dispatcher := dispatch.NewDispatcher(
		notify.NewWhatsAppAdapter(twilio, db, cfg.DefaultCountryCode),
		notify.NewSMSAdapter(twilio, cfg.DefaultCountryCode),
		dispatch.NewTrail(dispatch.DefaultTrailSize),
		dispatch.Options{
			AlertRecipients: cfg.AlertRecipients,
			JoinCode:        cfg.WhatsAppJoinCode,
			WhatsAppNumber:  cfg.TwilioWhatsAppFrom,
			Observer:        hub,
		},
	)

	var transport escalation.MailTransport
	sg, err := email.NewSendGridTransport(cfg)
	switch {
	case err == nil:
		transport = sg
	case errors.Is(err, email.ErrNotConfigured):
		// nil transport selects mock mode
	default:
		db.Close()
		return nil, err
	}
	forwarder := escalation.NewForwarder(transport, escalation.Routing{
		Production:      cfg.IsProduction(),
		RegulatorEmail:  cfg.NTSAEmail,
		DevEmail:        cfg.DevEmail,
		MonitoringEmail: cfg.MonitoringEmail,
	}, db, hub)

	opts := pipeline.Options{
		UrgentThreshold: cfg.UrgentThreshold,
		Observer:        hub,
	}

	var (
		publisher *rabbitmq.Publisher
		events    handlers.EventBus
	)
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, report events will not be published")
			publisher = nil
		} else {
			opts.Publisher = publisher
			events = publisher
		}
	}

	pool := dispatch.NewPool(cfg.DispatchWorkers, cfg.DispatchQueueSize)

	p := pipeline.New(db, triage.NewClassifier(policy), triage.NewScorer(policy), pool, dispatcher, forwarder, opts)

	return &Service{
		config:     cfg,
		db:         db,
		hub:        hub,
		pool:       pool,
		publisher:  publisher,
		dispatcher: dispatcher,
		forwarder:  forwarder,
		pipeline:   p,
		handlers:   handlers.NewHandlers(p, db, dispatcher.Trail(), hub, events, forwarder.MockMode()),
	}, nil
}

// Start creates missing tables and starts the background workers
func (s *Service) Start(ctx context.Context) error {
	log.Info("Starting matatu feedback service...")

	if err := s.db.EnsureTables(ctx); err != nil {
		return err
	}

	go s.hub.Run()
	s.pool.Start()

	to, cc := s.forwarder.Destination()
	log.WithFields(log.Fields{
		"production":       s.config.IsProduction(),
		"forward_to":       to,
		"forward_cc":       cc,
		"forward_mock":     s.forwarder.MockMode(),
		"alert_recipients": len(s.config.AlertRecipients),
		"workers":          s.config.DispatchWorkers,
		"urgent_threshold": s.config.UrgentThreshold,
	}).Info("Matatu feedback service started")
	return nil
}

// Stop drains queued notifications and releases every connection
func (s *Service) Stop(ctx context.Context) error {
	log.Info("Stopping matatu feedback service...")

	var errs []error
	if err := s.pool.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatch queue not drained: %w", err))
	}
	s.hub.Stop()

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close publisher: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	log.Info("Matatu feedback service stopped")
	return errors.Join(errs...)
}

// GetHandlers returns the HTTP handlers
func (s *Service) GetHandlers() *handlers.Handlers {
	return s.handlers
}
