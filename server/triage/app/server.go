package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	commonauth "triage_server/server/common/auth"
	"triage_server/server/common/infra/cache"
	"triage_server/server/common/infra/db"
	"triage_server/server/common/infra/mq"
	"triage_server/server/common/infra/object"
	cmnlog "triage_server/server/common/log"
	"triage_server/server/triage/api"
	"triage_server/server/triage/notify"
	"triage_server/server/triage/repository"
	"triage_server/server/triage/service"
)

type Server struct {
	HTTPServer *http.Server
	DB         *pgxpool.Pool
	Redis      *redis.Client
	MQConn     *amqp.Connection
	Publisher  *service.AMQPPublisher
}

func NewServer(cfg Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	s := &Server{DB: pool}

	if cfg.CatalogCache {
		redisClient := cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := cache.Ping(ctx, redisClient); err != nil {
			// Presets and team fall back to Postgres without a cache.
			cmnlog.Warnf("redis unavailable, catalog cache disabled: %v", err)
			_ = redisClient.Close()
		} else {
			s.Redis = redisClient
		}
	}

	var events service.EventPublisher = service.NoopPublisher{}
	if cfg.UseMQ {
		s.MQConn, err = mq.NewConnection(cfg.AMQPURL, "triage_server")
		if err != nil {
			s.close()
			return nil, fmt.Errorf("initialize amqp: %w", err)
		}
		s.Publisher, err = service.NewAMQPPublisher(s.MQConn)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("initialize amqp publisher: %w", err)
		}
		events = s.Publisher
	}

	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		s.close()
		return nil, err
	}

	emergencyRepo := repository.NewEmergencyRepository(pool)
	commRepo := repository.NewCommunicationRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	tokens := commonauth.NewService(cfg.JWTSecret, cfg.JWTTTLMinutes)

	emergencySvc := service.NewEmergencyService(emergencyRepo, commRepo, catalogRepo, dispatcher, events)
	commSvc := service.NewCommunicationService(commRepo, emergencyRepo, dispatcher, events)
	catalogSvc := service.NewCatalogService(catalogRepo, s.Redis, cfg.CatalogTTL)
	accountSvc := service.NewAccountService(userRepo, tokens, catalogSvc)

	if cfg.PresetsFile != "" {
		file, err := service.LoadPresetFile(cfg.PresetsFile)
		if err != nil {
			s.close()
			return nil, err
		}
		if err := catalogSvc.SeedPresets(ctx, file); err != nil {
			s.close()
			return nil, err
		}
	}

	deps := api.Deps{
		Emergencies:    emergencySvc,
		Communications: commSvc,
		Catalog:        catalogSvc,
		Accounts:       accountSvc,
		Auth:           tokens,
		Ready:          pool.Ping,
	}
	if cfg.PhotosEnabled {
		photos, err := newPhotoService(ctx, cfg)
		if err != nil {
			s.close()
			return nil, err
		}
		deps.Photos = photos
	}

	h := api.NewHandler(deps)
	r := gin.Default()
	h.RegisterRoutes(r)

	s.HTTPServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// newDispatcher wires whichever transports are configured; the rest fail every send.
func newDispatcher(cfg Config) (*notify.Dispatcher, error) {
	var (
		sms  notify.SMSTransport
		mail notify.MailTransport
		chat notify.ChatTransport
	)
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sms = notify.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	} else {
		cmnlog.Warnf("twilio credentials missing, sms transport disabled")
	}
	if cfg.SMTPHost != "" {
		mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUser,
			Password:  cfg.SMTPPass,
			Secure:    cfg.SMTPSecure,
			FromName:  cfg.SMTPFromName,
			FromEmail: cfg.SMTPFromEmail,
			Timeout:   cfg.SendTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize smtp: %w", err)
		}
		mail = mailer
	} else {
		cmnlog.Warnf("smtp host missing, email transport disabled")
	}
	if cfg.SlackBotToken != "" {
		chat = notify.NewSlackChat(cfg.SlackBotToken)
	} else {
		cmnlog.Warnf("slack token missing, team alerts disabled")
	}
	return notify.NewDispatcher(sms, mail, chat, notify.DispatcherConfig{
		SenderPhone:  cfg.TwilioPhoneNumber,
		SlackChannel: cfg.SlackChannel,
		FrontendURL:  cfg.FrontendURL,
		SendTimeout:  cfg.SendTimeout,
	}), nil
}

func newPhotoService(ctx context.Context, cfg Config) (*service.PhotoService, error) {
	client, err := object.NewClient(object.Options{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Region:    cfg.MinIORegion,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize minio: %w", err)
	}
	if err := object.EnsureBucket(ctx, client, cfg.MinIOBucket, cfg.MinIORegion); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return service.NewPhotoService(client, cfg.MinIOBucket, cfg.PhotoURLExpiry), nil
}

func (s *Server) close() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.MQConn != nil {
		_ = s.MQConn.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.HTTPServer.Shutdown(ctx)
	s.close()
	return err
}
