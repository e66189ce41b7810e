package main

import (
	bookingshandler "huddle/internal/bookings/handler"
	bookingsrepository "huddle/internal/bookings/repository"
	bookingsservice "huddle/internal/bookings/service"
	"huddle/internal/bookings/sweeper"
	bookingsvalidator "huddle/internal/bookings/validator"
	"huddle/internal/events"
	"huddle/internal/health"
	roomshandler "huddle/internal/rooms/handler"
	roomsrepository "huddle/internal/rooms/repository"
	roomsservice "huddle/internal/rooms/service"
	roomsvalidator "huddle/internal/rooms/validator"
	"huddle/pkg/app"
	"huddle/pkg/clock"
	"huddle/pkg/config"
	"huddle/pkg/db"
	"huddle/pkg/db/memory"
	"huddle/pkg/db/mongo"
	"huddle/pkg/db/postgres"
	"huddle/pkg/kafka"
	kafka_config "huddle/pkg/kafka/config"
	kafka_middleware "huddle/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	cfg.Log.Info("Starting Bookings service")
	serverApp := build(cfg, clock.New())
	serverApp.Run()
}

type stores struct {
	rooms     roomsrepository.RoomRepository
	bookings  bookingsrepository.BookingRepository
	txManager db.TransactionManager
	pinger    db.Pinger
}

// openStores connects the selected driver. Connection failures are fatal.
func openStores(cfg *config.Config, clk clock.Clock) stores {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		cfg.SetMongo()
		database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		return stores{
			rooms:     roomsrepository.NewMongoRoomRepository(database, clk),
			bookings:  bookingsrepository.NewMongoBookingRepository(database, clk),
			txManager: mongo.NewTransactionManager(cfg.Client.Mongo, cfg.LockTimeout),
			pinger:    mongo.Pinger{Client: cfg.Client.Mongo},
		}

	case config.StoreMemory:
		locks := memory.NewTransactionManager(cfg.LockTimeout)
		return stores{
			rooms:     roomsrepository.NewMemoryRoomRepository(locks, clk),
			bookings:  bookingsrepository.NewMemoryBookingRepository(locks, clk),
			txManager: locks,
			pinger:    locks,
		}

	default:
		cfg.SetPostgres()
		return stores{
			rooms:     roomsrepository.NewPostgresRoomRepository(cfg.Client.Postgres, clk),
			bookings:  bookingsrepository.NewPostgresBookingRepository(cfg.Client.Postgres, clk),
			txManager: postgres.NewTransactionManager(cfg.Client.Postgres, cfg.LockTimeout),
			pinger:    postgres.Pinger{DB: cfg.Client.Postgres},
		}
	}
}

func newPublisher(cfg *config.Config) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, domain events are not published")
		return events.NewNoopPublisher()
	}

	kafkaCfg, err := kafka_config.Load(cfg.KafkaBrokers)
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaTopic, cfg.KafkaTopic+".dlq", cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	cfg.Log.Info("Kafka publisher initialized", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return events.NewKafkaPublisher(producer, ServiceName)
}

func build(cfg *config.Config, clk clock.Clock) *app.Application {
	st := openStores(cfg, clk)

	checks := map[string]db.Pinger{"store": st.pinger}
	if cfg.IdempotencyBackend == config.IdempotencyRedis {
		cfg.SetRedis()
		checks["redis"] = health.RedisPinger{Client: cfg.Client.Redis}
	}

	publisher := newPublisher(cfg)

	roomService := roomsservice.NewRoomService(
		st.rooms,
		st.txManager,
		roomsvalidator.NewRoomValidator(cfg.Log),
		publisher,
		cfg.Log,
	)
	bookingService := bookingsservice.NewBookingService(
		st.bookings,
		st.rooms,
		st.txManager,
		bookingsvalidator.NewBookingValidator(clk, cfg.Log),
		clk,
		publisher,
		cfg.Log,
	)
	cfg.Log.Info("Services initialized", "store_driver", cfg.StoreDriver)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		health.NewHandler(checks, cfg.Log),
		roomshandler.NewRoomHandler(roomService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
	)

	if cfg.SweeperEnabled {
		serverApp.AddWorker(sweeper.New(st.bookings, clk, publisher, cfg.SweepInterval, cfg.Log))
	} else {
		cfg.Log.Info("Expiration sweeper disabled")
	}
	serverApp.OnShutdown(publisher.Close)

	return serverApp
}
