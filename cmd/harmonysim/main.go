package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/rueidis"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/castaneai/harmony"
	"github.com/castaneai/harmony/harmonyotel"
	"github.com/castaneai/harmony/harmonyredis"
	"github.com/castaneai/harmony/simulator"
)

const (
	serviceName = "harmonysim"
)

type config struct {
	Tables               int           `envconfig:"TABLES" default:"2"`
	RedCustomers         int           `envconfig:"RED_CUSTOMERS" default:"3"`
	BlueCustomers        int           `envconfig:"BLUE_CUSTOMERS" default:"3"`
	StayMin              time.Duration `envconfig:"STAY_MIN" default:"1s"`
	StayMax              time.Duration `envconfig:"STAY_MAX" default:"1s"`
	ArrivalInterval      time.Duration `envconfig:"ARRIVAL_INTERVAL" default:"100ms"`
	ArrivalRatePerSecond int           `envconfig:"ARRIVAL_RATE_PER_SECOND" default:"0"`
	WaitTimeout          time.Duration `envconfig:"WAIT_TIMEOUT" default:"0s"`
	MaxWaiting           int           `envconfig:"MAX_WAITING" default:"0"`
	RedisAddr            string        `envconfig:"REDIS_ADDR"`
	RedisKeyPrefix       string        `envconfig:"REDIS_KEY_PREFIX" default:"harmony:"`
	VenueName            string        `envconfig:"VENUE_NAME" default:"sweet-harmony"`
	OTLPEndpoint         string        `envconfig:"OTLP_ENDPOINT"`
	Debug                bool          `envconfig:"DEBUG" default:"false"`
}

func main() {
	var conf config
	envconfig.MustProcess("HARMONY", &conf)
	if conf.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	slog.Info(fmt.Sprintf("starting harmony simulation with config: %+v", conf))

	ctx, shutdown := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer shutdown()

	if err := run(ctx, &conf); err != nil {
		slog.Error(err.Error(), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf *config) error {
	if conf.OTLPEndpoint != "" {
		shutdownMetrics, err := setupMetrics(ctx, conf.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer shutdownMetrics()
	}

	redis, closeRedis, err := newRedisClient(conf)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer closeRedis()
	journal := harmonyredis.NewJournal(conf.RedisKeyPrefix, conf.VenueName, redis)
	defer journal.Close()

	controller, err := harmony.NewController(conf.Tables,
		harmony.WithMaxWaiting(conf.MaxWaiting),
		harmony.WithEventHandler(journal.Handle))
	if err != nil {
		return fmt.Errorf("failed to create venue: %w", err)
	}
	venue, err := harmonyotel.NewVenue(controller)
	if err != nil {
		return fmt.Errorf("failed to create venue metrics: %w", err)
	}

	slog.Info(fmt.Sprintf("%s opens with %d tables", conf.VenueName, conf.Tables))
	summary, err := simulator.Run(ctx, venue, simulator.Config{
		RedCustomers:         conf.RedCustomers,
		BlueCustomers:        conf.BlueCustomers,
		StayMin:              conf.StayMin,
		StayMax:              conf.StayMax,
		ArrivalInterval:      conf.ArrivalInterval,
		ArrivalRatePerSecond: conf.ArrivalRatePerSecond,
		WaitTimeout:          conf.WaitTimeout,
	})
	journal.Close()
	if err != nil {
		return fmt.Errorf("simulation aborted: %w", err)
	}

	slog.Info(fmt.Sprintf("all customers served, %s closed", conf.VenueName),
		"red_served", summary.RedServed,
		"blue_served", summary.BlueServed,
		"red_abandoned", summary.RedAbandoned,
		"blue_abandoned", summary.BlueAbandoned,
		"total", summary.Total(),
		"max_seated", summary.MaxSeated)

	state, err := harmonyredis.NewReader(conf.RedisKeyPrefix, conf.VenueName, redis).GetState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read journaled venue state: %w", err)
	}
	slog.Info(fmt.Sprintf("journaled venue state after %d events: %+v", state.Seq, state.Snapshot))
	return nil
}

func setupMetrics(ctx context.Context, endpoint string) (func(), error) {
	otelRes, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create otel resource: %w", err)
	}
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	provider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(10*time.Second))),
		metric.WithResource(otelRes),
	)
	otel.SetMeterProvider(provider)
	return func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			err := fmt.Errorf("failed to shutdown meter provider: %w", err)
			slog.Error(err.Error(), "error", err)
		}
	}, nil
}

// newRedisClient connects to conf.RedisAddr, or to an in-process miniredis when it is empty.
// The returned func closes the client and stops the in-process server.
func newRedisClient(conf *config) (rueidis.Client, func(), error) {
	addr := conf.RedisAddr
	stopServer := func() {}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to run miniredis: %w", err)
		}
		addr, stopServer = mr.Addr(), mr.Close
		slog.Info(fmt.Sprintf("no redis address given, journaling to in-process redis at %s", addr))
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		stopServer()
		return nil, nil, err
	}
	return client, func() {
		client.Close()
		stopServer()
	}, nil
}
