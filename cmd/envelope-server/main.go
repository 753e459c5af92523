package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/envelope-registry/api/envelopehandler"
	"github.com/ruteri/envelope-registry/api/grpcquery"
	"github.com/ruteri/envelope-registry/cmd/flags"
	"github.com/ruteri/envelope-registry/genesis"
	"github.com/ruteri/envelope-registry/httpserver"
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/ruteri/envelope-registry/keeper"
	"github.com/ruteri/envelope-registry/keyregistry"
	"github.com/ruteri/envelope-registry/membership"
	"github.com/ruteri/envelope-registry/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "envelope-server",
		Usage: "Serve the multi-recipient envelope registry",
		Flags: append([]cli.Flag{
			flags.ListenAddrFlag,
			flags.GrpcAddrFlag,
			flags.GenesisFlag,
			flags.StateFlag,
			flags.ArchiveFlag,
			flags.DNSZoneFlag,
			flags.DNSServerFlag,
			flags.EpochSecondsFlag,
			flags.LogServiceFlagFn("envelope-server"),
		}, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	g := genesis.Default()
	if path := cCtx.String(flags.GenesisFlag.Name); path != "" {
		var err error
		if g, err = genesis.Load(path); err != nil {
			logger.Error("Failed to load genesis", "err", err)
			return err
		}
	}
	authority, err := g.AuthorityAddress()
	if err != nil {
		return err
	}

	kv, err := storage.OpenKV(cCtx.String(flags.StateFlag.Name), logger)
	if err != nil {
		logger.Error("Failed to open state store", "err", err)
		return err
	}
	defer kv.Close()

	var archive interfaces.StorageBackend
	if uris := cCtx.StringSlice(flags.ArchiveFlag.Name); len(uris) > 0 {
		locs, err := storage.ParseLocations(uris)
		if err != nil {
			return err
		}
		archive, err = storage.NewStorageBackendFactory(logger).CreateMultiBackend(locs)
		if err != nil {
			logger.Error("Failed to create archive", "err", err)
			return err
		}
	}

	var members interfaces.MembershipSource
	if zone := cCtx.String(flags.DNSZoneFlag.Name); zone != "" {
		logger.Info("Reading membership from DNS", "zone", zone)
		members = membership.NewDNS(zone, cCtx.String(flags.DNSServerFlag.Name), logger)
	} else {
		members, err = g.Membership()
		if err != nil {
			return err
		}
	}

	// With epochs enabled, key records are stamped with the epoch number, which
	// restarted nodes agree on. Otherwise the keeper uses a sequence clock.
	cfg := keeper.Config{
		KV:         kv,
		Membership: members,
		Log:        logger,
		Archive:    archive,
		Authority:  authority,
		Params:     g.Params,
		Algorithms: g.Algorithms,
	}
	epochLength := time.Duration(cCtx.Int64(flags.EpochSecondsFlag.Name)) * time.Second
	var heights *keyregistry.HeightClock
	if epochLength > 0 {
		heights = keyregistry.NewHeightClock(epochAt(time.Now(), epochLength))
		cfg.Clock = heights
	}

	k, err := keeper.New(cfg)
	if err != nil {
		logger.Error("Failed to create keeper", "err", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if heights != nil {
		go runEpochs(ctx, k, heights, epochLength, logger)
	}

	server, err := httpserver.New(
		flags.ConfigureServer(cCtx, logger),
		envelopehandler.NewHandler(k, k, logger),
	)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	if grpcServer := server.GRPC(); grpcServer != nil {
		grpcquery.RegisterQueryServiceServer(grpcServer, grpcquery.NewServer(k, logger))
	}
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	cancel()
	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

// epochAt numbers epochs by wall clock, so restarted nodes agree on them.
func epochAt(t time.Time, length time.Duration) uint64 {
	return uint64(t.Unix() / int64(length/time.Second))
}

// runEpochs advances the clock and snapshots the committee at startup and at
// every epoch boundary.
func runEpochs(ctx context.Context, k *keeper.Keeper, clock *keyregistry.HeightClock, length time.Duration, log *slog.Logger) {
	begin := func(epoch uint64) {
		clock.SetHeight(epoch)
		fps, err := k.BeginEpoch(ctx, epoch)
		if err != nil {
			log.Error("Failed to snapshot committee", "epoch", epoch, "err", err)
			return
		}
		log.Info("Committee snapshotted", "epoch", epoch, "recipients", len(fps))
	}

	last := epochAt(time.Now(), length)
	begin(last)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if epoch := epochAt(time.Now(), length); epoch != last {
				last = epoch
				begin(epoch)
			}
		}
	}
}
