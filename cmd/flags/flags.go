package flags

import (
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/ruteri/envelope-registry/api"
	"github.com/ruteri/envelope-registry/common"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ConfigureServer builds the node listener config from --listen-addr,
// --grpc-addr and the common server flags.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.NodeServerConfig {
	return &api.NodeServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		GRPCListenAddr:           cCtx.String(GrpcAddrFlag.Name),
		GRPCMaxMessageBytes:      8 << 20,
		MetricsAddr:              cCtx.String("metrics-addr"),
		Log:                      logger,
		EnablePprof:              cCtx.Bool("pprof"),
		DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// LoadSigningKey reads a hex secp256k1 private key from the --key-file flag.
func LoadSigningKey(cCtx *cli.Context) (*ecdsa.PrivateKey, error) {
	path := cCtx.String(KeyFileFlag.Name)
	if path == "" {
		return nil, fmt.Errorf("--%s is required", KeyFileFlag.Name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read signing key: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(data)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	return key, nil
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for the HTTP API",
}

var GrpcAddrFlag = &cli.StringFlag{
	Name:  "grpc-addr",
	Value: "127.0.0.1:9090",
	Usage: "address to listen on for the gRPC query service, empty to disable",
}

var GenesisFlag = &cli.StringFlag{
	Name:  "genesis",
	Usage: "YAML genesis file with params, algorithms, authority and membership. Built-in defaults if empty",
}

var StateFlag = &cli.StringFlag{
	Name:  "state",
	Value: "memory",
	Usage: "committed state store: memory, badger:///path or redis://host:port/db",
}

var ArchiveFlag = &cli.StringSliceFlag{
	Name:  "archive",
	Usage: "archive location URI for accepted envelopes (file://, s3://, ipfs://, vault://). Repeatable",
}

var DNSZoneFlag = &cli.StringFlag{
	Name:  "membership-dns-zone",
	Usage: "read validators and committee from TXT records under this zone instead of the genesis file",
}

var DNSServerFlag = &cli.StringFlag{
	Name:  "membership-dns-server",
	Value: "127.0.0.1:53",
	Usage: "DNS server to query for membership records",
}

var EpochSecondsFlag = &cli.Int64Flag{
	Name:  "epoch-seconds",
	Value: 3600,
	Usage: "epoch length; the committee is snapshotted at every epoch start. 0 disables",
}

var NodeURLFlag = &cli.StringFlag{
	Name:    "node",
	Value:   "http://127.0.0.1:8080",
	Usage:   "HTTP API of the node",
	EnvVars: []string{"ENVELOPE_NODE"},
}

var KeyFileFlag = &cli.StringFlag{
	Name:    "key-file",
	Usage:   "file holding the hex secp256k1 key that signs requests and envelopes",
	EnvVars: []string{"ENVELOPE_KEY_FILE"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
