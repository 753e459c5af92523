package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ruteri/envelope-registry/api"
	"github.com/ruteri/envelope-registry/cmd/flags"
	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/envelope"
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

var buildCommand = &cli.Command{
	Name:  "build",
	Usage: "Encrypt a payload into an envelope for the selected recipients",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "algorithm", Value: "x25519-chacha20", Usage: "payload algorithm id"},
		&cli.StringFlag{Name: "mode", Value: "specific", Usage: "full-validator-set, committee or specific"},
		&cli.Uint64Flag{Name: "epoch", Usage: "committee epoch, for --mode committee"},
		&cli.StringSliceFlag{Name: "fingerprint", Usage: "recipient fingerprint, for --mode specific. Repeatable"},
		&cli.StringFlag{Name: "in", Value: "-", Usage: "payload file, - for stdin"},
		&cli.StringFlag{Name: "out", Value: "-", Usage: "envelope file, - for stdout"},
		&cli.StringSliceFlag{Name: "metadata", Usage: "key=value metadata. Repeatable"},
		&cli.BoolFlag{Name: "sign", Usage: "sign the envelope with --key-file"},
	},
	Action: func(cCtx *cli.Context) error {
		log := flags.SetupLogger(cCtx)
		c := queryClient(cCtx)

		mode, err := interfaces.ParseRecipientMode(cCtx.String("mode"))
		if err != nil {
			return err
		}
		fps := make([]interfaces.KeyFingerprint, 0, len(cCtx.StringSlice("fingerprint")))
		for _, s := range cCtx.StringSlice("fingerprint") {
			fp, err := interfaces.NewKeyFingerprint(s)
			if err != nil {
				return err
			}
			fps = append(fps, fp)
		}
		selection, err := interfaces.NewRecipientSelection(mode, cCtx.Uint64("epoch"), fps)
		if err != nil {
			return err
		}
		metadata, err := parseMetadata(cCtx.StringSlice("metadata"))
		if err != nil {
			return err
		}

		var signing *envelope.SigningMaterial
		if cCtx.Bool("sign") {
			key, err := flags.LoadSigningKey(cCtx)
			if err != nil {
				return err
			}
			signing = &envelope.SigningMaterial{ClientKey: key}
		}

		payload, err := readInput(cCtx.String("in"))
		if err != nil {
			return err
		}

		algs, params, err := api.LoadAlgorithms(cCtx.Context, c)
		if err != nil {
			return err
		}
		builder := envelope.NewBuilder(algs, c, c, interfaces.FixedParams(params), log)
		env, err := builder.Build(cCtx.Context, payload, cCtx.String("algorithm"), selection, signing, envelope.WithMetadata(metadata))
		if err != nil {
			return err
		}
		log.Debug("Envelope built", "recipients", len(env.WrappedKeys), "algorithm", env.AlgorithmID)

		data, err := codec.MarshalJSON(env)
		if err != nil {
			return err
		}
		return writeOutput(cCtx, cCtx.String("out"), append(data, '\n'))
	},
}

var openCommand = &cli.Command{
	Name:  "open",
	Usage: "Decrypt an envelope with a recipient private key",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "envelope", Required: true, Usage: "envelope file, JSON or binary"},
		&cli.StringFlag{Name: "privkey", Required: true, Usage: "recipient private key PEM written by keygen"},
		&cli.StringFlag{Name: "pubkey", Usage: "matching public key PEM; the fingerprint is read from the envelope otherwise"},
		&cli.StringFlag{Name: "out", Value: "-", Usage: "payload file, - for stdout"},
	},
	Action: func(cCtx *cli.Context) error {
		var env interfaces.MultiRecipientEnvelope
		if err := readMessage(cCtx.String("envelope"), &env); err != nil {
			return err
		}
		privPEM, err := os.ReadFile(cCtx.String("privkey"))
		if err != nil {
			return err
		}
		_, priv, err := cryptoutils.RecipientPrivkey(privPEM).Get()
		if err != nil {
			return err
		}

		algs, _, err := api.LoadAlgorithms(cCtx.Context, queryClient(cCtx))
		if err != nil {
			return err
		}

		candidates := env.RecipientIDs()
		if path := cCtx.String("pubkey"); path != "" {
			pubPEM, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			_, pub, err := cryptoutils.RecipientPubkey(pubPEM).Get()
			if err != nil {
				return err
			}
			candidates = []interfaces.KeyFingerprint{interfaces.ComputeFingerprint(pub)}
		}

		// Without a public key, try every entry: unwrapping fails authentication
		// for entries wrapped to other keys.
		var lastErr error = interfaces.ErrUnknownRecipient
		for _, fp := range candidates {
			payload, err := envelope.Open(&env, fp, priv, algs)
			if err == nil {
				return writeOutput(cCtx, cCtx.String("out"), payload)
			}
			lastErr = err
		}
		return lastErr
	},
}

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate an envelope against the node's current state without submitting it",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "envelope", Required: true},
	},
	Action: func(cCtx *cli.Context) error {
		var env interfaces.MultiRecipientEnvelope
		if err := readMessage(cCtx.String("envelope"), &env); err != nil {
			return err
		}
		resp, err := queryClient(cCtx).QueryValidateEnvelope(cCtx.Context, &interfaces.QueryValidateEnvelopeRequest{Envelope: env})
		if err != nil {
			return err
		}
		if err := printJSON(cCtx, resp); err != nil {
			return err
		}
		if !resp.Report.Valid {
			return cli.Exit("envelope is invalid", 1)
		}
		return nil
	},
}

var submitCommand = &cli.Command{
	Name:  "submit",
	Usage: "Submit an envelope and print its id",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "envelope", Required: true},
	},
	Action: func(cCtx *cli.Context) error {
		c, sender, err := signingClient(cCtx)
		if err != nil {
			return err
		}
		var env interfaces.MultiRecipientEnvelope
		if err := readMessage(cCtx.String("envelope"), &env); err != nil {
			return err
		}
		resp, err := c.SubmitEnvelope(cCtx.Context, &interfaces.SubmitEnvelope{Sender: sender, Envelope: env})
		if err != nil {
			return err
		}
		fmt.Fprintln(cCtx.App.Writer, resp.EnvelopeID)
		return nil
	},
}

var getCommand = &cli.Command{
	Name:  "get",
	Usage: "Fetch an accepted envelope by id",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "id", Required: true},
		&cli.StringFlag{Name: "out", Value: "-"},
	},
	Action: func(cCtx *cli.Context) error {
		id, err := interfaces.NewContentIDFromHex(cCtx.String("id"))
		if err != nil {
			return err
		}
		resp, err := queryClient(cCtx).QueryEnvelope(cCtx.Context, &interfaces.QueryEnvelopeRequest{EnvelopeID: id})
		if err != nil {
			return err
		}
		data, err := codec.MarshalJSON(&resp.Envelope)
		if err != nil {
			return err
		}
		return writeOutput(cCtx, cCtx.String("out"), append(data, '\n'))
	},
}

var upgradeCommand = &cli.Command{
	Name:  "upgrade",
	Usage: "Convert a legacy single-ephemeral envelope into the current format",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "legacy", Required: true, Usage: "legacy envelope file, JSON or binary"},
		&cli.StringFlag{Name: "out", Value: "-"},
	},
	Action: func(cCtx *cli.Context) error {
		var legacy interfaces.EncryptedPayloadEnvelope
		if err := readMessage(cCtx.String("legacy"), &legacy); err != nil {
			return err
		}
		algs, _, err := api.LoadAlgorithms(cCtx.Context, queryClient(cCtx))
		if err != nil {
			return err
		}
		env, err := envelope.UpgradeLegacy(&legacy, algs)
		if err != nil {
			return err
		}
		data, err := codec.MarshalJSON(env)
		if err != nil {
			return err
		}
		return writeOutput(cCtx, cCtx.String("out"), append(data, '\n'))
	},
}

var paramsCommand = &cli.Command{
	Name:  "params",
	Usage: "Show the node's params and algorithm catalog",
	Action: func(cCtx *cli.Context) error {
		c := queryClient(cCtx)
		params, err := c.QueryParams(cCtx.Context, &interfaces.QueryParamsRequest{})
		if err != nil {
			return err
		}
		algs, err := c.QueryAlgorithms(cCtx.Context, &interfaces.QueryAlgorithmsRequest{})
		if err != nil {
			return err
		}
		if err := printJSON(cCtx, params); err != nil {
			return err
		}
		return printJSON(cCtx, algs)
	},
}

var updateParamsCommand = &cli.Command{
	Name:  "update-params",
	Usage: "Replace the node's params. Must be signed by the governance authority",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "params-file", Required: true, Usage: "YAML params, same keys as the genesis params section"},
	},
	Action: func(cCtx *cli.Context) error {
		c, authority, err := signingClient(cCtx)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(cCtx.String("params-file"))
		if err != nil {
			return err
		}
		var params interfaces.Params
		if err := yaml.UnmarshalStrict(data, &params); err != nil {
			return fmt.Errorf("could not parse params: %w", err)
		}
		if err := params.Validate(); err != nil {
			return err
		}
		_, err = c.UpdateParams(cCtx.Context, &interfaces.UpdateParams{Authority: authority, Params: params})
		return err
	},
}

func parseMetadata(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("metadata %q is not key=value", pair)
		}
		metadata[k] = v
	}
	return metadata, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(cCtx *cli.Context, path string, data []byte) error {
	if path == "-" {
		_, err := cCtx.App.Writer.Write(data)
		return err
	}
	if path == "" {
		return errors.New("empty output path")
	}
	return os.WriteFile(path, data, 0o644)
}
