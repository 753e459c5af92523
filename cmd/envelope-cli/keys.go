package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/envelope-registry/api/envelopehandler"
	"github.com/ruteri/envelope-registry/cmd/flags"
	"github.com/ruteri/envelope-registry/codec"
	"github.com/ruteri/envelope-registry/cryptoutils"
	"github.com/ruteri/envelope-registry/interfaces"
	"github.com/urfave/cli/v2"
)

var signerKeyCommand = &cli.Command{
	Name:  "signer-key",
	Usage: "Generate a secp256k1 key for signing requests and envelopes",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Required: true, Usage: "file to write the hex private key to"},
	},
	Action: func(cCtx *cli.Context) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		if err := os.WriteFile(cCtx.String("out"), []byte(hex.EncodeToString(crypto.FromECDSA(key))), 0o600); err != nil {
			return err
		}
		fmt.Fprintln(cCtx.App.Writer, cryptoutils.ClientAddress(key))
		return nil
	},
}

var keygenCommand = &cli.Command{
	Name:  "keygen",
	Usage: "Generate a recipient key pair as <out>.pub.pem and <out>.key.pem",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "algorithm", Value: "x25519-chacha20", Usage: "algorithm id of the key"},
		&cli.StringFlag{Name: "out", Required: true, Usage: "output path prefix"},
	},
	Action: func(cCtx *cli.Context) error {
		algorithmID := cCtx.String("algorithm")
		pub, priv, err := cryptoutils.GenerateRecipientKey(algorithmID)
		if err != nil {
			return err
		}
		pubPEM, err := cryptoutils.NewRecipientPubkey(algorithmID, pub)
		if err != nil {
			return err
		}
		privPEM, err := cryptoutils.NewRecipientPrivkey(algorithmID, priv)
		if err != nil {
			return err
		}

		out := cCtx.String("out")
		if err := os.WriteFile(out+".pub.pem", pubPEM, 0o644); err != nil {
			return err
		}
		if err := os.WriteFile(out+".key.pem", privPEM, 0o600); err != nil {
			return err
		}
		fmt.Fprintln(cCtx.App.Writer, interfaces.ComputeFingerprint(pub))
		return nil
	},
}

var registerCommand = &cli.Command{
	Name:  "register",
	Usage: "Register a recipient public key for the signer's address",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "pubkey", Required: true, Usage: "recipient public key PEM written by keygen"},
		&cli.StringFlag{Name: "label", Usage: "free-form label"},
	},
	Action: func(cCtx *cli.Context) error {
		c, sender, err := signingClient(cCtx)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(cCtx.String("pubkey"))
		if err != nil {
			return err
		}
		algorithmID, pub, err := cryptoutils.RecipientPubkey(data).Get()
		if err != nil {
			return err
		}

		resp, err := c.RegisterRecipientKey(cCtx.Context, &interfaces.RegisterRecipientKey{
			Sender:      sender,
			PublicKey:   pub,
			AlgorithmID: algorithmID,
			Label:       cCtx.String("label"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cCtx.App.Writer, resp.KeyFingerprint)
		return nil
	},
}

var revokeCommand = &cli.Command{
	Name:  "revoke",
	Usage: "Revoke one of the signer's recipient keys",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "fingerprint", Required: true},
	},
	Action: func(cCtx *cli.Context) error {
		c, sender, err := signingClient(cCtx)
		if err != nil {
			return err
		}
		fp, err := interfaces.NewKeyFingerprint(cCtx.String("fingerprint"))
		if err != nil {
			return err
		}
		_, err = c.RevokeRecipientKey(cCtx.Context, &interfaces.RevokeRecipientKey{Sender: sender, KeyFingerprint: fp})
		return err
	},
}

var labelCommand = &cli.Command{
	Name:  "label",
	Usage: "Change the label of one of the signer's recipient keys",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "fingerprint", Required: true},
		&cli.StringFlag{Name: "label", Required: true},
	},
	Action: func(cCtx *cli.Context) error {
		c, sender, err := signingClient(cCtx)
		if err != nil {
			return err
		}
		fp, err := interfaces.NewKeyFingerprint(cCtx.String("fingerprint"))
		if err != nil {
			return err
		}
		_, err = c.UpdateKeyLabel(cCtx.Context, &interfaces.UpdateKeyLabel{Sender: sender, KeyFingerprint: fp, Label: cCtx.String("label")})
		return err
	},
}

var keysCommand = &cli.Command{
	Name:      "keys",
	Usage:     "Show the active keys of an address, or one key by --fingerprint",
	ArgsUsage: "[address]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "fingerprint"},
	},
	Action: func(cCtx *cli.Context) error {
		c := queryClient(cCtx)
		if s := cCtx.String("fingerprint"); s != "" {
			fp, err := interfaces.NewKeyFingerprint(s)
			if err != nil {
				return err
			}
			resp, err := c.QueryKeyByFingerprint(cCtx.Context, &interfaces.QueryKeyByFingerprintRequest{Fingerprint: fp})
			if err != nil {
				return err
			}
			return printJSON(cCtx, resp)
		}

		if cCtx.NArg() != 1 {
			return errors.New("expected an address or --fingerprint")
		}
		address, err := interfaces.NewAddressFromHex(cCtx.Args().First())
		if err != nil {
			return err
		}
		resp, err := c.QueryRecipientKey(cCtx.Context, &interfaces.QueryRecipientKeyRequest{Address: address})
		if err != nil {
			return err
		}
		return printJSON(cCtx, resp)
	},
}

func queryClient(cCtx *cli.Context) *envelopehandler.Client {
	return envelopehandler.NewClient(cCtx.String(flags.NodeURLFlag.Name), nil)
}

func signingClient(cCtx *cli.Context) (*envelopehandler.Client, interfaces.Address, error) {
	key, err := flags.LoadSigningKey(cCtx)
	if err != nil {
		return nil, interfaces.Address{}, err
	}
	return envelopehandler.NewClient(cCtx.String(flags.NodeURLFlag.Name), key), cryptoutils.ClientAddress(key), nil
}

func printJSON(cCtx *cli.Context, msg any) error {
	data, err := codec.MarshalJSON(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cCtx.App.Writer, string(data))
	return err
}

// readMessage decodes a file holding either JSON or the binary encoding.
func readMessage(path string, msg any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return codec.UnmarshalJSON(trimmed, msg)
	}
	return codec.Unmarshal(data, msg)
}
