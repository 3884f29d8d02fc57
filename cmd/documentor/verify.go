package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/akannigil/oxygen-documentor-sub000/internal/certificate"
	"github.com/akannigil/oxygen-documentor-sub000/internal/hints"
	"github.com/akannigil/oxygen-documentor-sub000/internal/qrcode"
)

// ErrInvalidCertificate is returned when a payload does not verify.
var ErrInvalidCertificate = errors.New("certificate is not valid")

func runVerify(args []string, env *Environment) error {
	fs := newFlagSet("verify", env)
	fs.Usage = func() { printVerifyUsage(env.Stderr) }
	var common commonFlags
	addCommonFlags(fs, &common)
	payloadFile := fs.StringP("payload-file", "p", "", "Payload file")
	imageFile := fs.StringP("image", "i", "", "QR code image (PNG or JPEG)")
	documentFile := fs.StringP("document", "d", "", "Document to compare with a bound hash")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	payload, err := readPayload(fs.Args(), *payloadFile, *imageFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(common)
	if err != nil {
		return err
	}
	if cfg.Certificate.Secret == "" {
		return fmt.Errorf("%w%s", certificate.ErrMissingSecret, hints.ForMissingSecret())
	}

	var document []byte
	if *documentFile != "" {
		document, err = os.ReadFile(*documentFile) // #nosec G304 -- user-provided path
		if err != nil {
			return fmt.Errorf("%w: %w", ErrReadInput, err)
		}
	}

	res := certificate.Verify(payload, cfg.Certificate.Secret, document, env.Now())
	if err := printJSON(env, res); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("%w: %s", ErrInvalidCertificate, res.Reason)
	}
	return nil
}

// readPayload takes the payload from exactly one source: an argument, a
// file, or a QR code image.
func readPayload(args []string, payloadFile, imageFile string) (string, error) {
	sources := len(args)
	if payloadFile != "" {
		sources++
	}
	if imageFile != "" {
		sources++
	}
	if sources != 1 {
		return "", fmt.Errorf("%w: give one payload argument, --payload-file or --image", ErrUsage)
	}

	switch {
	case payloadFile != "":
		data, err := os.ReadFile(payloadFile) // #nosec G304 -- user-provided path
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrReadInput, err)
		}
		return strings.TrimSpace(string(data)), nil
	case imageFile != "":
		data, err := os.ReadFile(imageFile) // #nosec G304 -- user-provided path
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrReadInput, err)
		}
		return qrcode.Scan(data)
	default:
		return args[0], nil
	}
}
