package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/crypto"
	"mercator-hq/callisto/pkg/event"
)

var decryptFlags struct {
	key     string
	keyFile string
	output  string
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt [package.json]",
	Short: "Recover an encrypted package with the installation key",
	Long: `Decrypt the ciphertext fields of an EncryptedPackage JSON document
captured by this installation, printing the recovered plaintext.

Reads the package from the given file, or from stdin when no file is
supplied. The key must match the one the package was captured with;
a wrong key fails with a decryption error.

Examples:
  # Decrypt with an inline key
  callisto decrypt --key "$CALLISTO_ENCRYPTION_KEY" package.json

  # Decrypt with a key file, reading the package from stdin
  callisto decrypt --key-file /etc/callisto/key < package.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecrypt,
}

func init() {
	rootCmd.AddCommand(decryptCmd)

	decryptCmd.Flags().StringVar(&decryptFlags.key, "key", "", "encryption key material")
	decryptCmd.Flags().StringVar(&decryptFlags.keyFile, "key-file", "", "file containing the encryption key material")
	decryptCmd.Flags().StringVarP(&decryptFlags.output, "output", "o", "", "write recovered JSON to file instead of stdout")
}

// recoveredPackage is the plaintext rendering of a decrypted package.
type recoveredPackage struct {
	EventID      string `json:"eventId"`
	Method       string `json:"method"`
	URL          string `json:"url"`
	StatusCode   int    `json:"statusCode"`
	ErrorKind    string `json:"errorKind,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	RequestBody     any               `json:"requestBody,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    any               `json:"responseBody,omitempty"`

	Attachments []recoveredAttachment `json:"attachments,omitempty"`
}

type recoveredAttachment struct {
	ID          string `json:"id"`
	FieldName   string `json:"fieldName"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	SizeBytes   int64  `json:"sizeBytes"`
	Checksum    string `json:"checksum"`
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	material, err := decryptKeyMaterial()
	if err != nil {
		return err
	}

	engine, err := crypto.NewEngine(material)
	if err != nil {
		return cli.NewCommandError("decrypt", err)
	}

	data, err := readPackageInput(args)
	if err != nil {
		return cli.NewCommandError("decrypt", err)
	}

	var pkg event.EncryptedPackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return cli.NewCommandError("decrypt", fmt.Errorf("failed to parse package: %w", err))
	}

	recovered, err := recoverPackage(engine, &pkg)
	if err != nil {
		return cli.NewCommandError("decrypt", err)
	}

	out := os.Stdout
	if decryptFlags.output != "" {
		f, err := os.Create(decryptFlags.output)
		if err != nil {
			return cli.NewCommandError("decrypt", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(recovered)
}

// recoverPackage decrypts every ciphertext field of the package.
func recoverPackage(engine *crypto.Engine, pkg *event.EncryptedPackage) (*recoveredPackage, error) {
	rec := &recoveredPackage{
		EventID:      pkg.EventID,
		Method:       pkg.Method,
		URL:          pkg.URL,
		StatusCode:   pkg.StatusCode,
		ErrorKind:    pkg.ErrorKind,
		ErrorMessage: pkg.ErrorMessage,
	}

	var err error
	if rec.RequestHeaders, err = decryptHeaderField(engine, pkg.RequestHeaders); err != nil {
		return nil, fmt.Errorf("request headers: %w", err)
	}
	if rec.ResponseHeaders, err = decryptHeaderField(engine, pkg.ResponseHeaders); err != nil {
		return nil, fmt.Errorf("response headers: %w", err)
	}
	if rec.RequestBody, err = decryptBodyField(engine, pkg.RequestBody); err != nil {
		return nil, fmt.Errorf("request body: %w", err)
	}
	if rec.ResponseBody, err = decryptBodyField(engine, pkg.ResponseBody); err != nil {
		return nil, fmt.Errorf("response body: %w", err)
	}

	for _, att := range pkg.Attachments {
		ra := recoveredAttachment{
			ID:        att.ID,
			SizeBytes: att.SizeBytes,
			Checksum:  att.Checksum,
		}
		if ra.FieldName, err = engine.DecryptString(att.FieldName); err != nil {
			return nil, fmt.Errorf("attachment %s field name: %w", att.ID, err)
		}
		if ra.Filename, err = engine.DecryptString(att.Filename); err != nil {
			return nil, fmt.Errorf("attachment %s filename: %w", att.ID, err)
		}
		if att.ContentType != "" {
			if ra.ContentType, err = engine.DecryptString(att.ContentType); err != nil {
				return nil, fmt.Errorf("attachment %s content type: %w", att.ID, err)
			}
		}
		rec.Attachments = append(rec.Attachments, ra)
	}

	return rec, nil
}

func decryptHeaderField(engine *crypto.Engine, ciphertext string) (map[string]string, error) {
	if ciphertext == "" {
		return nil, nil
	}
	plaintext, err := engine.DecryptString(ciphertext)
	if err != nil {
		return nil, err
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(plaintext), &headers); err != nil {
		return nil, fmt.Errorf("decode decrypted headers: %w", err)
	}
	return headers, nil
}

func decryptBodyField(engine *crypto.Engine, ciphertext string) (any, error) {
	if ciphertext == "" {
		return nil, nil
	}
	plaintext, err := engine.DecryptString(ciphertext)
	if err != nil {
		return nil, err
	}
	var body any
	if err := json.Unmarshal([]byte(plaintext), &body); err != nil {
		// Bodies captured as raw strings are not JSON.
		return plaintext, nil
	}
	return body, nil
}

func decryptKeyMaterial() ([]byte, error) {
	if decryptFlags.key != "" && decryptFlags.keyFile != "" {
		return nil, cli.NewConfigError("key", "key and key-file are mutually exclusive")
	}
	if decryptFlags.keyFile != "" {
		data, err := os.ReadFile(decryptFlags.keyFile)
		if err != nil {
			return nil, cli.NewCommandError("decrypt", fmt.Errorf("failed to read key file: %w", err))
		}
		return data, nil
	}
	if decryptFlags.key == "" {
		return nil, cli.NewConfigError("key", "either --key or --key-file is required")
	}
	return []byte(decryptFlags.key), nil
}

func readPackageInput(args []string) ([]byte, error) {
	if len(args) == 1 {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(os.Stdin)
}
