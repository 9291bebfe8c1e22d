package event

import (
	"encoding/json"
	"fmt"
)

// EncryptFunc encrypts a plaintext string, returning base64 ciphertext.
type EncryptFunc func(plaintext string) (string, error)

// ToStatistical derives the payload-free statistical package from an
// event. It copies identity, timing, and outcome only and is always
// safe to send.
func ToStatistical(ev *CapturedEvent) *StatisticalPackage {
	return &StatisticalPackage{
		EventID:         ev.ID,
		Timestamp:       ev.Timestamp,
		Method:          ev.Method,
		URL:             ev.URL,
		StatusCode:      ev.StatusCode,
		ErrorKind:       ev.ErrorKind,
		Duration:        ev.Duration,
		Environment:     ev.Environment,
		AppVersion:      ev.AppVersion,
		DeviceID:        ev.DeviceID,
		Success:         ev.Success,
		AttachmentCount: len(ev.Attachments),
	}
}

// ToEncrypted derives the encrypted package. Request and response
// headers and bodies are encrypted independently; nil values stay empty
// rather than encrypting to a ciphertext of "null". Non-string bodies
// are serialized to canonical JSON before encryption. Attachment field
// name, filename, and content type are individually encrypted while
// size and checksum stay plaintext.
func ToEncrypted(ev *CapturedEvent, encrypt EncryptFunc) (*EncryptedPackage, error) {
	pkg := &EncryptedPackage{
		EventID:      ev.ID,
		Timestamp:    ev.Timestamp,
		Method:       ev.Method,
		URL:          ev.URL,
		StatusCode:   ev.StatusCode,
		ErrorKind:    ev.ErrorKind,
		ErrorMessage: ev.ErrorMessage,
	}

	var err error
	if pkg.RequestHeaders, err = encryptHeaders(ev.RequestHeaders, encrypt); err != nil {
		return nil, fmt.Errorf("encrypt request headers: %w", err)
	}
	if pkg.RequestBody, err = encryptBody(ev.RequestBody, encrypt); err != nil {
		return nil, fmt.Errorf("encrypt request body: %w", err)
	}
	if pkg.ResponseHeaders, err = encryptHeaders(ev.ResponseHeaders, encrypt); err != nil {
		return nil, fmt.Errorf("encrypt response headers: %w", err)
	}
	if pkg.ResponseBody, err = encryptBody(ev.ResponseBody, encrypt); err != nil {
		return nil, fmt.Errorf("encrypt response body: %w", err)
	}

	for _, att := range ev.Attachments {
		enc, err := EncryptAttachment(att, encrypt)
		if err != nil {
			return nil, fmt.Errorf("encrypt attachment %s: %w", att.ID, err)
		}
		pkg.Attachments = append(pkg.Attachments, enc)
	}

	return pkg, nil
}

// EncryptAttachment derives the transmissible form of one attachment
// record: name fields become ciphertext, size and checksum pass through.
func EncryptAttachment(att FileAttachment, encrypt EncryptFunc) (EncryptedFileAttachment, error) {
	enc := EncryptedFileAttachment{
		ID:        att.ID,
		EventID:   att.EventID,
		SizeBytes: att.SizeBytes,
		Checksum:  att.Checksum,
	}

	var err error
	if enc.FieldName, err = encrypt(att.FieldName); err != nil {
		return enc, err
	}
	if enc.Filename, err = encrypt(att.Filename); err != nil {
		return enc, err
	}
	if att.ContentType != "" {
		if enc.ContentType, err = encrypt(att.ContentType); err != nil {
			return enc, err
		}
	}

	return enc, nil
}

// ToUnencrypted derives the full-plaintext package for local-only
// persistence. It is an identity transform over the event.
func ToUnencrypted(ev *CapturedEvent) *UnencryptedPackage {
	return &UnencryptedPackage{
		EventID:         ev.ID,
		Timestamp:       ev.Timestamp,
		Method:          ev.Method,
		URL:             ev.URL,
		StatusCode:      ev.StatusCode,
		ErrorKind:       ev.ErrorKind,
		ErrorMessage:    ev.ErrorMessage,
		RequestHeaders:  ev.RequestHeaders,
		RequestBody:     ev.RequestBody,
		ResponseHeaders: ev.ResponseHeaders,
		ResponseBody:    ev.ResponseBody,
		Duration:        ev.Duration,
		Environment:     ev.Environment,
		AppVersion:      ev.AppVersion,
		DeviceID:        ev.DeviceID,
		Extras:          ev.Extras,
		Attachments:     ev.Attachments,
		FormFields:      ev.FormFields,
	}
}

// encryptHeaders serializes a header map to canonical JSON and encrypts
// it. A nil map stays empty.
func encryptHeaders(headers map[string]string, encrypt EncryptFunc) (string, error) {
	if headers == nil {
		return "", nil
	}
	serialized, err := json.Marshal(headers)
	if err != nil {
		return "", err
	}
	return encrypt(string(serialized))
}

// encryptBody encrypts a body value. Strings are encrypted as-is; any
// other non-nil value is serialized to canonical JSON first.
func encryptBody(body any, encrypt EncryptFunc) (string, error) {
	if body == nil {
		return "", nil
	}
	if s, ok := body.(string); ok {
		return encrypt(s)
	}
	serialized, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return encrypt(string(serialized))
}
