// Package crypto provides the symmetric encryption engine used to protect
// captured request payloads and attachment blobs before they leave the
// device or touch durable storage.
//
// The engine derives a fixed 256-bit key from arbitrary key material,
// encrypts with AES in CBC mode with PKCS7 padding (a fresh random IV is
// prepended to every ciphertext), and produces short content fingerprints
// for deduplication.
//
// The scheme carries no authentication tag: the wire and blob formats must
// stay byte-compatible with the collector, which expects IV‖CBC‖PKCS7.
// Corruption or a wrong key is detected only incidentally, via padding
// validation on decrypt.
package crypto
