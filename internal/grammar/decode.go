package grammar

import (
	"fmt"
	"os"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// ReadFile reads a grammar file and decodes it using the named IANA charset
// (e.g. "ISO-8859-1", "UTF-16"). An empty name means the platform default,
// which on Go is UTF-8; callers are expected to have warned that leaving the
// encoding unset makes builds host-dependent.
func ReadFile(path, encodingName string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if encodingName == "" {
		return string(raw), nil
	}
	enc, err := ianaindex.IANA.Encoding(encodingName)
	if err != nil || enc == nil {
		return "", fmt.Errorf("unsupported grammar encoding %q", encodingName)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("decoding %q as %s: %w", path, encodingName, err)
	}
	return string(decoded), nil
}
