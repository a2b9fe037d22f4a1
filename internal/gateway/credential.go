package gateway

import "strings"

// Credential is a sanitized model API key. Keys pasted from chat clients or rich
// text editors pick up zero-width and full-width characters that break HTTP
// headers, so construction strips everything outside printable ASCII.
type Credential string

// NewCredential sanitizes raw input into a Credential. The result may be zero
// when the input contains no usable characters.
func NewCredential(raw string) Credential {
	var b strings.Builder
	for _, r := range raw {
		if r > 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	return Credential(b.String())
}

// IsZero reports whether no credential is present.
func (c Credential) IsZero() bool {
	return c == ""
}

// String exposes the raw key for client construction.
func (c Credential) String() string {
	return string(c)
}
