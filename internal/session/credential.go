package session

// Credential is a named secret handle. The value is delivered to the provider
// out of band; formatting a Credential anywhere (logs, traces, errors, JSON)
// yields only the redaction marker, so leakage is prevented by construction
// rather than by call-site discipline.
type Credential struct {
	name  string
	value string
}

// NewCredential wraps a secret value under a placeholder name. The
// instruction text references it as %name%.
func NewCredential(name, value string) Credential {
	return Credential{name: name, value: value}
}

// Name returns the placeholder name.
func (c Credential) Name() string { return c.name }

// reveal is intentionally unexported: only this package hands values to a
// provider transport.
func (c Credential) reveal() string { return c.value }

// Empty reports whether the credential carries no value.
func (c Credential) Empty() bool { return c.value == "" }

const redacted = "[redacted]"

func (c Credential) String() string   { return redacted }
func (c Credential) GoString() string { return redacted }

// MarshalJSON ensures a Credential embedded in any serialized struct is
// redacted.
func (c Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// secretMap converts credentials to the provider wire map.
func secretMap(secrets []Credential) map[string]string {
	if len(secrets) == 0 {
		return nil
	}
	out := make(map[string]string, len(secrets))
	for _, s := range secrets {
		if !s.Empty() {
			out[s.name] = s.reveal()
		}
	}
	return out
}
