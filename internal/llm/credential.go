package llm

// Credential says which API key a generation request runs under: the
// deployment's shared key, which is rate limited, or a caller-supplied key,
// which is not. Modeling this explicitly keeps sentinel string comparisons
// against the environment out of the handlers.
type Credential struct {
	key          string
	userSupplied bool
}

// UserKey wraps a caller-supplied API key.
func UserKey(key string) Credential {
	return Credential{key: key, userSupplied: true}
}

func sharedKey(key string) Credential {
	return Credential{key: key}
}

// Key returns the raw API key.
func (c Credential) Key() string { return c.key }

// UserSupplied reports whether the caller brought their own key.
func (c Credential) UserSupplied() bool { return c.userSupplied }

// Configured reports whether any key material is present.
func (c Credential) Configured() bool { return c.key != "" }
