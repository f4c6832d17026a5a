package domain

// Credentials identify this storefront to the customization vendor.
// The secret is masked by every formatting path so a Credentials value
// can be passed to log.Printf without leaking it.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Complete reports whether both halves of the credential pair are set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c Credentials) String() string {
	id := "<unset>"
	if c.ClientID != "" {
		id = "***"
	}
	secret := "<unset>"
	if c.ClientSecret != "" {
		secret = "***"
	}
	return "Credentials{id=" + id + " secret=" + secret + "}"
}

func (c Credentials) GoString() string {
	return c.String()
}
