package capture

// AuthMode selects which auth header, if any, accompanies a delivery.
type AuthMode string

const (
	AuthNone         AuthMode = "none"
	AuthBearer       AuthMode = "bearer"
	AuthCustomHeader AuthMode = "custom_header"
)

// ParseAuthMode maps a stored value to an AuthMode.
// Empty or unrecognized values map to AuthNone.
func ParseAuthMode(s string) AuthMode {
	switch AuthMode(s) {
	case AuthBearer:
		return AuthBearer
	case AuthCustomHeader:
		return AuthCustomHeader
	default:
		return AuthNone
	}
}

// Valid reports whether m is one of the known modes.
func (m AuthMode) Valid() bool {
	return m == AuthNone || m == AuthBearer || m == AuthCustomHeader
}

// DeliveryConfig holds the webhook destination and its credentials.
type DeliveryConfig struct {
	WebhookURL       string   `json:"webhook_url"`
	AuthMode         AuthMode `json:"auth_mode"`
	AuthToken        string   `json:"auth_token,omitempty"`
	CustomHeaderName string   `json:"custom_header_name,omitempty"`
}

// AuthHeader returns the single auth header to attach, if any.
// Bearer needs a token; custom_header needs both a header name and a token.
func (c DeliveryConfig) AuthHeader() (name, value string, ok bool) {
	switch c.AuthMode {
	case AuthBearer:
		if c.AuthToken != "" {
			return "Authorization", "Bearer " + c.AuthToken, true
		}
	case AuthCustomHeader:
		if c.CustomHeaderName != "" && c.AuthToken != "" {
			return c.CustomHeaderName, c.AuthToken, true
		}
	}
	return "", "", false
}

// Redacted returns a copy safe for display: the token is masked.
func (c DeliveryConfig) Redacted() DeliveryConfig {
	if c.AuthToken != "" {
		c.AuthToken = "********"
	}
	return c
}
