package domain

// AccessType is the identity context of a vendor token request.
type AccessType string

const (
	AccessTypeS2S AccessType = "S2S" // server to server
	AccessTypeC2S AccessType = "C2S" // client to server
	AccessTypeB2C AccessType = "B2C" // browser to client
)

// Valid reports whether a is one of the access types the vendor accepts.
func (a AccessType) Valid() bool {
	switch a {
	case AccessTypeS2S, AccessTypeC2S, AccessTypeB2C:
		return true
	default:
		return false
	}
}

// TokenRequest carries the identity hints a token is bound to.
// VisitorID and CustomerID are opaque and may be empty.
type TokenRequest struct {
	AccessType AccessType
	VisitorID  string
	CustomerID string
}

// Token is a vendor bearer token.
type Token struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresInSeconds int    `json:"expires_in"`
}
