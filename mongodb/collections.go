package mongodb

const (
	UsersCollection   = "oauth_users"      // Resource owners
	ClientsCollection = "oauth_clients"    // Registered client applications
	CodesCollection   = "oauth_auth_codes" // Single-use authorization codes
	TokensCollection  = "oauth_tokens"     // Issued token pairs
)
