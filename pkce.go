package gatehouse

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/gatehouse-dev/gatehouse/domain"
)

// VerifyCodeChallenge checks a PKCE code verifier against the stored
// challenge. For "plain" the verifier is compared as-is; for "S256" the
// challenge must equal base64url(SHA-256(verifier)). Comparisons are
// constant-time.
func VerifyCodeChallenge(challenge, method, verifier string) bool {
	switch method {
	case domain.CodeChallengeS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(computed)) == 1
	case domain.CodeChallengePlain, "":
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	default:
		return false
	}
}

// ComputeS256Challenge derives the S256 challenge for a verifier, as a
// client would before the authorization request.
func ComputeS256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
