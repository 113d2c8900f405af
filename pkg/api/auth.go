// Webhook authentication: Slack request signing.
//
// Every request to the /hooks/* entry points must carry a valid
// X-Slack-Signature computed from the signing secret and the raw body.
// Verification happens before any parsing; the body is restored for the
// downstream handler.
//
// When the secret is empty (development mode) requests pass through and a
// warning is logged at startup.
package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/penny-university/pennybot/pkg/logger"
)

// verifySlackSignature wraps a handler with Slack signing-secret
// verification.
func verifySlackSignature(secret string, next http.Handler) http.Handler {
	if secret == "" {
		logger.WarnC("auth", "Slack signature verification DISABLED, set slack.signing_secret")
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		verifier, err := slack.NewSecretsVerifier(r.Header, secret)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing signature headers"})
			return
		}
		if _, err := verifier.Write(body); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "verifier failure"})
			return
		}
		if err := verifier.Ensure(); err != nil {
			logger.WarnCF("auth", "Rejected request with bad signature", map[string]interface{}{
				"path": r.URL.Path,
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
