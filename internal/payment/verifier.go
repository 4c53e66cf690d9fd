package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/noah-isme/backend-parfum/internal/obs"
)

// ErrSignatureMismatch is returned when a payment signature does not verify.
var ErrSignatureMismatch = errors.New("payment: signature mismatch")

// Verifier checks gateway payment signatures:
// hex(HMAC-SHA256(secret, gatewayOrderID + "|" + paymentID)).
type Verifier struct {
	Secret string
}

// Sign returns the expected signature for the pair.
func (v Verifier) Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with the expected value in constant time. The
// inputs are used exactly as received: the signature must be the lowercase
// hex digest over the untrimmed ids.
func (v Verifier) Verify(gatewayOrderID, paymentID, signature string) error {
	if v.Secret == "" || gatewayOrderID == "" || paymentID == "" || signature == "" {
		obs.IncPaymentVerification("rejected")
		return ErrSignatureMismatch
	}
	expected := v.Sign(gatewayOrderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		obs.IncPaymentVerification("mismatch")
		return ErrSignatureMismatch
	}
	obs.IncPaymentVerification("ok")
	return nil
}

// VerifyBody checks a webhook signature: hex(HMAC-SHA256(secret, body)).
func (v Verifier) VerifyBody(body []byte, signature string) error {
	if v.Secret == "" || signature == "" {
		return ErrSignatureMismatch
	}
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
