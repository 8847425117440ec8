// Package ltisig validates the OAuth 1.0a message signatures carried by
// LTI 1.1 launch requests (two-legged: consumer key and shared secret only,
// no token secret).
package ltisig

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Supported oauth_signature_method values.
const (
	MethodHMACSHA1   = "HMAC-SHA1"
	MethodHMACSHA256 = "HMAC-SHA256"
)

// MaxTimestampSkew is how far an oauth_timestamp may drift from server time.
const MaxTimestampSkew = 5 * time.Minute

// SignatureError describes why a launch signature was rejected. The problem
// string follows the oauth_problem vocabulary so it can be surfaced to tool
// consumers for diagnosis.
type SignatureError struct {
	Problem string
}

func (e *SignatureError) Error() string {
	return "ltisig: " + e.Problem
}

// Validate checks the OAuth1 signature of a launch request. method and
// launchURL identify the HTTP request as the consumer saw it; params holds
// every form and query parameter including the oauth_* ones.
func Validate(method, launchURL string, params url.Values, secret string) error {
	for _, required := range []string{"oauth_consumer_key", "oauth_signature", "oauth_signature_method", "oauth_timestamp", "oauth_nonce"} {
		if params.Get(required) == "" {
			return &SignatureError{Problem: "parameter_absent: " + required}
		}
	}

	sigMethod := params.Get("oauth_signature_method")
	if sigMethod != MethodHMACSHA1 && sigMethod != MethodHMACSHA256 {
		return &SignatureError{Problem: "signature_method_rejected: " + sigMethod}
	}

	ts, err := strconv.ParseInt(params.Get("oauth_timestamp"), 10, 64)
	if err != nil {
		return &SignatureError{Problem: "timestamp_refused: not a unix timestamp"}
	}
	skew := time.Since(time.Unix(ts, 0))
	if skew < -MaxTimestampSkew || skew > MaxTimestampSkew {
		return &SignatureError{Problem: "timestamp_refused: outside the accepted window"}
	}

	expected, err := Sign(method, launchURL, params, secret, sigMethod)
	if err != nil {
		return err
	}

	presented := params.Get("oauth_signature")
	if !hmac.Equal([]byte(expected), []byte(presented)) {
		return &SignatureError{Problem: "signature_invalid"}
	}
	return nil
}

// Sign computes the base64 OAuth1 signature over the request. Exported so
// test consumers can produce correctly signed launches.
func Sign(method, launchURL string, params url.Values, secret, sigMethod string) (string, error) {
	var newHash func() hash.Hash
	switch sigMethod {
	case MethodHMACSHA1:
		newHash = sha1.New
	case MethodHMACSHA256:
		newHash = sha256.New
	default:
		return "", &SignatureError{Problem: "signature_method_rejected: " + sigMethod}
	}

	base := signatureBaseString(method, launchURL, params)
	key := encode(secret) + "&" // two-legged: empty token secret

	mac := hmac.New(newHash, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// signatureBaseString builds METHOD&encode(url)&encode(sorted-params),
// excluding oauth_signature itself, per RFC 5849 §3.4.1.
func signatureBaseString(method, launchURL string, params url.Values) string {
	type pair struct{ k, v string }
	var pairs []pair
	for name, values := range params {
		if name == "oauth_signature" {
			continue
		}
		for _, v := range values {
			pairs = append(pairs, pair{encode(name), encode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.k+"="+p.v)
	}

	return strings.ToUpper(method) + "&" + encode(normalizeURL(launchURL)) + "&" + encode(strings.Join(parts, "&"))
}

// normalizeURL strips the query and fragment and lowercases scheme/host.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	// Default ports are omitted from the base string
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}
	return u.String()
}

// encode is RFC 3986 percent-encoding: unreserved characters pass through,
// everything else becomes %XX with uppercase hex.
func encode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}
