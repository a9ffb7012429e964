package smobilpay

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SignatureMethod is the only signature method supported by S3P.
const SignatureMethod = "HMAC-SHA1"

const (
	authNonce           = "s3pAuth_nonce"
	authTimestamp       = "s3pAuth_timestamp"
	authSignatureMethod = "s3pAuth_signature_method"
	authToken           = "s3pAuth_token"
)

// Signer computes the s3pAuth authorization header for requests sent to Smobilpay.
// It holds no mutable state and is safe for concurrent use.
type Signer struct {
	credentials Credentials
	baseURL     string
	now         func() time.Time
}

// NewSigner creates a Signer for the given API base URL.
func NewSigner(baseURL string, credentials Credentials) *Signer {
	return &Signer{
		credentials: credentials,
		baseURL:     strings.TrimRight(baseURL, "/"),
		now:         time.Now,
	}
}

// Sign returns the Authorization header value for the request. A fresh timestamp and nonce are generated on
// every call.
func (s *Signer) Sign(method, path string, queryParams, bodyParams map[string]string) string {
	return s.SignAt(method, path, queryParams, bodyParams, s.now())
}

// SignAt is like Sign but uses the provided instant for both the timestamp and the nonce.
// The provider's reference implementation reads the clock once for both values and the remote HMAC is computed
// the same way, so they must stay identical.
func (s *Signer) SignAt(method, path string, queryParams, bodyParams map[string]string, at time.Time) string {
	stamp := strconv.FormatInt(at.UnixMilli(), 10)
	nonce := stamp

	params := make(map[string]string, len(queryParams)+len(bodyParams)+4)
	for k, v := range queryParams {
		params[k] = v
	}

	for k, v := range bodyParams {
		params[k] = v
	}

	params[authNonce] = nonce
	params[authTimestamp] = stamp
	params[authSignatureMethod] = SignatureMethod
	params[authToken] = s.credentials.MerchantKey

	signature := s.signature(method, s.url(path), parameterString(params))

	return fmt.Sprintf(
		`s3pAuth s3pAuth_timestamp="%s", s3pAuth_signature="%s", s3pAuth_nonce="%s", s3pAuth_signature_method="%s", s3pAuth_token="%s"`,
		stamp, signature, nonce, SignatureMethod, s.credentials.MerchantKey,
	)
}

// url joins the API base and the request path without doubling the slash.
func (s *Signer) url(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}

// signature returns base64(HMAC-SHA1(METHOD&enc(url)&enc(params), secret)).
func (s *Signer) signature(method, fullURL, params string) string {
	base := strings.ToUpper(method) + "&" + rawURLEncode(fullURL) + "&" + rawURLEncode(params)

	mac := hmac.New(sha1.New, []byte(s.credentials.SecretKey))
	mac.Write([]byte(base))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// parameterString trims and sorts the params by key and joins them as k=v pairs. Values are deliberately left
// unencoded to match the provider's reference implementation.
func parameterString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.TrimSpace(params[k]))
	}

	return strings.Join(pairs, "&")
}
