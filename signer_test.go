package smobilpay

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authHeaderRegex = regexp.MustCompile(
	`^s3pAuth s3pAuth_timestamp="(\d+)", s3pAuth_signature="([^"]+)", s3pAuth_nonce="(\d+)", s3pAuth_signature_method="HMAC-SHA1", s3pAuth_token="([^"]+)"$`,
)

func testSigner() *Signer {
	return NewSigner(SandboxBaseURL, Credentials{MerchantKey: testMerchantKey, SecretKey: testSecretKey})
}

func TestSigner_SignAt(t *testing.T) {
	signer := testSigner()
	at := time.UnixMilli(1700000000123)

	header := signer.SignAt("GET", "/cashout", map[string]string{"serviceid": "20053"}, nil, at)

	matches := authHeaderRegex.FindStringSubmatch(header)
	require.Len(t, matches, 5, header)

	assert.Equal(t, "1700000000123", matches[1])
	assert.Equal(t, matches[1], matches[3])
	assert.Equal(t, testMerchantKey, matches[4])
	assert.Equal(t, "RNQo31OclZwBlRt8jNo7Qe5jR48=", matches[2])
}

func TestSigner_KnownAnswer(t *testing.T) {
	signer := testSigner()

	body := map[string]string{
		"quoteId":              "q-123",
		"amount":               " 1500 ",
		"customerName":         "Jane Doe",
		"customerEmailaddress": "jane+1@example.com",
	}

	got := signer.SignAt("POST", "collectstd", nil, body, time.UnixMilli(1700000000123))

	want := `s3pAuth s3pAuth_timestamp="1700000000123", s3pAuth_signature="dmcbqTCiZ59YsOulmf+22huqIds=", ` +
		`s3pAuth_nonce="1700000000123", s3pAuth_signature_method="HMAC-SHA1", ` +
		`s3pAuth_token="a7c2e6a4-bc0f-4e71-9c3b-0d3f2ea91b2e"`
	assert.Equal(t, want, got)
}

func TestSigner_IsDeterministicForAFixedInstant(t *testing.T) {
	signer := testSigner()
	body := map[string]string{"payItemId": "S-112-951-MTNMOMO-20053-200040001-1", "amount": "1500"}

	at := time.UnixMilli(1700000000000)
	first := signer.SignAt("POST", "/quotestd", nil, body, at)
	second := signer.SignAt("POST", "/quotestd", nil, body, at)
	assert.Equal(t, first, second)

	later := signer.SignAt("POST", "/quotestd", nil, body, at.Add(time.Millisecond))
	assert.NotEqual(t, signatureOf(t, first), signatureOf(t, later))
}

func TestSigner_SortInvariance(t *testing.T) {
	signer := testSigner()
	at := time.UnixMilli(1700000000000)

	asQuery := signer.SignAt("GET", "/cashout", map[string]string{"b": "2", "a": "1"}, nil, at)
	asBody := signer.SignAt("GET", "/cashout", nil, map[string]string{"a": "1", "b": "2"}, at)
	split := signer.SignAt("GET", "/cashout", map[string]string{"b": "2"}, map[string]string{"a": "1"}, at)

	assert.Equal(t, asQuery, asBody)
	assert.Equal(t, asQuery, split)
}

func TestSigner_Sign_UsesFreshTimestamp(t *testing.T) {
	signer := testSigner()

	calls := int64(0)
	signer.now = func() time.Time {
		calls++
		return time.UnixMilli(1700000000000 + calls)
	}

	first := signer.Sign("GET", "/verifytx/42", nil, nil)
	second := signer.Sign("GET", "/verifytx/42", nil, nil)

	assert.Equal(t, int64(2), calls)
	assert.NotEqual(t, first, second)
}

func TestParameterString(t *testing.T) {
	testCases := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{
			name:   "SortsByKey",
			params: map[string]string{"serviceid": "20053", "amount": "100", "Zeta": "z"},
			want:   "Zeta=z&amount=100&serviceid=20053",
		},
		{
			name:   "TrimsValues",
			params: map[string]string{"customerName": "  Doe ", "trid": "\t42\n"},
			want:   "customerName=Doe&trid=42",
		},
		{
			name:   "DoesNotEncodeValues",
			params: map[string]string{"customerEmailaddress": "jane+shop@example.com", "customerAddress": "Rue 1/2 Akwa"},
			want:   "customerAddress=Rue 1/2 Akwa&customerEmailaddress=jane+shop@example.com",
		},
		{
			name:   "Empty",
			params: map[string]string{},
			want:   "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parameterString(tc.params))
		})
	}
}

func TestSigner_URL(t *testing.T) {
	testCases := []struct {
		base string
		path string
		want string
	}{
		{base: SandboxBaseURL, path: "/cashout", want: SandboxBaseURL + "/cashout"},
		{base: SandboxBaseURL + "/", path: "/cashout", want: SandboxBaseURL + "/cashout"},
		{base: SandboxBaseURL, path: "verifytx/1", want: SandboxBaseURL + "/verifytx/1"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s%s", tc.base, tc.path), func(t *testing.T) {
			signer := NewSigner(tc.base, Credentials{})
			assert.Equal(t, tc.want, signer.url(tc.path))
		})
	}
}

func TestRawURLEncode(t *testing.T) {
	assert.Equal(t, "a%20b%2Bc%2F~-_.", rawURLEncode("a b+c/~-_."))
	assert.Equal(t, "https%3A%2F%2Fs3p.smobilpay.staging.maviance.info%2Fv2%2Fcashout", rawURLEncode(SandboxBaseURL+"/cashout"))
	assert.Equal(t, "amount%3D100%26serviceid%3D20053", rawURLEncode("amount=100&serviceid=20053"))
}

func signatureOf(t *testing.T, header string) string {
	t.Helper()

	matches := authHeaderRegex.FindStringSubmatch(header)
	require.Len(t, matches, 5, header)
	return matches[2]
}
