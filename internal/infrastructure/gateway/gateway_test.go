package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

func TestSignatures(t *testing.T) {
	body := []byte(`{"EventType":1}`)

	sig := SignBase64SHA256("s3cret", body)
	assert.True(t, VerifyBase64SHA256("s3cret", body, sig))
	assert.False(t, VerifyBase64SHA256("other", body, sig))
	assert.False(t, VerifyBase64SHA256("", body, sig))
	assert.False(t, VerifyBase64SHA256("s3cret", body, "not base64!"))

	hexSig := SignHexSHA512("s3cret", body)
	assert.True(t, VerifyHexSHA512("s3cret", body, hexSig))
	assert.False(t, VerifyHexSHA512("s3cret", []byte(`{}`), hexSig))
	assert.False(t, VerifyHexSHA512("s3cret", body, ""))
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"ord-1","b":4105704,"c":null}`), &v))
	assert.Equal(t, "ord-1", v.A.String())
	assert.Equal(t, "4105704", v.B.String())
	assert.Equal(t, "", v.C.String())
}

func TestClientDoHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Message":"bad"}`))
	}))
	defer srv.Close()

	c := NewClient("fake", time.Second, nil)
	raw, err := c.Do(context.Background(), Request{Endpoint: "ep", Method: http.MethodPost, URL: srv.URL, Body: map[string]string{"k": "v"}})

	var ge *payment.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, payment.KindHTTPStatus, ge.Kind)
	assert.JSONEq(t, `{"Message":"bad"}`, string(raw))
}

func TestClientDoTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient("fake", time.Second, nil)
	_, err := c.Do(context.Background(), Request{Endpoint: "ep", Method: http.MethodGet, URL: url})

	var ge *payment.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, payment.KindTransport, ge.Kind)
	assert.True(t, ge.Retryable())
}

func TestDecodeJSON(t *testing.T) {
	c := NewClient("fake", time.Second, nil)
	var out map[string]any

	err := c.DecodeJSON([]byte("  "), &out)
	var ge *payment.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, payment.KindDecode, ge.Kind)

	require.NoError(t, c.DecodeJSON([]byte(`{"ok":true}`), &out))
	assert.Equal(t, true, out["ok"])
}
