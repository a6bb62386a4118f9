package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConvert_FallbackRates(t *testing.T) {
	c := NewConverter("", zap.NewNop())

	usd, err := c.Convert(10, "USD")
	require.NoError(t, err)
	assert.Equal(t, 10.0, usd)

	vnd, err := c.Convert(10, "VND")
	require.NoError(t, err)
	assert.Equal(t, 250000.0, vnd)
}

func TestConvert_UnsupportedCurrency(t *testing.T) {
	c := NewConverter("", zap.NewNop())

	_, err := c.Convert(10, "EUR")
	assert.Error(t, err)
}

func TestFetchRates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"result": "success",
			"conversion_rates": {"USD": 1, "VND": 26000, "EUR": 0.9}
		}`))
	}))
	defer ts.Close()

	c := NewConverter(ts.URL, zap.NewNop())
	require.NoError(t, c.FetchRates(context.Background()))

	vnd, err := c.Convert(2, "VND")
	require.NoError(t, err)
	assert.Equal(t, 52000.0, vnd)

	// Unsupported currencies are not adopted from the feed.
	_, err = c.Convert(1, "EUR")
	assert.Error(t, err)
}

func TestFetchRates_FailureKeepsPreviousRates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewConverter(ts.URL, zap.NewNop())
	require.Error(t, c.FetchRates(context.Background()))

	vnd, err := c.Convert(1, "VND")
	require.NoError(t, err)
	assert.Equal(t, 25000.0, vnd, "fallback rate stays in place")
}

func TestFetchRates_RejectsUnsuccessfulResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error"}`))
	}))
	defer ts.Close()

	c := NewConverter(ts.URL, zap.NewNop())
	assert.Error(t, c.FetchRates(context.Background()))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		code  string
		want  string
	}{
		{"usd two decimals", 15.0, "USD", "$15.00"},
		{"usd keeps cents", 9.5, "USD", "$9.50"},
		{"vnd no decimals", 5.0, "VND", "5 ₫"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.value, tt.code))
		})
	}
}
