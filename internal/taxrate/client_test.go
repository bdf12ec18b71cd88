package taxrate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crossbill/internal/resilience"
	"github.com/noah-isme/crossbill/internal/taxrate"
)

func newClient(t *testing.T, handler http.HandlerFunc) (taxrate.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return taxrate.Client{
		HTTP:     resilience.HTTPClient{Client: srv.Client(), Timeout: time.Second},
		Endpoint: srv.URL + "/api/taxrate/GetRateByAddress",
	}, srv
}

var sacramento = taxrate.Address{Street: "450 N St", City: "Sacramento", Zip: "95814"}

func TestLookupEncodesQueryAndFormatsRate(t *testing.T) {
	var rawQuery, path string
	calls := 0
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		rawQuery = r.URL.RawQuery
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"taxRateInfo":[{"rate":0.0725,"jurisdiction":"SACRAMENTO"}],"termsOfUse":"x"}`))
	})

	rate, err := client.Lookup(context.Background(), taxrate.Address{Street: "1 Main St #2", City: "San José", Zip: "95113&x=1"})
	require.NoError(t, err)
	require.Equal(t, "7.250", rate)
	require.Equal(t, 1, calls)
	require.Equal(t, "/api/taxrate/GetRateByAddress", path)
	require.Equal(t, "address=1%20Main%20St%20%232&city=San%20Jos%C3%A9&zip=95113%26x%3D1", rawQuery)
}

func TestLookupAcceptsTrailingWhitespace(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{\"taxRateInfo\":[{\"rate\":0.0725}]}\n\n"))
	})

	rate, err := client.Lookup(context.Background(), sacramento)
	require.NoError(t, err)
	require.Equal(t, "7.250", rate)
}

func TestLookupRoundsToThreeDecimals(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"taxRateInfo":[{"rate":0.087505},{"rate":0.01}]}`))
	})

	rate, err := client.Lookup(context.Background(), sacramento)
	require.NoError(t, err)
	require.Equal(t, "8.751", rate)
}

func TestLookupNotFound(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"empty list", http.StatusOK, `{"taxRateInfo":[]}`, taxrate.DefaultNotFoundMessage},
		{"missing list", http.StatusOK, `{}`, taxrate.DefaultNotFoundMessage},
		{"string rate", http.StatusOK, `{"taxRateInfo":[{"rate":"0.0725"}]}`, taxrate.DefaultNotFoundMessage},
		{"upstream message", http.StatusOK, `{"taxRateInfo":[],"message":"Address not found"}`, "Address not found"},
		{"error status with rate", http.StatusBadRequest, `{"taxRateInfo":[{"rate":0.0725}],"message":"Invalid zip"}`, "Invalid zip"},
		{"error status without message", http.StatusNotFound, `{"errors":["bad"]}`, taxrate.DefaultNotFoundMessage},
		{"server error json", http.StatusInternalServerError, `{"message":"Service unavailable"}`, "Service unavailable"},
		{"array body", http.StatusOK, `[{"rate":0.0725}]`, taxrate.DefaultNotFoundMessage},
		{"empty message", http.StatusOK, `{"message":""}`, taxrate.DefaultNotFoundMessage},
		{"huge exponent rate", http.StatusOK, `{"taxRateInfo":[{"rate":1e9999999}]}`, taxrate.DefaultNotFoundMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := client.Lookup(context.Background(), sacramento)
			var nf *taxrate.NotFoundError
			require.True(t, errors.As(err, &nf), "unexpected error %v", err)
			require.Equal(t, tc.message, nf.Message)
			require.Equal(t, tc.status, nf.StatusCode)
		})
	}
}

func TestLookupUpstreamFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"html", `<html>502 Bad Gateway</html>`},
		{"empty body", ``},
		{"json null", `null`},
		{"trailing garbage", `{"taxRateInfo":[{"rate":0.0725}]} garbage`},
		{"two documents", `{"taxRateInfo":[{"rate":0.0725}]}{"taxRateInfo":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Lookup(context.Background(), sacramento)
			require.ErrorIs(t, err, taxrate.ErrUpstream)
		})
	}

	t.Run("transport", func(t *testing.T) {
		client, srv := newClient(t, func(w http.ResponseWriter, r *http.Request) {})
		srv.Close()
		_, err := client.Lookup(context.Background(), sacramento)
		require.ErrorIs(t, err, taxrate.ErrUpstream)
	})

	t.Run("timeout", func(t *testing.T) {
		client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		client.HTTP.Timeout = 20 * time.Millisecond
		_, err := client.Lookup(context.Background(), sacramento)
		require.ErrorIs(t, err, taxrate.ErrUpstream)
	})
}

func TestFormatPercent(t *testing.T) {
	cases := map[string]string{
		"0.0725":  "7.250",
		"0.07375": "7.375",
		"0.1":     "10.000",
		"0":       "0.000",
		"1e-2":    "1.000",
		"0.00005": "0.005",
	}
	for in, want := range cases {
		got, ok := taxrate.FormatPercent(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}
	for _, in := range []string{"seven", "1e9999999", "1e-9999999"} {
		_, ok := taxrate.FormatPercent(in)
		require.False(t, ok, in)
	}
	got, ok := taxrate.FormatPercent("0e9999999")
	require.True(t, ok)
	require.Equal(t, "0.000", got)
}
