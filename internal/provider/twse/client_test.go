package twse_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stockdaily/internal/provider/twse"
)

func jsonResponse(t *testing.T, status int, v any) *http.Response {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(v))
	return &http.Response{StatusCode: status, Body: io.NopCloser(buffer)}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	client := twse.NewClient()
	require.NotNil(t, client)
	require.Equal(t, twse.Name, client.Name())
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller and http client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Arrange: define a base url
	baseURL := "http://localhost:8080"

	// Assert: the request goes to the overridden host
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return jsonResponse(t, http.StatusOK, map[string]any{"stat": "OK"}), nil
		}).
		Times(1)

	// Act
	client := twse.NewClient(twse.WithHTTPClient(httpClient), twse.WithBaseURL(baseURL))
	_, err := client.GetStockDay(t.Context(), "2324", "20240105")
	require.NoError(t, err)
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: the custom header is forwarded
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			return jsonResponse(t, http.StatusOK, map[string]any{"stat": "OK"}), nil
		}).
		Times(1)

	client := twse.NewClient(twse.WithHTTPClient(httpClient), twse.WithHeader(http.Header{
		"foo": []string{"bar"},
	}))
	_, err := client.GetStockDay(t.Context(), "2324", "20240105")
	require.NoError(t, err)
}
