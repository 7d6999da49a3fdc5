package tests

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"testing"

	"github.com/EternisAI/netmeasure/internal/api/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeAndHistory(t *testing.T, baseURL, adminKey string) {
	token := issueToken(t, baseURL, adminKey, "system")

	t.Run("nodes", func(t *testing.T) {
		rr := doJSON(t, http.MethodGet, baseURL+"/api/v1/nodes", token, nil)
		require.Equal(t, http.StatusOK, rr.StatusCode)

		var resp dto.NodesResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp.Nodes, 1)
		assert.Equal(t, "LO", resp.Nodes[0].Name)
		assert.Equal(t, "persistent", resp.Nodes[0].Transport)
	})

	t.Run("resolve over persistent node", func(t *testing.T) {
		rr := doJSON(t, http.MethodPost, baseURL+"/api/v1/probes/resolve", token, map[string]any{"address": "127.0.0.1"})
		require.Equal(t, http.StatusOK, rr.StatusCode)

		var resp struct {
			Result struct {
				Addresses []string `json:"addresses"`
			} `json:"result"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, []string{"127.0.0.1"}, resp.Result.Addresses)
	})

	t.Run("tcping over persistent node", func(t *testing.T) {
		ln, err := net.Listen("tcp4", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				conn.Close()
			}
		}()

		rr := doJSON(t, http.MethodPost, baseURL+"/api/v1/probes/tcping", token, map[string]any{
			"address":  "127.0.0.1",
			"port":     ln.Addr().(*net.TCPAddr).Port,
			"count":    2,
			"interval": 10,
		})
		require.Equal(t, http.StatusOK, rr.StatusCode)

		var resp struct {
			Result struct {
				Total       int     `json:"total"`
				Success     int     `json:"success"`
				LossPercent float64 `json:"loss_percent"`
			} `json:"result"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, 2, resp.Result.Total)
		assert.Equal(t, 2, resp.Result.Success)
		assert.Zero(t, resp.Result.LossPercent)
	})

	t.Run("unsupported kind reports node info", func(t *testing.T) {
		rr := doJSON(t, http.MethodPost, baseURL+"/api/v1/probes/ping", token, map[string]any{"address": "127.0.0.1"})
		require.Equal(t, http.StatusUnprocessableEntity, rr.StatusCode)

		var resp dto.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Contains(t, resp.Info, "not supported")
	})

	t.Run("history", func(t *testing.T) {
		rr := doJSON(t, http.MethodGet, baseURL+"/api/v1/history?node=lo", token, nil)
		require.Equal(t, http.StatusOK, rr.StatusCode)

		var resp dto.HistoryResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Equal(t, 3, resp.Count)
		assert.Equal(t, "ping", resp.Results[0].Kind)
		assert.False(t, resp.Results[0].OK)
		assert.Equal(t, "tcping", resp.Results[1].Kind)
		assert.True(t, resp.Results[1].OK)

		rr = doJSON(t, http.MethodGet, baseURL+"/api/v1/history?kind=resolve&limit=1", token, nil)
		require.Equal(t, http.StatusOK, rr.StatusCode)
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "127.0.0.1", resp.Results[0].Target)
	})
}

func issueToken(t *testing.T, baseURL, adminKey, operator string) string {
	t.Helper()

	b, _ := json.Marshal(dto.IssueTokenRequest{Operator: operator})
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/admin/tokens", bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", adminKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body dto.IssueTokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Token
}

// doJSON closes the response body when the test ends.
func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
