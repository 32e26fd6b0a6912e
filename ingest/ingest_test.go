package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleContract = "contract C { function f() public {} }"

func TestAcquireRequiresExactlyOneInput(t *testing.T) {
	acquirer := NewAcquirer()
	ctx := context.Background()

	_, err := acquirer.Acquire(ctx, Input{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = acquirer.Acquire(ctx, Input{
		FileName: "Token.sol",
		FileData: []byte(sampleContract),
		URL:      "https://example.com/Token.sol",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAcquireFromFile(t *testing.T) {
	acquirer := NewAcquirer()

	contract, err := acquirer.Acquire(context.Background(), Input{
		FileName: "Token.sol",
		FileData: []byte(sampleContract),
	})
	require.NoError(t, err)
	assert.Equal(t, sampleContract, contract.Content)
	assert.Equal(t, "Token.sol", contract.DisplayName)
	assert.Equal(t, "Token.sol", contract.Origin)
}

func TestAcquireFromFileRejectsWrongExtension(t *testing.T) {
	acquirer := NewAcquirer()

	_, err := acquirer.Acquire(context.Background(), Input{
		FileName: "Token.txt",
		FileData: []byte(sampleContract),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAcquireFromFileRejectsEmptyFile(t *testing.T) {
	acquirer := NewAcquirer()

	_, err := acquirer.Acquire(context.Background(), Input{
		FileName: "Token.sol",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAcquireFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, sampleContract)
	}))
	defer server.Close()

	acquirer := NewAcquirerWithClient(server.Client())

	contract, err := acquirer.Acquire(context.Background(), Input{URL: server.URL + "/contracts/Vault.sol"})
	require.NoError(t, err)
	assert.Equal(t, sampleContract, contract.Content)
	assert.Equal(t, "Vault.sol", contract.DisplayName)
	assert.Equal(t, server.URL+"/contracts/Vault.sol", contract.Origin)
}

func TestAcquireFromURLDefaultName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleContract)
	}))
	defer server.Close()

	acquirer := NewAcquirerWithClient(server.Client())

	contract, err := acquirer.Acquire(context.Background(), Input{URL: server.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, DefaultContractName, contract.DisplayName)
}

func TestAcquireFromURLFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	acquirer := NewAcquirerWithClient(server.Client())

	_, err := acquirer.Acquire(context.Background(), Input{URL: server.URL + "/gone.sol"})
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestAcquireFromURLRejectsAdvertisedSizeBeforeRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2000000")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	acquirer := NewAcquirerWithClient(server.Client())

	_, err := acquirer.Acquire(context.Background(), Input{URL: server.URL + "/huge.sol"})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestAcquireFromURLCapsUnadvertisedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response with no Content-Length header
		flusher := w.(http.Flusher)
		chunk := strings.Repeat("b", 64*1024)
		for i := 0; i < 20; i++ { // 1.25 MiB total
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
	defer server.Close()

	acquirer := NewAcquirerWithClient(server.Client())

	_, err := acquirer.Acquire(context.Background(), Input{URL: server.URL + "/stream.sol"})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestAcquireFromURLExtractsHTMLSource(t *testing.T) {
	page := `<html><body>
		<div class="header">Contract Source</div>
		<pre>small</pre>
		<pre>` + sampleContract + `</pre>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	acquirer := NewAcquirerWithClient(server.Client())

	contract, err := acquirer.Acquire(context.Background(), Input{URL: server.URL + "/address/0xdeadbeef"})
	require.NoError(t, err)
	assert.Equal(t, sampleContract, contract.Content)
}

func TestAcquireFromURLKeepsHTMLWithoutPre(t *testing.T) {
	page := `<html><body><p>no source here</p></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	acquirer := NewAcquirerWithClient(server.Client())

	contract, err := acquirer.Acquire(context.Background(), Input{URL: server.URL + "/page"})
	require.NoError(t, err)
	assert.Equal(t, page, contract.Content)
}

func TestAcquireRejectsBadScheme(t *testing.T) {
	acquirer := NewAcquirer()

	_, err := acquirer.Acquire(context.Background(), Input{URL: "ftp://example.com/Token.sol"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
