package ipfs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	m := NewMemory()

	doc := map[string]int{"0xA": 5, "0xB": 2}
	c, err := m.PinJSON(ctx, doc)
	require.NoError(err)
	require.True(ValidCID(c))
	require.True(strings.HasPrefix(c, "Qm"))

	raw, err := m.Fetch(ctx, c)
	require.NoError(err)
	want, _ := json.Marshal(doc)
	require.Equal(want, raw)

	again, err := m.PinJSON(ctx, doc)
	require.NoError(err)
	require.Equal(c, again)
	require.Equal(2, m.Pins())

	_, err = m.Fetch(ctx, "QmUnknown")
	require.Equal(ErrNotFound, errors.Cause(err))
}

func TestValidCID(t *testing.T) {
	require.True(t, ValidCID("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
	require.False(t, ValidCID("not-a-cid"))
	require.False(t, ValidCID(""))
	require.Equal(t, "https://ipfs.io/ipfs/Qmx", PublicURL("Qmx"))
}

func newPinataServer(t *testing.T, pinned map[string][]byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ipfs/") {
			body, ok := pinned[strings.TrimPrefix(r.URL.Path, "/ipfs/")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(body)
			return
		}
		if r.Header.Get("pinata_api_key") != "key" || r.Header.Get("pinata_secret_api_key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid keys"}`))
			return
		}
		var body []byte
		switch r.URL.Path {
		case "/pinning/pinJSONToIPFS":
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ = io.ReadAll(r.Body)
		case "/pinning/pinFileToIPFS":
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			require.Equal(t, "photo.png", hdr.Filename)
			body, _ = io.ReadAll(f)
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		c, _ := NewMemory().Put(context.Background(), body)
		pinned[c] = body
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pinataResponse{IpfsHash: c, PinSize: int64(len(body)), Timestamp: "2024-06-01T00:00:00Z"})
	}))
}

func TestPinata(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	pinned := map[string][]byte{}
	srv := newPinataServer(t, pinned)
	defer srv.Close()

	p := NewPinata(PinataConfig{APIURL: srv.URL, GatewayURL: srv.URL, APIKey: "key", SecretKey: "secret"})

	doc := map[string]int{"0xA": 1}
	c, err := p.PinJSON(ctx, doc)
	require.NoError(err)
	raw, err := p.Fetch(ctx, c)
	require.NoError(err)
	require.JSONEq(`{"0xA":1}`, string(raw))

	fc, err := p.PinFile(ctx, strings.NewReader("png-bytes"), "photo.png", "image/png")
	require.NoError(err)
	raw, err = p.Fetch(ctx, fc)
	require.NoError(err)
	require.Equal("png-bytes", string(raw))

	_, err = p.Fetch(ctx, "QmMissing")
	require.Equal(ErrNotFound, errors.Cause(err))
}

func TestPinataFailures(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	srv := newPinataServer(t, map[string][]byte{})
	defer srv.Close()

	_, err := NewPinata(PinataConfig{APIURL: srv.URL, GatewayURL: srv.URL}).PinJSON(ctx, 1)
	require.Equal(ErrStoreUnavailable, errors.Cause(err))

	_, err = NewPinata(PinataConfig{APIURL: srv.URL, APIKey: "key", SecretKey: "wrong"}).PinJSON(ctx, 1)
	require.Equal(ErrStoreUnavailable, errors.Cause(err))

	srv.Close()
	_, err = NewPinata(PinataConfig{APIURL: srv.URL, APIKey: "key", SecretKey: "secret"}).PinJSON(ctx, 1)
	require.Equal(ErrStoreUnavailable, errors.Cause(err))
}
