package rpcapi

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"speechpool/config"
	"speechpool/dispatcher"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.TTSAPILimit = 4
	d := dispatcher.New(cfg, nil, nil, nil)
	return NewServer(d, nil)
}

func listenerAddr(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ln.Close()
	h, p, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	portNum, err := strconv.Atoi(p)
	if err != nil {
		t.Fatal(err)
	}
	return h, portNum
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestStartSpeekPositionalParams(t *testing.T) {
	s := testServer(t)
	host, port := listenerAddr(t)

	body := `{"jsonrpc":"2.0","method":"start_speek","params":["hi","` + host + `",` + strconv.Itoa(port) + `,"tag"],"id":1}`
	rec := post(t, s, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("got error %+v, want none", resp.Error)
	}
	f, ok := resp.Result.(float64)
	if !ok {
		t.Fatalf("unexpected result shape: %#v", resp.Result)
	}
	if int64(f) == 0 {
		t.Fatal("expected a non-zero request id")
	}
}

func TestStopSpeekUnknownIDReturnsFalse(t *testing.T) {
	s := testServer(t)
	rec := post(t, s, `{"jsonrpc":"2.0","method":"stop_speek","params":[999],"id":2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("got error %+v, want none", resp.Error)
	}
	if v, ok := resp.Result.(bool); !ok || v {
		t.Fatalf("got result %#v, want false", resp.Result)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := testServer(t)
	rec := post(t, s, `{"jsonrpc":"2.0","method":"nope","params":[],"id":3}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("got error %+v, want method-not-found", resp.Error)
	}
}

func TestMalformedJSONReturnsParseError(t *testing.T) {
	s := testServer(t)
	rec := post(t, s, `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("got error %+v, want parse-error", resp.Error)
	}
}

func TestNotificationGetsNoBody(t *testing.T) {
	s := testServer(t)
	rec := post(t, s, `{"jsonrpc":"2.0","method":"stop_speek","params":[1]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("got body %q, want empty", rec.Body.String())
	}
}
