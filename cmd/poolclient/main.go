// Command poolclient is a demo client for the speechpool service: it
// opens a TCP listener, calls start_speek with its own address, prints
// whatever bytes arrive, and calls stop_speek after a delay.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli"

	"speechpool/logger"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	} `json:"error"`
}

func call(apiURL, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(apiURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%s: %v", out.Error.Message, out.Error.Data)
	}
	return out.Result, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "poolclient"
	app.Usage = "calls start_speek against a speechpool service, prints received bytes, then calls stop_speek"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "api-url", Usage: "speechpool JSON-RPC API url, e.g. http://127.0.0.1:8080/api/v1"},
		cli.StringFlag{Name: "text, t", Usage: "text to convert"},
		cli.IntFlag{Name: "start-stop-delay, d", Value: 5, Usage: "seconds between start_speek and stop_speek"},
	}
	app.Action = func(c *cli.Context) error {
		return runClient(c.String("api-url"), c.String("text"), c.Int("start-stop-delay"))
	}
	if err := app.Run(os.Args); err != nil {
		logger.Default.Fatalf("poolclient: %v", err)
	}
}

func runClient(apiURL, text string, delaySeconds int) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)
	logger.Default.Logf("poolclient: waiting for data on %s", addr)

	result, err := call(apiURL, "start_speek", []interface{}{text, "127.0.0.1", addr.Port, "my notification"})
	if err != nil {
		return fmt.Errorf("start_speek: %w", err)
	}
	var requestID int64
	if err := json.Unmarshal(result, &requestID); err != nil {
		return fmt.Errorf("start_speek: unexpected result: %w", err)
	}
	logger.Default.Logf("poolclient: started request %d", requestID)

	go func() {
		time.Sleep(time.Duration(delaySeconds) * time.Second)
		logger.Default.Log("poolclient: calling stop_speek")
		res, err := call(apiURL, "stop_speek", []interface{}{requestID})
		if err != nil {
			logger.Default.Errorf("poolclient: stop_speek failed: %v", err)
			return
		}
		var cancelled bool
		_ = json.Unmarshal(res, &cancelled)
		if cancelled {
			logger.Default.Log("poolclient: stream was cancelled")
		} else {
			logger.Default.Log("poolclient: nothing left to cancel")
		}
	}()

	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Default.Log("poolclient: incoming connection")
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			logger.Default.Logf("poolclient: <DATA>: %s", buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	logger.Default.Log("poolclient: connection closed")
	return nil
}
