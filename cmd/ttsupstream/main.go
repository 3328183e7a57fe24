// Command ttsupstream is a standalone text-to-speech upstream emulator:
// it exposes a single JSON-RPC method, play(text, host, port), which
// dials host:port and streams text upper-cased, one byte per tick. It
// is a standalone tool for manual testing; the speechpool service does
// not call it, since its built-in driver is the in-process stub and
// its --tts-api-url value is never dialled.
package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"speechpool/logger"
)

type playRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     json.RawMessage `json:"id"`
}

func main() {
	app := cli.NewApp()
	app.Name = "ttsupstream"
	app.Usage = "standalone text-to-speech upstream emulator: JSON-RPC play(text, host, port)"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "host, H", Value: "127.0.0.1"},
		cli.IntFlag{Name: "port, P", Value: 9000},
		cli.DurationFlag{Name: "tick", Value: time.Second, Usage: "delay between emitted bytes"},
	}
	app.Action = func(c *cli.Context) error {
		return serve(c.String("host"), c.Int("port"), c.Duration("tick"))
	}
	if err := app.Run(os.Args); err != nil {
		logger.Default.Fatalf("ttsupstream: %v", err)
	}
}

func serve(host string, port int, tick time.Duration) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var req playRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "parse error", http.StatusBadRequest)
			return
		}
		if req.Method != "play" {
			http.Error(w, "method not found", http.StatusNotFound)
			return
		}

		var params []interface{}
		if err := json.Unmarshal(req.Params, &params); err != nil || len(params) != 3 {
			http.Error(w, "invalid params", http.StatusBadRequest)
			return
		}
		text, _ := params[0].(string)
		targetHost, _ := params[1].(string)
		targetPortF, _ := params[2].(float64)

		go play(text, targetHost, int(targetPortF), tick)

		if len(req.ID) > 0 {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"result":  nil,
				"id":      json.RawMessage(req.ID),
			})
		}
	})

	addr := fmt.Sprintf("%s:%d", host, port)
	logger.Default.Logf("ttsupstream: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func play(text, targetHost string, targetPort int, tick time.Duration) {
	target := net.JoinHostPort(targetHost, fmt.Sprintf("%d", targetPort))
	conn, err := net.Dial("tcp", target)
	if err != nil {
		logger.Default.Errorf("ttsupstream: can't connect to target %s: %v", target, err)
		return
	}
	defer conn.Close()

	upper := strings.ToUpper(text)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for i := 0; i < len(upper); i++ {
		<-ticker.C
		if _, err := conn.Write([]byte{upper[i]}); err != nil {
			logger.Default.Errorf("ttsupstream: write error: %v", err)
			return
		}
	}
}
