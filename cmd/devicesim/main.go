// Command devicesim posts synthetic sensor readings to a running hub, standing
// in for an on-vehicle device during local development.
//
// Usage:
//
//	go run ./cmd/devicesim \
//	  -server http://localhost:8080 \
//	  -event motion -value 1 -count 10 -interval 2s
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "hub base URL")
	event := flag.String("event", "motion", "event type to report")
	value := flag.String("value", "1", "reading value, sent as a JSON literal")
	count := flag.Int("count", 1, "number of readings to send")
	interval := flag.Duration("interval", time.Second, "delay between readings")
	flag.Parse()

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(*value), &raw); err != nil {
		// Treat an unparseable value as a bare string, matching how device
		// firmware reports free-form sensor output.
		raw, _ = json.Marshal(*value)
	}

	clock := clockwork.NewRealClock()
	ip := localIP()
	mac := localMAC()

	for i := 0; i < *count; i++ {
		if i > 0 {
			clock.Sleep(*interval)
		}

		payload := map[string]any{
			"event":     *event,
			"value":     raw,
			"timestamp": clock.Now().Format("2006-01-02 15:04:05"),
			"ip":        ip,
			"mac":       mac,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}

		resp, err := http.Post(*server+"/api/sensor", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post reading: %w", err)
		}
		text, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("reading rejected: %s: %s", resp.Status, text)
		}
		log.Printf("sent %s reading %d/%d: %s", *event, i+1, *count, text)
	}
	return nil
}

// localIP finds the outbound interface address without sending any packets.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "Unknown"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func localMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "Unknown"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if addr := iface.HardwareAddr.String(); addr != "" {
			return addr
		}
	}
	return "Unknown"
}
