package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/EternisAI/netmeasure/internal/frame"
	"github.com/EternisAI/netmeasure/internal/handshake"
	"github.com/EternisAI/netmeasure/internal/probe"
	"github.com/gorilla/websocket"
)

var (
	serverURL = flag.String("url", "ws://localhost:8080/netmeasure", "Server node endpoint")
	name      = flag.String("name", "TEST", "Node name to register as")
	key       = flag.String("key", "", "Shared gateway key")
	latency   = flag.Float64("latency", 12.5, "Latency reported for every sample, in ms")
	lifetime  = flag.Duration("lifetime", 5*time.Minute, "How long to stay connected")
)

// fake_node registers as a persistent node and answers every request with
// synthetic samples, for poking at a local server without real probes.
func main() {
	flag.Parse()

	ident := handshake.NewIdentifier(*name, time.Now())
	header := http.Header{}
	header.Set(handshake.HeaderIdentifier, ident)
	header.Set(handshake.HeaderSignature, handshake.Sign([]byte(*key), []byte(ident)))

	log.Printf("Connecting to %s as %s", *serverURL, *name)

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, header)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected, answering requests for %s", *lifetime)
	_ = conn.SetReadDeadline(time.Now().Add(*lifetime))

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		req, err := frame.DecodeRequest(data)
		if err != nil {
			log.Printf("Malformed request: %v", err)
			continue
		}
		log.Printf("Received %s id=%d payload=%s", req.Kind, req.ID, req.Payload)

		reply, err := frame.EncodeReply(req.Kind, req.ID, fakeResponse(req.Kind))
		if err != nil {
			log.Printf("Failed to encode reply: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
			log.Fatalf("Failed to send reply: %v", err)
		}
	}
}

func fakeResponse(kind probe.Kind) *probe.Response {
	var data any
	switch kind {
	case probe.KindResolve:
		data = []string{"192.0.2.1", "2001:db8::1"}
	case probe.KindPing:
		data = []probe.PingSample{
			{Code: probe.CodeEchoReply, Latency: *latency, Address: "192.0.2.1"},
			{Code: probe.CodeEchoReply, Latency: *latency + 1, Address: "192.0.2.1"},
		}
	case probe.KindTCPing:
		data = []probe.TCPingSample{{Success: true, Latency: *latency, Address: "192.0.2.1"}}
	case probe.KindMTR:
		data = [][]*probe.HopSample{{
			{Code: probe.CodeTimeExceeded, Latency: *latency / 2, Address: "198.51.100.1"},
			{Code: probe.CodeEchoReply, Latency: *latency, Address: "192.0.2.1"},
		}}
	case probe.KindSpeed:
		data = []probe.SpeedSample{{Point: 1000, Received: 1 << 20}, {Point: 2000, Received: 3 << 20}}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return &probe.Response{OK: false, Info: err.Error()}
	}
	return &probe.Response{OK: true, Result: &probe.Result{Resolved: "192.0.2.1", Data: raw}}
}
