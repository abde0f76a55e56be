// Package main provides a CLI client for watching a post's live feed over WebSocket.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	email := flag.String("email", "", "User email (omit for an anonymous connection)")
	password := flag.String("password", "", "User password")
	postID := flag.Uint("post", 1, "Post ID to watch")
	term := flag.String("search", "", "Optional search term to send after connecting")
	heartbeat := flag.Duration("heartbeat", 10*time.Second, "Presence heartbeat interval")
	flag.Parse()

	log.Printf("👀 Watching feed for post %d on %s", *postID, *host)

	rawQuery := ""
	if *email != "" {
		token, err := login(*host, *email, *password)
		if err != nil {
			log.Fatalf("❌ Login failed: %v", err)
		}
		ticket, err := getTicket(*host, token)
		if err != nil {
			log.Fatalf("❌ Ticket issuance failed: %v", err)
		}
		rawQuery = "ticket=" + ticket
		log.Printf("✅ Authenticated as %s", *email)
	} else {
		log.Printf("Connecting anonymously (expect the logged-out feed state)")
	}

	u := url.URL{
		Scheme:   "ws",
		Host:     *host,
		Path:     fmt.Sprintf("/api/ws/feed/%d", *postID),
		RawQuery: rawQuery,
	}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("❌ Dial failed: %v", err)
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Connection closed: %v", err)
				return
			}
			printMessage(raw)
		}
	}()

	if *term != "" {
		send(conn, map[string]string{"type": "search", "term": *term})
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// Anonymous connections may heartbeat too; the server ignores them.
			send(conn, map[string]string{"type": "heartbeat"})
		case <-interrupt:
			log.Println("🛑 Interrupted by user")
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

func send(conn *websocket.Conn, msg map[string]string) {
	raw, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		log.Printf("Write failed: %v", err)
	}
}

func printMessage(raw []byte) {
	var envelope struct {
		Type  string          `json:"type"`
		State string          `json:"state"`
		Term  string          `json:"term"`
		Posts json.RawMessage `json:"posts"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("<- %s", raw)
		return
	}

	switch envelope.Type {
	case "search_results":
		log.Printf("<- search %q: %s", envelope.Term, envelope.State)
		if len(envelope.Posts) > 0 {
			log.Printf("   %s", envelope.Posts)
		}
	default:
		log.Printf("<- %s", raw)
	}
}

func login(host, email, password string) (string, error) {
	loginURL := fmt.Sprintf("http://%s/api/auth/login", host)
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	body, _ := json.Marshal(payload)

	resp, err := http.Post(loginURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Token, nil
}

func getTicket(host, token string) (string, error) {
	ticketURL := fmt.Sprintf("http://%s/api/ws/ticket", host)
	req, _ := http.NewRequest(http.MethodPost, ticketURL, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Ticket, nil
}
