/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// WebSocket client for watching the streaming API
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/hashradar/pkg/models"
	"github.com/carverauto/hashradar/pkg/stream"
)

func main() {
	// Parse command line flags
	var (
		host    = flag.String("host", "localhost:8090", "API server host:port")
		apiKey  = flag.String("api-key", "", "API key for authentication")
		topics  = flag.String("topics", models.TopicDevices+","+models.TopicMetrics, "Comma-separated topics to subscribe to")
		secure  = flag.Bool("secure", false, "Use WSS instead of WS")
		envFile = flag.String("env-file", "/etc/hashradar/api.env", "Path to API environment file")
	)
	flag.Parse()

	// Get API key from environment if not provided. The server only checks
	// it when one is configured, so an empty key is not an error here.
	if *apiKey == "" {
		*apiKey = os.Getenv("API_KEY")

		if *apiKey == "" && *envFile != "" {
			*apiKey = readAPIKeyFromEnvFile(*envFile)
		}
	}

	// Build WebSocket URL
	scheme := "ws"
	if *secure {
		scheme = "wss"
	}

	u := url.URL{
		Scheme: scheme,
		Host:   *host,
		Path:   "/api/ws",
	}

	log.Printf("Connecting to %s", u.String())

	// Set up headers with authentication
	headers := make(map[string][]string)
	if *apiKey != "" {
		headers["X-API-Key"] = []string{*apiKey}
	}

	// Connect to WebSocket
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		if resp != nil {
			log.Printf("HTTP response status: %s", resp.Status)
		}
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	wanted := splitTopics(*topics)
	log.Printf("Connected successfully. Subscribing to: %s", strings.Join(wanted, ", "))

	// Handle graceful shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	// Channel for receiving messages
	messages := make(chan stream.Message, 100)
	done := make(chan struct{})

	// Start goroutine to read messages
	go func() {
		defer close(done)
		for {
			var msg stream.Message
			err := conn.ReadJSON(&msg)
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
			messages <- msg
		}
	}()

	// Statistics
	var (
		frameCount int
		errorCount int
		startTime  = time.Now()
	)

	// Main event loop
	for {
		select {
		case msg := <-messages:
			switch msg.Type {
			case stream.MessageTypeWelcome:
				log.Printf("Server says hello: %v", msg.Data)

				for _, topic := range wanted {
					sub := map[string]string{"type": "subscribe", "topic": topic}
					if err := conn.WriteJSON(sub); err != nil {
						log.Fatalf("Failed to subscribe to %s: %v", topic, err)
					}
				}

			case stream.MessageTypeCapabilities:
				// Informational; the interesting part already went out
				// with the welcome frame.

			case stream.MessageTypeSubscribed:
				log.Printf("Subscribed to %s", msg.Topic)

			case stream.MessageTypeData:
				frameCount++
				// Pretty print the data
				data, _ := json.MarshalIndent(msg.Data, "", "  ")
				fmt.Printf("\n=== %s frame %d (%.3fs) ===\n%s\n",
					msg.Topic, frameCount, time.Since(startTime).Seconds(), string(data))

			case stream.MessageTypeError:
				errorCount++
				log.Printf("ERROR: %s", msg.Error)

			case stream.MessageTypePing:
				// Server-level liveness probe; answer or get dropped.
				pong := map[string]string{"type": "pong"}
				if err := conn.WriteJSON(pong); err != nil {
					log.Printf("Failed to answer ping: %v", err)
				}

			default:
				log.Printf("Unknown message type: %s", msg.Type)
			}

		case <-interrupt:
			log.Println("\nReceived interrupt signal, closing connection...")
			log.Printf("   Total frames: %d", frameCount)
			log.Printf("   Total errors: %d", errorCount)
			log.Printf("   Duration: %s", time.Since(startTime))

			// Cleanly close the connection
			err := conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Printf("Error sending close message: %v", err)
			}

			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return

		case <-done:
			return
		}
	}
}

func splitTopics(raw string) []string {
	parts := strings.Split(raw, ",")
	topics := make([]string, 0, len(parts))

	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			topics = append(topics, t)
		}
	}

	return topics
}

// readAPIKeyFromEnvFile reads the API_KEY from an environment file
func readAPIKeyFromEnvFile(envFile string) string {
	file, err := os.Open(envFile)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Look for API_KEY=value
		if strings.HasPrefix(line, "API_KEY=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading env file %s: %v", envFile, err)
	}

	return ""
}
