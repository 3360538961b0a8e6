package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hiroya/socket-dm/internal/chat"
	"github.com/hiroya/socket-dm/pkg/protocol"
)

func main() {
	serverAddr := flag.String("server", "ws://localhost:8000", "Chat server address (e.g., ws://localhost:8000)")
	apiAddr := flag.String("api", "http://localhost:8000", "History service address")
	userID := flag.String("user", "", "Local user identifier")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().
		Level(zerolog.WarnLevel)
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	if *userID == "" {
		logger.Fatal().Msg("user id is required, use -user")
	}

	localHost := ""
	if u, err := url.Parse(*apiAddr); err == nil {
		localHost = u.Hostname()
	}

	client, err := chat.NewClient(chat.Config{
		ServerURL:   *serverAddr,
		HistoryURL:  *apiAddr,
		LocalUserID: *userID,
		LocalHost:   localHost,
		Logger:      logger,
		OnEvent:     printEvent,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create client")
	}
	defer client.Teardown()

	if err := client.Connect(); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to server")
	}
	fmt.Printf("Connected to %s as %s\n", *serverAddr, *userID)

	if err := client.Roster().Request(); err != nil {
		logger.Warn().Err(err).Msg("roster request failed")
	}

	fmt.Println("Commands: /users /open <peer> /close /msgs /seen /quit; anything else sends to the open peer")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !handleLine(client, line) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn().Err(err).Msg("error reading input")
	}

	client.Disconnect()
	fmt.Println("Disconnected from server")
}

// handleLine runs one input line. Returns false when the user quits.
func handleLine(client *chat.Client, line string) bool {
	conv := client.Conversation()

	switch {
	case line == "/quit" || line == "/exit":
		return false

	case line == "/users":
		for _, u := range client.Roster().Peers() {
			marker := ""
			if u.UserID == client.Session().LocalUserID() {
				marker = " (you)"
			}
			fmt.Printf("  %s  %s [%s]%s\n", u.UserID, u.Name, u.Status, marker)
		}

	case strings.HasPrefix(line, "/open "):
		peer := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
		conv.Open(peer)
		if conv.IsOpen() {
			fmt.Printf("Opened conversation with %s\n", peer)
		} else {
			fmt.Printf("Closed conversation with %s\n", peer)
		}

	case line == "/close":
		conv.Close()

	case line == "/msgs":
		printMessages(client)

	case line == "/seen":
		peer := conv.PeerID()
		if peer == "" {
			fmt.Println("No open conversation")
			break
		}
		if err := conv.MarkSeen(peer); err != nil {
			fmt.Printf("mark seen failed: %v\n", err)
		}

	default:
		peer := conv.PeerID()
		if peer == "" {
			fmt.Println("No open conversation, use /open <peer>")
			break
		}
		client.Typing().UpdateInput(peer, line)
		if err := conv.Send(peer, line); err != nil {
			fmt.Printf("send failed: %v\n", err)
		}
	}
	return true
}

func printMessages(client *chat.Client) {
	conv := client.Conversation()
	if conv.Loading() {
		fmt.Println("(loading history...)")
		return
	}
	pipeline := client.Pipeline()
	for _, m := range conv.Messages() {
		fmt.Printf("  [%s] %s (%s)", m.From, m.Body, m.Status())
		for _, seg := range pipeline.Segments(m.Body) {
			seg.Activate(func(u string, external bool) {
				if external {
					fmt.Printf("  ! external link: %s", u)
				}
			})
		}
		fmt.Println()
	}
}

func printEvent(ev protocol.Event) {
	switch e := ev.(type) {
	case *protocol.NewMessage:
		fmt.Printf("[%s]: %s\n", e.From, e.Message)
	case *protocol.MessageSent:
		fmt.Printf("(sent #%d to %s)\n", e.MessageID, e.To)
	case *protocol.MessageDelivered:
		fmt.Printf("(message #%d delivered)\n", e.MessageID)
	case *protocol.MessageSeen:
		fmt.Printf("(message #%d read)\n", e.MessageID)
	case *protocol.Typing:
		if e.IsTyping {
			fmt.Printf("*** %s is typing ***\n", e.From)
		}
	case *protocol.UserConnected:
		fmt.Printf("*** %s joined (%d online) ***\n", e.UserID, len(e.ConnectedUsers))
	case *protocol.UserDisconnected:
		fmt.Printf("*** %s left (%d online) ***\n", e.UserID, len(e.ConnectedUsers))
	}
}
