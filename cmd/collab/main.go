// Collab: a conversation memory and capability-orchestration agent.
//
// It records chat history in an embedded SQLite store and routes requests
// to capabilities (summarization, action items, history search) through a
// language-model collaborator.
//
// Usage:
//
//	collab serve   # Run the agent against the configured transport
//	collab chat    # Interactive local console conversation
//	collab mcp     # Expose the operational tools as an MCP server (stdio)
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	"github.com/teddyam/collaborator-agent/internal/config"
	"github.com/teddyam/collaborator-agent/internal/reqctx"
	"github.com/teddyam/collaborator-agent/internal/router"
	collabserver "github.com/teddyam/collaborator-agent/internal/server"
	"github.com/teddyam/collaborator-agent/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	cfg.ConfigureLogging()

	var err error
	switch os.Args[1] {
	case "serve", "chat":
		// The console transport is the only one built in; "serve" runs
		// the same loop so a deployment without a platform adapter still
		// has a working agent.
		err = runChat(cfg)
	case "mcp":
		err = runMCP(cfg)
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("collab v%s\n", collabserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runChat runs the interactive console transport: each line becomes a
// request with a fabricated activity id, routed like any platform message.
func runChat(cfg *config.Config) error {
	app, cleanup, err := collabserver.NewApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	conversationKey := "console:" + uuid.NewString()
	userName := os.Getenv("USER")
	if userName == "" {
		userName = "you"
	}
	userID := "console-user"

	fmt.Printf("collab v%s — local console chat (conversation %s)\n", collabserver.Version, conversationKey)
	fmt.Println("Type a message, or 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		activityID := uuid.NewString()
		now := time.Now()

		app.Store.AppendMessage(storage.AppendMessageParams{
			ConversationID:   conversationKey,
			Role:             storage.RoleUser,
			Name:             userName,
			Content:          text,
			SourceActivityID: activityID,
		})

		app.Registry.Put(activityID, &reqctx.RequestContext{
			Text:            text,
			ConversationKey: conversationKey,
			UserID:          userID,
			UserName:        userName,
			IsPersonalChat:  true,
			CurrentDateTime: now,
			TimeZone:        now.Location(),
			Participants:    []reqctx.Participant{{ID: userID, Name: userName}},
		})

		result, err := app.Router.ProcessRequest(context.Background(), activityID)
		app.Registry.Remove(activityID)
		if err != nil {
			log.WithError(err).Error("request failed")
			fmt.Println("Sorry, I couldn't process that request.")
			continue
		}

		fmt.Println(result.ResponseText)
		for _, c := range result.Citations {
			fmt.Printf("  ↳ %s\n", c.DeepLink)
		}

		app.Store.AppendMessage(storage.AppendMessageParams{
			ConversationID: conversationKey,
			Role:           storage.RoleAssistant,
			Name:           cfg.BotName,
			Content:        result.ResponseText,
		})

		// Keep the conversation snapshot current for the debug surface.
		snapshot, _ := json.Marshal(map[string]any{
			"last_activity_id": activityID,
			"last_capability":  capabilityName(result),
			"updated_at":       storage.Now(),
		})
		if err := app.Store.SaveConversationSnapshot(conversationKey, string(snapshot)); err != nil {
			log.WithError(err).Warn("snapshot save failed")
		}
	}

	return scanner.Err()
}

func capabilityName(result *router.DelegationResult) string {
	if result.Capability == nil {
		return ""
	}
	return result.Capability.String()
}

// runMCP serves the operational tools over stdio.
func runMCP(cfg *config.Config) error {
	app, cleanup, err := collabserver.NewApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return server.ServeStdio(collabserver.NewMCPServer(app))
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `collab v%s — conversation memory and capability orchestration agent

Usage:
  collab serve   Run the agent loop (console transport)
  collab chat    Interactive local console conversation
  collab mcp     Serve the operational tools over MCP (stdio transport)

Configuration (environment, .env honored):
  COLLAB_DATA_DIR       SQLite data directory (default: ~/.collab)
  OPENAI_BASE_URL       OpenAI-compatible endpoint (default: public OpenAI)
  OPENAI_API_KEY        API key for the language model
  OPENAI_MODEL          Model name (default: gpt-4o-mini)
  SEMANTIC_SEARCH_URL   Optional remote semantic search index
  COLLAB_LOG_LEVEL      Log level (default: info)
`, collabserver.Version)
}
