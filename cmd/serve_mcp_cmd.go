package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-memory/internal/mcpserver"
)

func serveMCPCmd() *cobra.Command {
	var sessionKey, actorID, actorType, chatType string
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Expose memory_search, memory_recall, memory_get, and actor_lookup over MCP on stdio",
		Run: func(cmd *cobra.Command, args []string) {
			ms, cfg, err := loadMemoryStore()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			defer ms.Close()

			srv := mcpserver.New("memindex", "0.1.0", ms, mcpserver.Config{
				Tools:      toolConfig(cfg),
				SessionKey: sessionKey,
				ActorID:    actorID,
				ActorType:  actorType,
				ChatType:   chatType,
			})

			if err := mcpserver.ServeStdio(srv); err != nil {
				fmt.Fprintf(os.Stderr, "Error: serve-mcp: %s\n", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&sessionKey, "session-key", "", "ambient session key attached to every tool call")
	cmd.Flags().StringVar(&actorID, "actor-id", "", "ambient actor id attached to every tool call")
	cmd.Flags().StringVar(&actorType, "actor-type", "", "ambient actor type: human or agent")
	cmd.Flags().StringVar(&chatType, "chat-type", "direct", "ambient chat type: direct or group")
	return cmd
}
