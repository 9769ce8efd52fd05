package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func actorLookupCmd() *cobra.Command {
	var limit int
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "actor-lookup <query>",
		Short: "Resolve a name or alias fragment to canonical actor ids",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ms, _, err := loadMemoryStore()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			defer ms.Close()

			actors, err := ms.LookupActors(context.Background(), args[0], limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: actor lookup failed: %s\n", err)
				os.Exit(1)
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(actors, "", "  ")
				fmt.Println(string(data))
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ACTOR ID\tTYPE\tDISPLAY NAME")
			for _, a := range actors {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.ActorID, a.ActorType, a.DisplayName)
			}
			w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum actors to return")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
