package cmd

import (
	"fmt"
	"strings"

	"github.com/andresmejia3/chroma/internal/decode"
	"github.com/andresmejia3/chroma/internal/types"
	"github.com/andresmejia3/chroma/internal/utils"
	"github.com/spf13/cobra"
)

var labelCmd = &cobra.Command{
	Use:   "label <channel> <payload> <display_text> [spoken_text]",
	Short: "Store the text shown and spoken when a payload is found on a channel",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if err := requireDB(); err != nil {
			return err
		}
		ch, payload, entry, err := parseLabelArgs(args)
		if err != nil {
			utils.ShowError("Invalid label", err, nil)
			return err
		}

		if err := DB.UpsertLookup(cmd.Context(), ch, payload, entry); err != nil {
			utils.ShowError("Failed to store label", err, nil)
			return err
		}
		fmt.Printf("✅ %s payload '%s' labeled as '%s'\n", ch, payload, entry.DisplayText)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
}

// parseLabelArgs validates the label arguments. The spoken text defaults to
// the display text.
func parseLabelArgs(args []string) (types.Channel, string, types.LookupEntry, error) {
	ch, err := types.ParseChannel(args[0])
	if err != nil {
		return 0, "", types.LookupEntry{}, err
	}
	// Lookups are keyed by the normalized payload.
	payload := decode.Normalize(args[1])
	if payload == "" {
		return 0, "", types.LookupEntry{}, fmt.Errorf("payload must not be empty")
	}
	entry := types.LookupEntry{DisplayText: args[2], SpokenText: args[2]}
	if len(args) == 4 && strings.TrimSpace(args[3]) != "" {
		entry.SpokenText = args[3]
	}
	return ch, payload, entry, nil
}
