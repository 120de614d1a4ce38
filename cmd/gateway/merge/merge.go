package mergecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/immanlabs/gateway/pkg/store"
)

const mergeLongDesc string = `Merge one or more source conversation databases into a target.

Chats are deduplicated by ID: a chat that already exists in the
target is skipped, everything else is copied with its messages and
timestamps intact.

Examples:
  gateway merge laptop.db desktop.db
  gateway merge --sqlite merged.db ~/backups/chats-*.db`

const mergeShortDesc string = "Merge SQLite conversation databases"

type mergeCommander struct {
	sqlitePath string
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge [sources...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "chats.db", "Path to target SQLite database")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, cmd *cobra.Command, sources []string) error {
	target, err := store.NewSQLiteStore(c.sqlitePath)
	if err != nil {
		return fmt.Errorf("could not open target database %s: %w", c.sqlitePath, err)
	}
	defer target.Close()

	var totalNew, totalDuped int

	for _, srcPath := range sources {
		source, err := store.NewSQLiteStore(srcPath)
		if err != nil {
			return fmt.Errorf("could not open source database %s: %w", srcPath, err)
		}

		chats, err := source.AllChats(ctx)
		if err != nil {
			source.Close()
			return fmt.Errorf("could not list chats from %s: %w", srcPath, err)
		}

		var srcNew, srcDuped int
		for _, chat := range chats {
			isNew, err := target.Import(ctx, chat)
			if err != nil {
				source.Close()
				return fmt.Errorf("could not import chat %s: %w", chat.ID, err)
			}
			if isNew {
				srcNew++
			} else {
				srcDuped++
			}
		}
		source.Close()

		cmd.Printf("%s: %d new, %d duplicate\n", srcPath, srcNew, srcDuped)
		totalNew += srcNew
		totalDuped += srcDuped
	}

	cmd.Printf("merged into %s: %d new, %d duplicate\n", c.sqlitePath, totalNew, totalDuped)
	return nil
}
