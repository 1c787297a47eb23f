package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"colonynav.ai/internal/persistence/segmentdb"
	"colonynav.ai/internal/persistence/segments"
)

var segmentsFlags struct {
	db   string
	slot int
}

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Inspect a SQLite segment store",
	Long: `Lists every stored slot with its compressed and decoded size. With --slot the
decoded JSON document of that slot is printed instead.`,
	RunE: inspectSegments,
}

func init() {
	f := segmentsCmd.Flags()
	f.StringVar(&segmentsFlags.db, "db", "", "sqlite segment store")
	f.IntVar(&segmentsFlags.slot, "slot", -1, "print the decoded document of one slot")
	_ = segmentsCmd.MarkFlagRequired("db")
}

func inspectSegments(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(segmentsFlags.db); err != nil {
		return err
	}
	db, err := segmentdb.Open(segmentsFlags.db, segments.DefaultLimits())
	if err != nil {
		return err
	}
	defer db.Close()

	codec, err := segments.NewCodec()
	if err != nil {
		return err
	}
	defer codec.Close()

	out := cmd.OutOrStdout()
	if segmentsFlags.slot >= 0 {
		blob, err := db.Load(segmentsFlags.slot)
		if err != nil {
			return err
		}
		if len(blob) == 0 {
			return fmt.Errorf("slot %d is empty", segmentsFlags.slot)
		}
		doc, err := codec.Decode(blob)
		if err != nil {
			return fmt.Errorf("slot %d: %w", segmentsFlags.slot, err)
		}
		_, err = fmt.Fprintln(out, string(doc))
		return err
	}

	slots, err := db.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tBYTES\tDECODED\tUPDATED")
	for _, s := range slots {
		decoded := "corrupt"
		if blob, err := db.Load(s.ID); err == nil {
			if doc, err := codec.Decode(blob); err == nil {
				decoded = fmt.Sprint(len(doc))
			}
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", s.ID, s.Bytes, decoded, s.UpdatedAt)
	}
	return tw.Flush()
}
