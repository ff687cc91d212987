package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
	"github.com/RasaHQ/semantic-map-embedding/mmapstore"
)

// newInspectCommand groups read-only lookups against a saved codebook
// or counts file, serving them from a memory-mapped view rather than
// reading the whole (possibly multi-gigabyte) file into process memory.
func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect a trained codebook or counts file without loading it fully into memory",
	}
	cmd.AddCommand(newInspectCodebookCommand())
	cmd.AddCommand(newInspectCountsCommand())
	return cmd
}

func newInspectCodebookCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "codebook <path> <cell>",
		Short: "Print one cell's prototype weights from a saved codebook file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cell, err := parsePositiveUint32AllowingZero(args[1], "cell")
			if err != nil {
				return err
			}

			cb, err := mmapstore.OpenCodebook(args[0])
			if err != nil {
				return err
			}
			defer cb.Close()

			if cell >= cb.Height*cb.Width {
				return semerr.Wrapf(semerr.Validation, "smap: cell %d is out of range for a %dx%d codebook", cell, cb.Width, cb.Height)
			}
			row := cb.Row(cell)
			if row == nil {
				return semerr.Wrapf(semerr.Format, "smap: codebook file is too short to contain cell %d", cell)
			}

			fmt.Printf("cell %d (%d dims):\n", cell, cb.InputDim)
			for i, v := range row {
				if i > 0 {
					fmt.Print(" ")
				}
				fmt.Printf("%g", v)
			}
			fmt.Println()
			return nil
		},
	}
}

func newInspectCountsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "counts <path> <term>",
		Short: "Print one term's per-cell occurrence counts from a saved counts file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			term, err := parsePositiveUint32AllowingZero(args[1], "term")
			if err != nil {
				return err
			}

			counts, err := mmapstore.OpenCounts(args[0])
			if err != nil {
				return err
			}
			defer counts.Close()

			if term >= counts.VocabularySize {
				return semerr.Wrapf(semerr.Validation, "smap: term %d is out of range for a vocabulary of size %d", term, counts.VocabularySize)
			}
			termCounts := counts.TermCounts(term)
			if termCounts == nil {
				return semerr.Wrapf(semerr.Format, "smap: counts file is too short to contain term %d", term)
			}

			var total uint64
			fmt.Printf("term %d (%dx%d grid):\n", term, counts.Width, counts.Height)
			for row := uint32(0); row < counts.Height; row++ {
				for col := uint32(0); col < counts.Width; col++ {
					if col > 0 {
						fmt.Print(" ")
					}
					c := termCounts[row*counts.Width+col]
					total += uint64(c)
					fmt.Printf("%d", c)
				}
				fmt.Println()
			}
			fmt.Printf("total: %d\n", total)
			return nil
		},
	}
}

func parsePositiveUint32AllowingZero(s, label string) (uint32, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, semerr.Wrapf(semerr.Validation, "smap: %s must be a non-negative integer, got %q", label, s)
	}
	return v, nil
}
