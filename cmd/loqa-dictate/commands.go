package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-dictate/internal/capture"
	"github.com/loqalabs/loqa-dictate/internal/eventstore"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printDevices(cmd.OutOrStdout())
		},
	}
}

func printDevices(w io.Writer) error {
	devices, err := capture.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "No audio input devices found.")
		return errors.New("no input devices")
	}

	table := newTable(w, []string{"Index", "Name", "Host API", "Channels", "Rate", "Default"})
	for _, d := range devices {
		marker := ""
		if d.Default {
			marker = "*"
		}
		table.Append([]string{
			strconv.Itoa(d.Index),
			d.Name,
			d.HostAPI,
			strconv.Itoa(d.Channels),
			fmt.Sprintf("%.0f", d.SampleRate),
			marker,
		})
	}
	table.Render()
	fmt.Fprintln(w, "\nUse --device <index> to select.")
	return nil
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit      int
		utterance  string
		eventLimit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently dictated utterances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.EventStore.RetentionMode == "ephemeral" {
				fmt.Fprintln(cmd.OutOrStdout(), "History is disabled (event_store.retention_mode is ephemeral).")
				return nil
			}
			logger := newLogger(cfg.Telemetry, os.Stderr)
			ctx := context.Background()
			store, err := eventstore.Open(ctx, cfg.EventStore, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if utterance != "" {
				return printEvents(ctx, cmd.OutOrStdout(), store, utterance, eventLimit)
			}
			return printHistory(ctx, cmd.OutOrStdout(), store, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of utterances to show")
	cmd.Flags().StringVar(&utterance, "utterance", "", "Show the event timeline of one utterance")
	cmd.Flags().IntVar(&eventLimit, "events", 100, "Number of events to show with --utterance")
	return cmd
}

func printHistory(ctx context.Context, w io.Writer, store *eventstore.Store, limit int) error {
	utterances, err := store.ListUtterances(ctx, limit)
	if err != nil {
		return fmt.Errorf("list utterances: %w", err)
	}
	table := newTable(w, []string{"ID", "Started", "Duration", "Source", "Text"})
	for _, u := range utterances {
		duration := "-"
		if !u.EndedAt.IsZero() {
			duration = fmt.Sprintf("%.1f s", u.EndedAt.Sub(u.StartedAt).Seconds())
		}
		table.Append([]string{
			u.ID,
			u.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			u.Source,
			truncate(u.Text, 60),
		})
	}
	table.Render()
	return nil
}

func printEvents(ctx context.Context, w io.Writer, store *eventstore.Store, id string, limit int) error {
	events, err := store.ListUtteranceEvents(ctx, id, limit)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	table := newTable(w, []string{"Time", "Type", "Text"})
	for _, e := range events {
		table.Append([]string{
			e.CreatedAt.Local().Format("15:04:05.000"),
			e.Type,
			e.Text,
		})
	}
	table.Render()
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	return table
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
