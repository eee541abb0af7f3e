package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"example.com/sitetracker/internal/outbox"
)

var (
	pushBrokers []string
	pushTopic   string
	pushSource  string
)

// pushCmd sends a sheet to the row stream consumed by the service
var pushCmd = &cobra.Command{
	Use:   "push <sheet.csv>",
	Short: "Publish a CSV sheet to the row stream",
	Long: `push writes the sheet as a single message to the row stream topic.
The running service merges it into its board as feed rows.`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("%s is empty", args[0])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	// A single message; flush it without waiting for a batch to fill.
	producer := outbox.NewKafkaProducer(pushBrokers, outbox.WithBatchTimeout(time.Millisecond))
	defer producer.Close()

	msg := rowMessage(args[0], pushSource, data)
	if err := producer.WriteMessages(ctx, pushTopic, msg); err != nil {
		return fmt.Errorf("publish rows: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", args[0], pushTopic)
	return nil
}

func rowMessage(path, source string, data []byte) kafka.Message {
	msg := kafka.Message{
		Key:   []byte(filepath.Base(path)),
		Value: data,
	}
	if source != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "source", Value: []byte(source)})
	}
	return msg
}
