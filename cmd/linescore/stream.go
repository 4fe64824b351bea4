package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"OddsPulse/internal/domain/models"
	"OddsPulse/internal/service/scorestream"
)

func newStreamCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Score JSON snapshots read line by line from stdin over the websocket",
		Long: `stream reads one recommend request per line, for example

  {"type":"asian","initialHandicap":0.5,"currentHandicap":0.75,"initialWater":0.95,"currentWater":0.85}

sends each as a frame to the server's scoring stream and prints one reply per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return runStream(ctx, server, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "OddsPulse base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall session timeout")
	return cmd
}

// runStream sends every frame from in, then waits for as many replies.
func runStream(ctx context.Context, server string, in io.Reader, out io.Writer) error {
	frames, err := readFrames(in)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return nil
	}

	wsURL, err := scorestream.StreamURL(server)
	if err != nil {
		return err
	}
	client := scorestream.New(wsURL, 0)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	replies, errs := client.Read(ctx)
	for _, f := range frames {
		if err := client.Send(f); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	for got := 0; got < len(frames); {
		select {
		case <-ctx.Done():
			return fmt.Errorf("stream: %d of %d replies: %w", got, len(frames), ctx.Err())
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			errs = nil
		case r, ok := <-replies:
			if !ok {
				return fmt.Errorf("stream closed after %d of %d replies", got, len(frames))
			}
			if err := enc.Encode(r); err != nil {
				return err
			}
			got++
		}
	}
	return nil
}

// readFrames parses one request per non-blank line and numbers the frames from 1.
func readFrames(in io.Reader) ([]*models.ScoreFrame, error) {
	var frames []*models.ScoreFrame
	sc := bufio.NewScanner(in)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		f := &models.ScoreFrame{ID: strconv.Itoa(len(frames) + 1)}
		if err := json.Unmarshal(b, &f.RecommendRequest); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return frames, nil
}
