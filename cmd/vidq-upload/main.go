package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/vidq/internal/adapter/rpc"
	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/uploader"
)

func main() {
	dir := flag.String("dir", ".", "directory whose files are uploaded")
	server := flag.String("server", "localhost:7280", "vidq gRPC address")
	threads := flag.Int("threads", 4, "parallel uploads")
	retries := flag.Int("retries", 1, "retries per file after a rejection or transport error")
	logLevel := flag.String("log-level", "info", "info or debug")
	flag.Parse()

	logger.Setup(*logLevel, os.Stderr)

	if *threads < 1 {
		logger.Error.Printf("-threads must be at least 1, got %d", *threads)
		os.Exit(2)
	}

	client, err := rpc.NewClient(*server)
	if err != nil {
		logger.Error.Printf("failed to create client: %v", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	up := uploader.New(client, *threads, uploader.WithRetries(*retries))
	results, err := up.UploadDir(ctx, *dir)
	if err != nil {
		logger.Error.Printf("upload failed: %v", err)
		os.Exit(1)
	}

	var uploaded, skipped, failed int
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
			fmt.Printf("FAIL  %s: %v\n", res.Path, res.Err)
		case res.Uploaded:
			uploaded++
			fmt.Printf("OK    %s\n", res.Path)
		case res.Skipped:
			skipped++
			fmt.Printf("SKIP  %s: %s\n", res.Path, res.Message)
		default:
			failed++
			fmt.Printf("FAIL  %s: %s\n", res.Path, res.Message)
		}
	}
	fmt.Printf("%d uploaded, %d skipped, %d failed\n", uploaded, skipped, failed)

	if failed > 0 {
		os.Exit(1)
	}
}
