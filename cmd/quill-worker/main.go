package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill-lsp/internal/analyzer"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := analyzer.Serve(os.Stdin, os.Stdout, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker error")
	}
}
