// Command chatcli drives a chat session from the terminal against a running classifier.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/moodcine/backend/internal/config"
	"github.com/moodcine/backend/internal/logging"
	modelchat "github.com/moodcine/backend/internal/model/chat"
	"github.com/moodcine/backend/internal/service/chat"
	"github.com/moodcine/backend/internal/service/classifier"
	"github.com/moodcine/backend/internal/service/tmdb"
)

var (
	classifierURL string
	withPosters   bool
	timeout       time.Duration
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "chatcli",
	Short: "Talk to the mood classifier from a terminal",
	Long: `chatcli runs one chat session locally and sends every line read from stdin
to the classifier. Recommendations are printed with poster links when TMDB is configured.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.Init(logging.Config{Level: level, Format: "console"})
		return nil
	},
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&classifierURL, "classifier-url", "", "classifier endpoint (default CLASSIFIER_URL)")
	rootCmd.Flags().BoolVar(&withPosters, "posters", true, "resolve posters through TMDB when TMDB_API_KEY is set")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request timeout (default CHAT_REQUEST_TIMEOUT)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] 无法加载 .env，改用系统环境变量: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if classifierURL != "" {
		cfg.Classifier.URL = classifierURL
	}
	if timeout > 0 {
		cfg.Chat.RequestTimeout = timeout
	}

	var posters chat.PosterLookup
	if withPosters && cfg.TMDB.Enabled() {
		client, err := tmdb.NewClient(cfg.TMDB, nil)
		if err != nil {
			return err
		}
		posters = client
	}

	session := chat.NewSession(classifier.NewClient(cfg.Classifier, nil), posters, chat.Options{
		RequestTimeout:    cfg.Chat.RequestTimeout,
		PosterConcurrency: cfg.Chat.PosterConcurrency,
	})

	return converse(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout())
}

// converse feeds input lines to session until EOF or ctx ends.
func converse(ctx context.Context, session *chat.Session, in io.Reader, out io.Writer) error {
	sink := terminalSink(out)
	session.Greet(sink)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		result := session.Submit(ctx, scanner.Text(), sink)
		logging.Debug().Str("outcome", string(result.Outcome)).Int("turns", result.Snapshot.TurnCount).
			Str("phase", string(result.Snapshot.Phase)).Err(result.Err).Msg("[chatcli] submitted")
	}
}

func terminalSink(out io.Writer) chat.EventFunc {
	return func(e modelchat.Event) {
		switch e.Type {
		case modelchat.EventMessage:
			if e.Message.Speaker == modelchat.SpeakerBot {
				fmt.Fprintf(out, "bot: %s\n", indent(e.Message.Text))
			}
		case modelchat.EventIndicatorShow:
			fmt.Fprintln(out, "bot is typing...")
		case modelchat.EventPosters:
			for _, p := range e.Posters {
				fmt.Fprintf(out, "  [poster] %s %s\n", p.Title, p.URL)
			}
		}
	}
}

// indent aligns continuation lines under the "bot: " prefix.
func indent(text string) string {
	return strings.ReplaceAll(text, "\n", "\n     ")
}
