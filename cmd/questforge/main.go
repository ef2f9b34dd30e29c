// Command questforge runs a text adventure from the terminal. It generates
// the session content through the configured provider, then narrates player
// turns until the player quits or ends the story.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/questforge/qforge/config"
	"github.com/ZanzyTHEbar/questforge/qforge/content"
	"github.com/ZanzyTHEbar/questforge/qforge/engine"
	"github.com/ZanzyTHEbar/questforge/qforge/engine/adapters"
	"github.com/ZanzyTHEbar/questforge/qforge/game"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

const separator = "--------------------------------------------------"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file")
	sessionID := flag.String("session", "", "resume an existing session by id")
	theme := flag.String("theme", "", "theme preference for a new session")
	retryRun := flag.Bool("retry", false, "retry a failed session (needs -session)")
	flag.Parse()

	// A missing .env is fine; the environment may already carry the keys.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	level, err := zerolog.ParseLevel(cfg.QuestForge.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := adapters.NewChannelTransport(32)
	eng, err := engine.NewFactory(cfg, logger).Build(ctx, transport)
	if err != nil {
		logger.Error().Err(err).Msg("engine setup failed")
		return 1
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn().Err(err).Msg("close engine")
		}
	}()

	svc, err := game.NewService(eng.Store, eng.Orchestrator, eng.Gateway, transport, logger)
	if err != nil {
		logger.Error().Err(err).Msg("service setup failed")
		return 1
	}

	// Pipeline knobs follow the config file while the process runs.
	config.Watch(logger, func(fresh *config.Config) {
		eng.Orchestrator.UpdateTunables(engine.TunablesFromConfig(fresh))
	})

	// Narration is printed synchronously from replies below; the feed is
	// drained here so emits never back up, and setup progress is rendered
	// from it as it happens.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		renderProgress(transport)
	}()

	code := play(ctx, svc, *sessionID, *theme, *retryRun, logger)

	transport.Close()
	<-drained
	return code
}

// renderProgress prints setup progress from the event feed.
func renderProgress(transport *adapters.ChannelTransport) {
	messages, updates := transport.Messages(), transport.Updates()
	for messages != nil || updates != nil {
		select {
		case _, ok := <-messages:
			if !ok {
				messages = nil
			}
		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			switch {
			case update.FailureReason != "":
				fmt.Printf("  setup failed at %s\n", update.FailureStage)
			case update.Stage != "":
				fmt.Printf("  %s ready\n", update.Stage)
			default:
				fmt.Printf("  %s\n", progressLine(update.Status))
			}
		}
	}
}

// progressLine turns a pipeline status into the line shown while it runs.
func progressLine(status string) string {
	switch session.Status(status) {
	case session.StatusGeneratingWorld:
		return "preparing world..."
	case session.StatusGeneratingCharacter:
		return "creating your character..."
	case session.StatusGeneratingNPCs:
		return "populating the world..."
	case session.StatusGeneratingQuests:
		return "writing quests..."
	case session.StatusGeneratingItems:
		return "placing items..."
	case session.StatusFinalizing:
		return "setting the scene..."
	case session.StatusActive:
		return "ready."
	case session.StatusCompleted:
		return "adventure complete."
	default:
		return status
	}
}

// openSession starts, resumes, or retries a session depending on the flags.
func openSession(ctx context.Context, svc *game.Service, sessionID, theme string, retryRun bool) (*session.Session, error) {
	switch {
	case sessionID != "" && retryRun:
		fmt.Println("Retrying failed session...")
		return svc.Retry(ctx, sessionID)
	case sessionID != "":
		fmt.Println("Resuming session...")
		return svc.Resume(ctx, sessionID)
	default:
		fmt.Println("Generating your adventure, this takes a minute...")
		var prefs map[string]string
		if theme != "" {
			prefs = map[string]string{"theme": theme}
		}
		return svc.StartGame(ctx, prefs)
	}
}

func play(ctx context.Context, svc *game.Service, sessionID, theme string, retryRun bool, logger zerolog.Logger) int {
	sess, err := openSession(ctx, svc, sessionID, theme, retryRun)
	if err != nil {
		if sess != nil && sess.Status == session.StatusFailed {
			fmt.Println(separator)
			fmt.Printf("Setup failed at the %s stage: %s\n", sess.FailureStage, sess.FailureReason)
			fmt.Printf("Retry with: questforge -session %s -retry\n", sess.ID)
			return 1
		}
		if errors.Is(err, context.Canceled) && sess != nil {
			fmt.Printf("\nInterrupted. Resume with: questforge -session %s\n", sess.ID)
			return 0
		}
		logger.Error().Err(err).Msg("could not open session")
		return 1
	}

	printScene(sess)
	fmt.Println("Type your actions; /end concludes the story, /quit leaves it resumable.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Printf("\nInterrupted. Resume with: questforge -session %s\n", sess.ID)
			return 0
		case line, ok := <-lines:
			if !ok {
				fmt.Printf("\nResume with: questforge -session %s\n", sess.ID)
				return 0
			}
			input := strings.TrimSpace(line)
			switch input {
			case "":
				continue
			case "/quit":
				fmt.Printf("Resume with: questforge -session %s\n", sess.ID)
				return 0
			case "/end":
				ended, err := svc.End(ctx, sess.ID)
				if err != nil {
					logger.Error().Err(err).Msg("end session")
					return 1
				}
				fmt.Println(separator)
				fmt.Println(ended.Log[len(ended.Log)-1].Content)
				fmt.Println(separator)
				return 0
			}

			reply, err := svc.HandleTurn(ctx, sess.ID, input)
			if err != nil {
				if errors.Is(err, game.ErrNotActive) {
					logger.Error().Err(err).Msg("session cannot take turns")
					return 1
				}
				// Transient provider trouble; the player can just try again.
				logger.Warn().Err(err).Msg("turn failed")
				continue
			}
			fmt.Println(separator)
			fmt.Println(reply)
			fmt.Println(separator)
		}
	}
}

// printScene shows the title banner and the latest narration so the player
// knows where they stand, fresh start and resume alike.
func printScene(sess *session.Session) {
	if raw, ok := sess.Artifact(content.KindIntroduction); ok {
		if intro, err := content.DecodeIntroduction(raw); err == nil && intro.Title != "" {
			fmt.Println(separator)
			fmt.Printf("  %s\n", intro.Title)
		}
	}
	for i := len(sess.Log) - 1; i >= 0; i-- {
		if sess.Log[i].Role == session.RoleCharacter {
			fmt.Println(separator)
			fmt.Println(sess.Log[i].Content)
			fmt.Println(separator)
			break
		}
	}
}
