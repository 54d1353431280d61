// ABOUTME: Command-line client for the parrot gateway
// ABOUTME: Streams turn frames to the terminal with per-channel colors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/Jegama/calvinist-parrot-sub000/internal/client"
	"github.com/Jegama/calvinist-parrot-sub000/internal/turn"
)

var (
	progressColor = color.New(color.FgHiBlack)
	parrotColor   = color.New(color.FgGreen)
	calvinColor   = color.New(color.FgCyan)
	citeColor     = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: parrot-cli <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  ask <question>              Start a new conversation")
		fmt.Println("  continue <session> <msg>    Continue an existing conversation")
		fmt.Println("  show <session>              Print a conversation transcript")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  PARROT_URL        Gateway base URL (default http://localhost:8080)")
		fmt.Println("  PARROT_IDENTITY   Requester identity (default: generated)")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(gatewayURL(), identity(), nil)

	var err error
	switch os.Args[1] {
	case "ask":
		err = runAsk(ctx, c, os.Args[2:])
	case "continue":
		err = runContinue(ctx, c, os.Args[2:])
	case "show":
		err = runShow(ctx, c, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func gatewayURL() string {
	if url := os.Getenv("PARROT_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8080"
}

func identity() string {
	if id := os.Getenv("PARROT_IDENTITY"); id != "" {
		return id
	}
	return "cli-" + uuid.NewString()
}

func runAsk(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parrot-cli ask <question>")
	}
	question := strings.Join(args, " ")

	sessionID, err := c.CreateSession(ctx, question)
	if err != nil {
		return err
	}
	progressColor.Printf("session %s\n\n", sessionID)

	// The question is already persisted by session creation, so the
	// first turn runs as a continuation.
	return c.Chat(ctx, sessionID, question, true, renderFrame)
}

func runContinue(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: parrot-cli continue <session> <message>")
	}
	return c.Chat(ctx, args[0], strings.Join(args[1:], " "), false, renderFrame)
}

func runShow(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parrot-cli show <session>")
	}

	history, err := c.GetSession(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s\n\n", history.Session.Title)
	for _, msg := range history.Messages {
		switch msg.Kind {
		case "user":
			fmt.Printf("You: %s\n\n", msg.Body)
		case "assistant":
			parrotColor.Printf("Parrot: %s\n\n", msg.Body)
		case "reviewer":
			calvinColor.Printf("Calvin: %s\n\n", msg.Body)
		case "citations":
			citeColor.Printf("Further reading:\n%s\n\n", msg.Body)
		}
	}
	return nil
}

// renderFrame prints one streamed frame. Token frames print without a
// trailing newline so the reply assembles in place.
func renderFrame(frame turn.Frame) {
	switch frame.Type {
	case turn.TypeProgress:
		progressColor.Printf("· %s\n", frame.Title)
	case turn.TypeParrot:
		parrotColor.Print(frame.Content)
	case turn.TypeCalvin:
		calvinColor.Print(frame.Content)
	case turn.TypeGotQuestions:
		citeColor.Printf("\n\nFurther reading:\n%s\n", frame.Content)
	case turn.TypeError:
		errorColor.Printf("\nerror (%s): %s\n", frame.Stage, frame.Message)
	case turn.TypeDone:
		fmt.Println()
	}
}
