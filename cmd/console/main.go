package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wolfman30/voice-appointment-confirm/cmd/mainconfig"
	"github.com/wolfman30/voice-appointment-confirm/internal/app/bootstrap"
	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
	appconfig "github.com/wolfman30/voice-appointment-confirm/internal/config"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

// console plays the patient side of a confirmation call from the terminal.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	rt, err := bootstrap.BuildRuntime(ctx, cfg, logger, bootstrap.Options{
		LoadAWSConfig: mainconfig.LoadAWSConfig,
		VerifyRedis:   true,
	})
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()

	if err := run(ctx, rt.Service, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("console: %v", err)
	}
}

// run drives one conversation until EOF or "quit", then prints the gathered
// appointment details.
func run(ctx context.Context, svc conversation.Service, in io.Reader, out io.Writer) error {
	start, err := svc.StartConversation(ctx, conversation.StartRequest{Source: "console"})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Agent: %s\n", start.Message)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			break
		}

		resp, err := svc.ProcessMessage(ctx, conversation.MessageRequest{
			ConversationID: start.ConversationID,
			Message:        line,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Agent: %s\n", resp.Message)
		fmt.Fprintf(out, "       [stage=%s strategy=%s]\n", resp.Stage, resp.Strategy)
		printDetails(out, "       ", resp.Details)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	session, err := svc.EndConversation(ctx, start.ConversationID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	printDetails(out, "", session.Details)
	return nil
}

func printDetails(out io.Writer, indent string, d appointment.Details) {
	fmt.Fprintf(out, "%sPatient: %s\n%sDate: %s\n%sTime: %s\n%sDoctor: %s\n%sConfirmed: %t\n",
		indent, d.PatientName, indent, d.Date, indent, d.Time, indent, d.Doctor, indent, d.Confirmed)
}
