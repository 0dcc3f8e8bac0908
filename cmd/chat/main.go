package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/avelichko/workchat/client"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	name := flag.String("name", "", "display name (registers a new account when set)")
	workspaceID := flag.Int64("workspace", 0, "workspace id")
	channelID := flag.Int64("channel", 0, "channel id (0 for the workspace-wide room)")
	flag.Parse()

	if *email == "" || *password == "" || *workspaceID == 0 {
		return errors.New("email, password and workspace are required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	rest, self, err := login(ctx, *server, *email, *name, *password)
	if err != nil {
		return err
	}

	socket, err := client.DialSocket(ctx, *server, rest.Token())
	if err != nil {
		return err
	}
	defer socket.Close()

	var channel *int64
	if *channelID != 0 {
		channel = channelID
		if err := socket.JoinChannel(ctx, *channelID); err != nil {
			return fmt.Errorf("join channel: %w", err)
		}
	} else {
		if err := socket.JoinWorkspace(ctx, *workspaceID); err != nil {
			return fmt.Errorf("join workspace: %w", err)
		}
	}

	controller := client.NewController(rest, *workspaceID, channel, self)
	roster := client.NewRoster()

	if err := controller.LoadHistory(ctx, 50); err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	for _, msg := range controller.Messages() {
		printMessage(msg)
	}

	fmt.Printf("Connected to %s as %s.\n", *server, self.Name)
	fmt.Println("Type to send. Commands: /edit <id> <text>, /delete <id>, /quit")

	go func() {
		defer cancel()
		err := socket.Listen(ctx, func(event client.Event) {
			controller.Apply(event)
			roster.Apply(event)
			printEvent(event, self, roster)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("listen: %v", err)
		}
	}()

	inputLoop(ctx, controller)
	return nil
}

func login(ctx context.Context, server, email, name, password string) (*client.REST, client.User, error) {
	if name != "" {
		return client.Register(ctx, server, email, name, password)
	}
	return client.Login(ctx, server, email, password)
}

func inputLoop(ctx context.Context, controller *client.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return

		case strings.HasPrefix(line, "/edit "):
			id, text, ok := parseIDCommand(strings.TrimPrefix(line, "/edit "))
			if !ok || text == "" {
				fmt.Println("usage: /edit <id> <text>")
				continue
			}
			if err := controller.Edit(ctx, id, text); err != nil {
				fmt.Printf("edit failed: %v\n", err)
			}

		case strings.HasPrefix(line, "/delete "):
			id, _, ok := parseIDCommand(strings.TrimPrefix(line, "/delete "))
			if !ok {
				fmt.Println("usage: /delete <id>")
				continue
			}
			if err := controller.Delete(ctx, id); err != nil {
				fmt.Printf("delete failed: %v\n", err)
			}

		default:
			if err := controller.Send(ctx, line); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}

func parseIDCommand(rest string) (int64, string, bool) {
	parts := strings.SplitN(strings.TrimSpace(rest), " ", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", false
	}
	text := ""
	if len(parts) == 2 {
		text = strings.TrimSpace(parts[1])
	}
	return id, text, true
}

func printEvent(event client.Event, self client.User, roster *client.Roster) {
	switch event.Type {
	case client.EventNewMessage:
		if event.Message != nil && event.Message.User.ID != self.ID {
			printMessage(*event.Message)
		}
	case client.EventMessageUpdated:
		if event.Message != nil {
			fmt.Printf("(edited) #%d %s: %s\n", event.Message.ID, event.Message.User.Name, event.Message.Content)
		}
	case client.EventMessageDeleted:
		fmt.Printf("(deleted) #%d\n", event.MessageID)
	case client.EventUserTyping, client.EventUserStopTyping:
		if line := roster.Line(); line != "" {
			fmt.Println(line)
		}
	case client.EventUserJoined:
		fmt.Printf("* %s joined\n", event.UserName)
	case client.EventUserLeft:
		fmt.Printf("* %s left\n", event.UserName)
	case client.EventError:
		fmt.Printf("! %s: %s\n", event.ErrCode, event.ErrMsg)
	}
}

func printMessage(msg client.Message) {
	fmt.Printf("#%d %s: %s\n", msg.ID, msg.User.Name, msg.Content)
}
