package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"notify-realtime/internal/chat"
	"notify-realtime/internal/models"
	"notify-realtime/internal/realtime"
)

var chatCmd = &cobra.Command{
	Use:   "chat <ROOM_ID>",
	Short: "Join a room and chat from stdin",
	Long: `Joins ROOM_ID on the push channel. Each stdin line is sent as a message.
Commands: /join <room>, /leave, /typing, /quit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		creds, err := requireLogin(ctx, store)
		if err != nil {
			return err
		}

		m := newManager()
		defer m.Close()
		m.OnConnectionChange(func(c models.ConnectionChange) {
			if c.Err != nil {
				fmt.Fprintf(os.Stderr, "* %s (attempt %d): %v\n", c.State, c.Attempt, c.Err)
				return
			}
			fmt.Fprintf(os.Stderr, "* %s\n", c.State)
		})
		m.OnError(func(err error) { fmt.Fprintf(os.Stderr, "! %v\n", err) })
		m.OnPresence(func(p models.PresenceEvent) {
			if p.Kind != models.PresenceJoined {
				fmt.Fprintf(os.Stderr, "* %s %s %s\n", p.UserID, p.Kind, p.RoomID)
			}
		})

		session := chat.NewSession(m, newAPIClient(store), chat.Options{
			SenderID:      creds.UserID,
			TypingTimeout: cfg.Client.TypingTimeout,
			Logger:        logr,
		})
		defer session.Close()
		session.OnUpdate(func(u chat.Update) {
			switch u.Kind {
			case chat.UpdateMessages:
				if u.Message != nil {
					fmt.Printf("[%s] %s: %s\n", u.Message.CreatedAt.Local().Format("15:04:05"), senderLabel(*u.Message), u.Message.Text)
				}
			case chat.UpdateTyping:
				if names := typingNames(session.TypingUsers(u.RoomID)); names != "" {
					fmt.Fprintf(os.Stderr, "* %s typing...\n", names)
				}
			}
		})

		if err := m.Connect(ctx, realtime.ConnectParams{RoomID: args[0], UserID: creds.UserID, Token: creds.Token}); err != nil {
			return err
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if quit := handleLine(ctx, m, session, line); quit {
					return nil
				}
			}
		}
	},
}

// rooms and sender are the parts of the manager and the chat session that
// stdin commands drive.
type rooms interface {
	CurrentRoom() string
	JoinRoom(roomID string)
	LeaveRoom(roomID string)
}

type sender interface {
	SetTyping(roomID string, isTyping bool)
	SendMessage(ctx context.Context, roomID, text string, messageType models.MessageType) (*models.Message, error)
}

func handleLine(ctx context.Context, m rooms, session sender, line string) bool {
	line = strings.TrimSpace(line)
	room := m.CurrentRoom()
	switch {
	case line == "":
	case line == "/quit":
		return true
	case line == "/typing":
		session.SetTyping(room, true)
	case line == "/leave":
		m.LeaveRoom(room)
	case strings.HasPrefix(line, "/join "):
		next := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
		if next == "" || next == room {
			return false
		}
		if room != "" {
			session.SetTyping(room, false)
			m.LeaveRoom(room)
		}
		m.JoinRoom(next)
	default:
		if room == "" {
			fmt.Fprintln(os.Stderr, "! not in a room, use /join <room>")
			return false
		}
		session.SetTyping(room, false)
		if _, err := session.SendMessage(ctx, room, line, models.MessageTypeText); err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
	}
	return false
}

func senderLabel(msg models.Message) string {
	if msg.SenderName != "" {
		return msg.SenderName
	}
	return msg.SenderID
}

func typingNames(users map[string]string) string {
	names := make([]string, 0, len(users))
	for id, name := range users {
		if name == "" {
			name = id
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
