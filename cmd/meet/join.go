package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pkt369/google-meeting-mock/internal/config"
	"github.com/pkt369/google-meeting-mock/internal/meeting"
	"github.com/pkt369/google-meeting-mock/internal/roomcode"
)

var (
	flagRoom   string
	flagName   string
	flagServer string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a meeting room",
	Long: `Join a meeting room on the signaling server. A room code is
generated when none is given.

Examples:
  meet join --name alice
  meet join --room kitten-waffle-stardust --name bob
  meet join --room demo --name carol --server ws://localhost:8080/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin()
	},
}

func runJoin() error {
	cfg, err := config.Load(config.Options{ServerURL: flagServer})
	if err != nil {
		return err
	}

	room := flagRoom
	if room == "" {
		room = roomcode.Generate()
	}

	name := flagName
	if name == "" {
		name = "guest"
	}

	orch := meeting.New(cfg.ServerURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := orch.JoinMeeting(ctx, room, name); err != nil {
		return err
	}
	defer orch.LeaveMeeting()

	fmt.Printf("joined room %s as %s (session %s)\n", room, name, orch.SessionID())

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nleaving meeting")
			return nil

		case event := <-orch.Events():
			switch event.Kind {
			case meeting.EventLocalMediaReady:
				fmt.Println("local media ready")
			case meeting.EventParticipantAdded:
				fmt.Printf("%s (%s) connected\n", event.UserName, event.SessionID)
			case meeting.EventParticipantRemoved:
				fmt.Printf("%s (%s) left\n", event.UserName, event.SessionID)
			case meeting.EventLinkStateChanged:
				slog.Debug("link state", "session", event.SessionID, "state", event.State)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "Room code (generated when empty)")
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name")
	joinCmd.Flags().StringVarP(&flagServer, "server", "s", "", "Signaling server websocket URL")
}
