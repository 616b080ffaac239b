package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// RoomInfoView is the banner shown before entering a call.
func RoomInfoView(room, link, name string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Joining as %s\n\n%s Room:    %s\n%s Invite:  %s",
		IconConnect, BoldStyle.Render(name),
		IconRoom, BoldStyle.Foreground(Primary).Render(room),
		IconPeer, MutedStyle.Render(link),
	)
	return box.Render(content)
}

func RenderRoomInfo(w io.Writer, room, link, name string) {
	fmt.Fprintln(w, RoomInfoView(room, link, name))
}
