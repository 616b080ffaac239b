package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeControls struct {
	mic, camera, screen bool
	sent                []string
	hungUp              bool
	failScreen          bool
}

func (f *fakeControls) ToggleMic() (bool, error)    { f.mic = !f.mic; return f.mic, nil }
func (f *fakeControls) ToggleCamera() (bool, error) { f.camera = !f.camera; return f.camera, nil }
func (f *fakeControls) ToggleScreen() (bool, error) {
	if f.failScreen {
		return false, errors.New("no screen source")
	}
	f.screen = !f.screen
	return f.screen, nil
}
func (f *fakeControls) SendChat(body string) error { f.sent = append(f.sent, body); return nil }
func (f *fakeControls) Hangup()                    { f.hungUp = true }

func typeText(m *CallModel, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestChatInputSendsOnEnter(t *testing.T) {
	ctl := &fakeControls{}
	m := NewCallModel("abc123", "Ann", ctl)

	typeText(m, "hello")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, []string{"hello"}, ctl.sent, "blank lines are not sent")
	assert.False(t, ctl.mic, "letters typed into chat are not shortcuts")
}

func TestControlModeToggles(t *testing.T) {
	ctl := &fakeControls{failScreen: true}
	m := NewCallModel("abc123", "Ann", ctl)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeText(m, "mc")
	assert.True(t, ctl.mic)
	assert.True(t, ctl.camera)
	assert.True(t, m.mic)

	typeText(m, "s")
	assert.Contains(t, m.View(), "no screen source")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.True(t, ctl.hungUp)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestPeersAndChatRender(t *testing.T) {
	m := NewCallModel("abc123", "Ann", &fakeControls{})
	assert.Contains(t, m.View(), "Waiting for others")

	m.Update(SelfMsg{ID: "self", Room: "abc123"})
	m.Update(PeerMsg{ID: "0123456789abcdef", State: "offer-sent"})
	m.Update(ChatMsg{Session: "0123456789abcdef", Sender: "Bob", Body: "hey", Time: time.Now()})
	m.Update(PeerMsg{ID: "0123456789abcdef", State: "connected", Media: "audio"})

	view := m.View()
	assert.Contains(t, view, "Bob")
	assert.Contains(t, view, "connected")
	assert.Contains(t, view, "hey")
	assert.NotContains(t, view, "Connecting...")

	m.Update(PeerMsg{ID: "0123456789abcdef", Left: true})
	assert.Contains(t, m.View(), "Waiting for others")
}

func TestHistoryReplacesChat(t *testing.T) {
	m := NewCallModel("r", "Ann", &fakeControls{})
	m.Update(ChatMsg{Sender: "x", Body: "old"})
	m.Update(HistoryMsg{{Sender: "y", Body: "first"}, {Sender: "z", Body: "second"}})

	require.Len(t, m.chat, 2)
	assert.Equal(t, "first", m.chat[0].Body)
}

func TestEndMsgCarriesError(t *testing.T) {
	m := NewCallModel("r", "Ann", &fakeControls{})
	boom := errors.New("gone")
	m.Update(EndMsg{Err: boom})
	assert.ErrorIs(t, m.Err(), boom)
	assert.Empty(t, m.View())
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	RenderHistory(&buf, []MeetingRow{
		{Code: "team-sync", When: time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)},
		{Code: "retro42", When: time.Date(2026, 10, 13, 16, 0, 0, 0, time.UTC)},
	})
	out := buf.String()
	assert.Contains(t, out, "team-sync")
	assert.Contains(t, out, "retro42")
	assert.Contains(t, out, "Meeting code")

	buf.Reset()
	RenderHistory(&buf, nil)
	assert.Contains(t, buf.String(), "No meetings yet")
}

func TestRoomInfoView(t *testing.T) {
	var buf bytes.Buffer
	RenderRoomInfo(&buf, "sleepy-otter-lantern", "https://meet.example/sleepy-otter-lantern", "Ada")
	out := buf.String()
	assert.Contains(t, out, "sleepy-otter-lantern")
	assert.Contains(t, out, "https://meet.example/sleepy-otter-lantern")
	assert.Contains(t, out, "Ada")
}
