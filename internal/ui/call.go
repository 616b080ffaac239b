package ui

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const maxChatLines = 200

// Controls is what the call view drives.
type Controls interface {
	ToggleMic() (bool, error)
	ToggleCamera() (bool, error)
	ToggleScreen() (bool, error)
	SendChat(body string) error
	Hangup()
}

// Messages the call session posts to the view.
type (
	// PeerMsg reports a participant's link state; Left removes it.
	PeerMsg struct {
		ID    string
		State string
		Media string
		Left  bool
	}

	ChatMsg struct {
		Session string
		Sender  string
		Body    string
		Time    time.Time
	}

	// HistoryMsg replaces the chat log with the room's history.
	HistoryMsg []ChatMsg

	// StatusMsg sets the status line, e.g. while reconnecting.
	StatusMsg string

	// SelfMsg carries the identity assigned by the server.
	SelfMsg struct {
		ID   string
		Room string
	}

	// EndMsg closes the view with a final message.
	EndMsg struct{ Err error }
)

type participant struct {
	id    string
	state string
	media []string
}

// CallModel is the bubbletea model of an ongoing call.
type CallModel struct {
	ctl  Controls
	name string
	room string
	self string

	peers  map[string]*participant
	names  map[string]string
	chat   []ChatMsg
	status string

	input   textinput.Model
	spinner spinner.Model
	mic     bool
	camera  bool
	screen  bool
	errMsg  string

	width    int
	quitting bool
	err      error
}

func NewCallModel(room, name string, ctl Controls) *CallModel {
	in := textinput.New()
	in.Placeholder = "Type a message, enter to send, tab for controls"
	in.CharLimit = 1000
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		ctl:     ctl,
		name:    name,
		room:    room,
		peers:   make(map[string]*participant),
		names:   make(map[string]string),
		status:  "Connecting...",
		input:   in,
		spinner: s,
	}
}

// Err is the reason the call ended, nil when the user hung up.
func (m *CallModel) Err() error { return m.err }

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-8)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SelfMsg:
		m.self, m.room = msg.ID, msg.Room
		m.status = ""

	case StatusMsg:
		m.status = string(msg)

	case PeerMsg:
		if msg.Left {
			delete(m.peers, msg.ID)
			break
		}
		p, ok := m.peers[msg.ID]
		if !ok {
			p = &participant{id: msg.ID}
			m.peers[msg.ID] = p
		}
		if msg.State != "" {
			p.state = msg.State
		}
		if msg.Media != "" && !slices.Contains(p.media, msg.Media) {
			p.media = append(p.media, msg.Media)
		}

	case HistoryMsg:
		m.chat = append([]ChatMsg(nil), msg...)
		for _, c := range msg {
			m.names[c.Session] = c.Sender
		}

	case ChatMsg:
		m.chat = append(m.chat, msg)
		if len(m.chat) > maxChatLines {
			m.chat = m.chat[len(m.chat)-maxChatLines:]
		}
		m.names[msg.Session] = msg.Sender

	case EndMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *CallModel) key(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "ctrl+c":
		return m.hangup()
	case "tab", "esc":
		if m.input.Focused() {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
		return m, nil
	}

	if m.input.Focused() {
		if k.Type == tea.KeyEnter {
			body := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if body != "" {
				m.report(m.ctl.SendChat(body))
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(k)
		return m, cmd
	}

	switch k.String() {
	case "m":
		on, err := m.ctl.ToggleMic()
		m.mic = on && err == nil
		m.report(err)
	case "c":
		on, err := m.ctl.ToggleCamera()
		m.camera = on && err == nil
		m.report(err)
	case "s":
		on, err := m.ctl.ToggleScreen()
		m.screen = on && err == nil
		m.report(err)
	case "q":
		return m.hangup()
	}
	return m, nil
}

func (m *CallModel) hangup() (tea.Model, tea.Cmd) {
	m.ctl.Hangup()
	m.quitting = true
	return m, tea.Quit
}

func (m *CallModel) report(err error) {
	if err != nil {
		m.errMsg = err.Error()
	} else {
		m.errMsg = ""
	}
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s  %s %s\n", IconRoom, TitleStyle.Render(m.room), IconPeer, BoldStyle.Render(m.name))
	if m.status != "" {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), WarningStyle.Render(m.status))
	}
	b.WriteString("\n")

	b.WriteString(PanelStyle.Render(m.participantsView()))
	b.WriteString("\n")
	b.WriteString(ChatPanelStyle.Render(m.chatView()))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.controlsView())
	if m.errMsg != "" {
		b.WriteString("\n" + ErrorStyle.Render(IconError+" "+m.errMsg))
	}
	return b.String()
}

func (m *CallModel) participantsView() string {
	if len(m.peers) == 0 {
		return MutedStyle.Render(IconWaiting + " Waiting for others to join...")
	}
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		p := m.peers[id]
		state := MutedStyle.Render(p.state)
		if p.state == "connected" {
			state = SuccessStyle.Render(p.state)
		}
		line := fmt.Sprintf("%s %s  %s", IconPeer, m.displayName(id), state)
		for _, kind := range p.media {
			line += " " + mediaIcon(kind)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *CallModel) chatView() string {
	if len(m.chat) == 0 {
		return MutedStyle.Render(IconChat + " No messages yet")
	}
	start := max(0, len(m.chat)-10)
	lines := make([]string, 0, len(m.chat)-start)
	for _, c := range m.chat[start:] {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			MutedStyle.Render(c.Time.Local().Format("15:04")),
			SenderStyle.Render(c.Sender+":"),
			c.Body))
	}
	return strings.Join(lines, "\n")
}

func (m *CallModel) controlsView() string {
	toggle := func(icon, key string, on bool) string {
		if on {
			return StatusStyle.Render(icon + " " + key)
		}
		return MutedStyle.Render(icon + " " + key)
	}
	return strings.Join([]string{
		toggle(IconMic, "m", m.mic),
		toggle(IconCamera, "c", m.camera),
		toggle(IconScreen, "s", m.screen),
		MutedStyle.Render("tab: controls/chat  q: leave"),
	}, "  ")
}

func (m *CallModel) displayName(id string) string {
	if n, ok := m.names[id]; ok && n != "" {
		return n
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mediaIcon(kind string) string {
	switch kind {
	case "audio":
		return IconMic
	case "video":
		return IconCamera
	}
	return kind
}

// CallView runs the call model as an inline bubbletea program.
type CallView struct {
	program *tea.Program
	model   *CallModel
}

func NewCallView(room, name string, ctl Controls) *CallView {
	model := NewCallModel(room, name, ctl)
	return &CallView{model: model, program: tea.NewProgram(model)}
}

// Send posts a message to the view from any goroutine.
func (v *CallView) Send(msg tea.Msg) {
	v.program.Send(msg)
}

// Run blocks until the view quits and returns why the call ended.
func (v *CallView) Run() error {
	if _, err := v.program.Run(); err != nil {
		return err
	}
	return v.model.Err()
}
