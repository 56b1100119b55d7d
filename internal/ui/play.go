package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/groovebox/internal/cli"
	"github.com/linuxmatters/groovebox/internal/config"
	"github.com/linuxmatters/groovebox/internal/player"
)

// Groove colour palette 🎵
var (
	grooveTeal   = lipgloss.Color("#00CED1") // Bright teal
	groovePurple = lipgloss.Color("#9370DB") // Medium purple
	grooveAmber  = lipgloss.Color("#FFBF00") // Warm amber
	coolGray     = lipgloss.Color("#708090") // Slate gray for subtle text
)

var (
	playTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(grooveTeal)

	playTrackStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(grooveAmber)

	playTimeStyle = lipgloss.NewStyle().
			Foreground(groovePurple).
			Bold(true)

	playHintStyle = lipgloss.NewStyle().
			Foreground(coolGray).
			Faint(true)

	playStateStyle = lipgloss.NewStyle().
			Foreground(grooveAmber).
			Bold(true)

	playWaveStyle = lipgloss.NewStyle().
			Foreground(groovePurple)
)

var waveGlyphs = []rune("▁▂▃▄▅▆▇█")

// renderWaveform draws one peak-per-column strip of the mono preview, sized
// to match the progress bar beneath it.
func renderWaveform(mono []float32, width int) string {
	if width <= 0 || len(mono) == 0 {
		return ""
	}
	var sb strings.Builder
	for col := 0; col < width; col++ {
		lo := col * len(mono) / width
		hi := (col + 1) * len(mono) / width
		if hi <= lo {
			hi = lo + 1
		}
		if hi > len(mono) {
			hi = len(mono)
		}
		var peak float32
		for _, v := range mono[lo:hi] {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		idx := int(peak * float32(len(waveGlyphs)))
		if idx >= len(waveGlyphs) {
			idx = len(waveGlyphs) - 1
		}
		sb.WriteRune(waveGlyphs[idx])
	}
	return sb.String()
}

// tickMsg drives the position refresh.
type tickMsg time.Time

// WaveformMsg delivers the mono preview of the whole track once the
// background preview decode finishes.
type WaveformMsg []float32

// playModel implements the Bubbletea model for the playback view.
type playModel struct {
	player   *player.Player
	track    string
	duration float64
	progress progress.Model
	waveform []float32
	width    int
	done     bool
}

// NewPlayModel creates the playback UI model for an already-started player.
func NewPlayModel(p *player.Player, track string, duration float64) tea.Model {
	prog := progress.New(
		progress.WithScaledGradient(string(grooveTeal), string(groovePurple)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)
	return &playModel{
		player:   p,
		track:    track,
		duration: duration,
		progress: prog,
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh ticker.
func (m *playModel) Init() tea.Cmd {
	return tick()
}

// Update handles key presses and ticker messages.
func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 16
		if w > 60 {
			w = 60
		}
		if w > 0 {
			m.progress.Width = w
		}
		return m, nil

	case WaveformMsg:
		m.waveform = msg
		return m, nil

	case tickMsg:
		if m.player.Finished() {
			m.done = true
			return m, tea.Quit
		}
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.done = true
			return m, tea.Quit

		case " ":
			if m.player.Paused() {
				m.player.Resume()
			} else {
				m.player.Pause()
			}

		case "left":
			m.player.Seek(m.player.Position() - config.SeekStep)

		case "right":
			m.player.Seek(m.player.Position() + config.SeekStep)

		case "up":
			m.player.SetVolume(m.player.Volume() + config.VolumeStep)

		case "down":
			m.player.SetVolume(m.player.Volume() - config.VolumeStep)
		}
		return m, nil
	}

	return m, nil
}

// View renders the playback screen.
func (m *playModel) View() string {
	if m.done {
		return ""
	}

	var s strings.Builder

	s.WriteString(playTitleStyle.Render("Groovebox 🎵"))
	s.WriteString("\n\n")
	s.WriteString(playTrackStyle.Render(m.track))
	s.WriteString("\n\n")

	pos := m.player.Position()
	fraction := 0.0
	if m.duration > 0 {
		fraction = pos / m.duration
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
	}
	if wave := renderWaveform(m.waveform, m.progress.Width); wave != "" {
		s.WriteString(playWaveStyle.Render(wave))
		s.WriteString("\n")
	}
	s.WriteString(m.progress.ViewAs(fraction))
	s.WriteString("\n\n")

	s.WriteString(playTimeStyle.Render(
		fmt.Sprintf("%s / %s", cli.FormatTime(pos), cli.FormatTime(m.duration))))
	s.WriteString(playHintStyle.Render(fmt.Sprintf("   vol %3.0f%%", m.player.Volume()*100)))
	if m.player.Paused() {
		s.WriteString("   ")
		s.WriteString(playStateStyle.Render("⏸ paused"))
	}
	s.WriteString("\n\n")
	s.WriteString(playHintStyle.Render("space pause  ←/→ seek  ↑/↓ volume  q quit"))
	s.WriteString("\n")

	return s.String()
}
