// Package tui provides the BubbleTea-based placement interface.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/stickerlay/internal/config"
	"github.com/jmylchreest/stickerlay/internal/core"
	"github.com/jmylchreest/stickerlay/internal/dbus"
	"github.com/jmylchreest/stickerlay/internal/model"
	"github.com/jmylchreest/stickerlay/internal/stickers"
)

// Controller is the subset of the daemon client the TUI drives.
type Controller interface {
	ListDisplays(ctx context.Context) ([]model.Display, error)
	GetLayouts(ctx context.Context) (map[model.DisplayID]model.Layout, error)
	ListStickers(ctx context.Context) ([]stickers.Sticker, error)
	SetSticker(ctx context.Context, name string, id model.DisplayID, keepAspect bool) (model.Layout, error)
	UpdatePlacement(ctx context.Context, id model.DisplayID, x, y, w, h float64, lockAspect bool) (model.Layout, error)
	ClearSticker(ctx context.Context, name string) (int, error)
	SetCaptureProtection(ctx context.Context, id *model.DisplayID, enabled bool) (bool, error)
	Status(ctx context.Context) (dbus.Status, error)
	WatchLayouts(ctx context.Context) (<-chan dbus.LayoutSignal, error)
}

// Mode represents the current UI mode.
type Mode int

const (
	ModeDisplays Mode = iota
	ModePlace
	ModePick
	ModeHelp
)

// fineDivisor scales the nudge step in fine mode.
const fineDivisor = 10

// Model is the main TUI model.
type Model struct {
	cfg  *config.Config
	ctrl Controller
	ctx  context.Context

	mode       Mode
	helpReturn Mode
	pickReturn Mode

	// Components
	displayList list.Model
	stickerList list.Model
	help        help.Model

	// State
	displays  []model.Display
	layouts   map[model.DisplayID]model.Layout
	stickers  []stickers.Sticker
	protected bool
	current   model.DisplayID
	fine      bool
	width     int
	height    int
	ready     bool

	keys KeyMap

	statusMsg string
	statusErr bool

	signals <-chan dbus.LayoutSignal
}

// displayItem wraps a display for the list component.
type displayItem struct {
	display model.Display
	layout  model.Layout
}

func (i displayItem) Title() string {
	title := i.display.Label() + "  " + string(i.display.ID)
	if i.display.Name != "" {
		title += " (" + i.display.Name + ")"
	}
	return title
}

func (i displayItem) Description() string {
	sticker := "no sticker"
	if i.layout.HasSticker() {
		sticker = i.layout.StickerName()
	}
	r := i.layout.Resolve(i.display.Bounds)
	return fmt.Sprintf("%s - %dx%d at %d,%d on %s",
		sticker, r.Width, r.Height, r.X, r.Y, i.display.Bounds.String())
}

func (i displayItem) FilterValue() string {
	return string(i.display.ID) + " " + i.display.Name
}

// stickerItem wraps a library sticker for the list component.
type stickerItem struct {
	sticker stickers.Sticker
}

func (i stickerItem) Title() string {
	return i.sticker.Name
}

func (i stickerItem) Description() string {
	dims := "?"
	if i.sticker.Width > 0 {
		dims = fmt.Sprintf("%dx%d", i.sticker.Width, i.sticker.Height)
	}
	return fmt.Sprintf("%s - %s - %s", dims,
		humanize.Bytes(uint64(max(i.sticker.Size, 0))),
		humanize.Time(i.sticker.ModTime))
}

func (i stickerItem) FilterValue() string {
	return i.sticker.Name
}

// New creates a new TUI model.
func New(ctx context.Context, cfg *config.Config, ctrl Controller) Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	dl := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	dl.Title = "Displays"
	dl.SetShowStatusBar(false)
	dl.SetShowHelp(false)
	dl.SetFilteringEnabled(false)
	dl.DisableQuitKeybindings()

	sl := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	sl.Title = "Stickers"
	sl.SetShowStatusBar(true)
	sl.SetShowHelp(false)
	sl.SetFilteringEnabled(true)
	sl.DisableQuitKeybindings()

	h := help.New()
	h.ShowAll = true

	return Model{
		cfg:         cfg,
		ctrl:        ctrl,
		ctx:         ctx,
		mode:        ModeDisplays,
		displayList: dl,
		stickerList: sl,
		help:        h,
		layouts:     make(map[model.DisplayID]model.Layout),
		keys:        DefaultKeyMap(),
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load, m.subscribe)
}

type loadedMsg struct {
	displays  []model.Display
	layouts   map[model.DisplayID]model.Layout
	stickers  []stickers.Sticker
	protected bool
	err       error
}

// load fetches displays, layouts, stickers and status from the daemon.
func (m Model) load() tea.Msg {
	displays, err := m.ctrl.ListDisplays(m.ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	layouts, err := m.ctrl.GetLayouts(m.ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	library, err := m.ctrl.ListStickers(m.ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	st, err := m.ctrl.Status(m.ctx)
	if err != nil {
		return loadedMsg{err: err}
	}

	core.SortDisplays(displays)
	core.Sort(library, sortOptions(m.cfg))
	return loadedMsg{
		displays:  displays,
		layouts:   layouts,
		stickers:  library,
		protected: st.CaptureProtection,
	}
}

func sortOptions(cfg *config.Config) core.SortOptions {
	opts := core.DefaultSortOptions()
	if field, err := core.ParseSortField(cfg.Output.Sort); err == nil {
		opts.Field = field
	}
	if order, err := core.ParseSortOrder(cfg.Output.Order); err == nil {
		opts.Order = order
	}
	return opts
}

type subscribedMsg struct {
	ch  <-chan dbus.LayoutSignal
	err error
}

type signalMsg struct {
	signal dbus.LayoutSignal
}

// subscribe starts listening for layout changes made by other clients.
func (m Model) subscribe() tea.Msg {
	ch, err := m.ctrl.WatchLayouts(m.ctx)
	return subscribedMsg{ch: ch, err: err}
}

// waitForSignal blocks until the next layout change.
func waitForSignal(ch <-chan dbus.LayoutSignal) tea.Cmd {
	return func() tea.Msg {
		sig, ok := <-ch
		if !ok {
			return nil
		}
		return signalMsg{signal: sig}
	}
}

type layoutMsg struct {
	layout model.Layout
	action string
	err    error
}

type clearedMsg struct {
	name  string
	count int
	err   error
}

type protectMsg struct {
	enabled bool
	err     error
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

func setStatus(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.displayList.SetSize(msg.Width, msg.Height-2)
		m.stickerList.SetSize(msg.Width, msg.Height-2)
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			return m, setStatus("Load failed: "+msg.err.Error(), true)
		}
		m.displays = msg.displays
		m.layouts = msg.layouts
		if m.layouts == nil {
			m.layouts = make(map[model.DisplayID]model.Layout)
		}
		m.stickers = msg.stickers
		m.protected = msg.protected
		m.refreshItems()
		return m, nil

	case subscribedMsg:
		if msg.err != nil {
			return m, setStatus("Live updates unavailable: "+msg.err.Error(), true)
		}
		m.signals = msg.ch
		return m, waitForSignal(m.signals)

	case signalMsg:
		m.layouts[msg.signal.Layout.DisplayID] = msg.signal.Layout
		m.refreshItems()
		return m, waitForSignal(m.signals)

	case layoutMsg:
		if msg.err != nil {
			return m, setStatus(msg.action+" failed: "+msg.err.Error(), true)
		}
		m.layouts[msg.layout.DisplayID] = msg.layout
		m.refreshItems()
		if msg.action == "" {
			return m, nil
		}
		return m, setStatus(msg.action, false)

	case clearedMsg:
		if msg.err != nil {
			return m, setStatus("Clear failed: "+msg.err.Error(), true)
		}
		return m, tea.Batch(m.load, setStatus(fmt.Sprintf("Cleared %s from %d display(s)", msg.name, msg.count), false))

	case protectMsg:
		if msg.err != nil {
			return m, setStatus("Capture protection failed: "+msg.err.Error(), true)
		}
		m.protected = msg.enabled
		if msg.enabled {
			return m, setStatus("Capture protection on", false)
		}
		return m, setStatus("Capture protection off", false)

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil
	}

	var cmd tea.Cmd
	switch m.mode {
	case ModeDisplays:
		m.displayList, cmd = m.displayList.Update(msg)
	case ModePick:
		m.stickerList, cmd = m.stickerList.Update(msg)
	}
	return m, cmd
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The sticker filter swallows everything but ctrl+c.
	if m.mode == ModePick && m.stickerList.FilterState() == list.Filtering {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.stickerList, cmd = m.stickerList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = m.helpReturn
		} else {
			m.helpReturn = m.mode
			m.mode = ModeHelp
		}
		return m, nil
	}

	switch m.mode {
	case ModeDisplays:
		return m.handleDisplaysKey(msg)
	case ModePlace:
		return m.handlePlaceKey(msg)
	case ModePick:
		return m.handlePickKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = m.helpReturn
		}
		return m, nil
	}

	return m, nil
}

// handleDisplaysKey handles keys in the display list.
func (m Model) handleDisplaysKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		d, ok := m.selectedDisplay()
		if !ok {
			return m, nil
		}
		if !m.layouts[d.ID].HasSticker() {
			return m, setStatus("No sticker on "+string(d.ID)+", press s to choose one", true)
		}
		m.current = d.ID
		m.mode = ModePlace
		return m, nil

	case key.Matches(msg, m.keys.Pick):
		if _, ok := m.selectedDisplay(); !ok {
			return m, nil
		}
		m.pickReturn = ModeDisplays
		m.mode = ModePick
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		return m, m.clearSelected()

	case key.Matches(msg, m.keys.Protect):
		return m, m.toggleProtection()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.load
	}

	var cmd tea.Cmd
	m.displayList, cmd = m.displayList.Update(msg)
	return m, cmd
}

// handlePlaceKey nudges the sticker on the current display.
func (m Model) handlePlaceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	step := m.step()
	lock := m.cfg.TUI.LockAspect

	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Enter):
		m.mode = ModeDisplays
		return m, nil
	case key.Matches(msg, m.keys.Up):
		return m.nudge(Nudge{DY: -step}, false)
	case key.Matches(msg, m.keys.Down):
		return m.nudge(Nudge{DY: step}, false)
	case key.Matches(msg, m.keys.Left):
		return m.nudge(Nudge{DX: -step}, false)
	case key.Matches(msg, m.keys.Right):
		return m.nudge(Nudge{DX: step}, false)
	case key.Matches(msg, m.keys.Grow):
		return m.nudge(Nudge{DW: step, DH: step, Centered: true}, lock)
	case key.Matches(msg, m.keys.Shrink):
		return m.nudge(Nudge{DW: -step, DH: -step, Centered: true}, lock)
	case key.Matches(msg, m.keys.Wider):
		return m.nudge(Nudge{DW: step}, false)
	case key.Matches(msg, m.keys.Narrower):
		return m.nudge(Nudge{DW: -step}, false)
	case key.Matches(msg, m.keys.Taller):
		return m.nudge(Nudge{DH: step}, false)
	case key.Matches(msg, m.keys.Shorter):
		return m.nudge(Nudge{DH: -step}, false)
	case key.Matches(msg, m.keys.Fine):
		m.fine = !m.fine
		if m.fine {
			return m, setStatus("Fine steps", false)
		}
		return m, setStatus("Normal steps", false)
	case key.Matches(msg, m.keys.Pick):
		m.pickReturn = ModePlace
		m.mode = ModePick
		return m, nil
	case key.Matches(msg, m.keys.Protect):
		return m, m.toggleProtection()
	}
	return m, nil
}

// handlePickKey handles keys in the sticker picker.
func (m Model) handlePickKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.stickerList.FilterState() == list.FilterApplied {
			m.stickerList.ResetFilter()
			return m, nil
		}
		m.mode = m.pickReturn
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		item, ok := m.stickerList.SelectedItem().(stickerItem)
		if !ok {
			return m, nil
		}
		target := m.current
		if m.pickReturn != ModePlace {
			d, ok := m.selectedDisplay()
			if !ok {
				return m, nil
			}
			target = d.ID
		}
		m.mode = m.pickReturn
		name := item.sticker.Name
		keepAspect := m.cfg.TUI.LockAspect
		return m, func() tea.Msg {
			l, err := m.ctrl.SetSticker(m.ctx, name, target, keepAspect)
			return layoutMsg{layout: l, action: "Placed " + name + " on " + string(target), err: err}
		}
	}

	var cmd tea.Cmd
	m.stickerList, cmd = m.stickerList.Update(msg)
	return m, cmd
}

// Nudge is a relative placement change in display fractions.
type Nudge struct {
	DX, DY, DW, DH float64
	// Centered keeps the rectangle's centre fixed while resizing.
	Centered bool
}

// Apply returns the placement of l after the nudge, kept inside the display
// with sizes no smaller than minSize.
func (n Nudge) Apply(l model.Layout, minSize float64) (x, y, w, h float64) {
	w = clamp(l.WidthFrac+n.DW, minSize, 1)
	h = clamp(l.HeightFrac+n.DH, minSize, 1)
	x, y = l.XFrac+n.DX, l.YFrac+n.DY
	if n.Centered {
		x -= (w - l.WidthFrac) / 2
		y -= (h - l.HeightFrac) / 2
	}
	x = clamp(x, 0, 1-w)
	y = clamp(y, 0, 1-h)
	return x, y, w, h
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// nudge applies n locally and sends the new placement to the daemon.
func (m Model) nudge(n Nudge, lockAspect bool) (tea.Model, tea.Cmd) {
	l, ok := m.layouts[m.current]
	if !ok || !l.HasSticker() {
		return m, nil
	}

	x, y, w, h := n.Apply(l, m.step())
	m.layouts[m.current] = l.WithPlacement(x, y, w, h)
	m.refreshItems()

	id := m.current
	return m, func() tea.Msg {
		l, err := m.ctrl.UpdatePlacement(m.ctx, id, x, y, w, h, lockAspect)
		return layoutMsg{layout: l, err: err, action: actionOnError(err, "Move")}
	}
}

// actionOnError names the action only when it failed, so successful nudges
// stay quiet.
func actionOnError(err error, action string) string {
	if err != nil {
		return action
	}
	return ""
}

func (m Model) step() float64 {
	step := m.cfg.TUI.NudgeStep
	if step <= 0 {
		step = config.DefaultNudgeStep
	}
	if m.fine {
		step /= fineDivisor
	}
	return step
}

func (m Model) clearSelected() tea.Cmd {
	d, ok := m.selectedDisplay()
	if !ok {
		return nil
	}
	name := m.layouts[d.ID].StickerName()
	if name == "" {
		return setStatus("Nothing to clear on "+string(d.ID), true)
	}
	return func() tea.Msg {
		n, err := m.ctrl.ClearSticker(m.ctx, name)
		return clearedMsg{name: name, count: n, err: err}
	}
}

func (m Model) toggleProtection() tea.Cmd {
	enabled := !m.protected
	return func() tea.Msg {
		_, err := m.ctrl.SetCaptureProtection(m.ctx, nil, enabled)
		return protectMsg{enabled: enabled, err: err}
	}
}

func (m Model) selectedDisplay() (model.Display, bool) {
	item, ok := m.displayList.SelectedItem().(displayItem)
	if !ok {
		return model.Display{}, false
	}
	return item.display, true
}

func (m Model) currentDisplay() (model.Display, bool) {
	for _, d := range m.displays {
		if d.ID == m.current {
			return d, true
		}
	}
	return model.Display{}, false
}

// refreshItems rebuilds both lists from the current state.
func (m *Model) refreshItems() {
	displayItems := make([]list.Item, len(m.displays))
	for i, d := range m.displays {
		displayItems[i] = displayItem{display: d, layout: m.layouts[d.ID]}
	}
	m.displayList.SetItems(displayItems)

	stickerItems := make([]list.Item, len(m.stickers))
	for i, s := range m.stickers {
		stickerItems[i] = stickerItem{sticker: s}
	}
	m.stickerList.SetItems(stickerItems)
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeDisplays:
		return m.displayList.View() + "\n" + m.footer("displays")
	case ModePlace:
		return m.viewPlace()
	case ModePick:
		return m.stickerList.View() + "\n" + m.footer("pick")
	case ModeHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

func (m Model) viewPlace() string {
	d, ok := m.currentDisplay()
	if !ok {
		return "Display " + string(m.current) + " disconnected\n" + m.footer("place")
	}
	l := m.layouts[m.current]

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s on %s", l.StickerName(), d.Label())))
	b.WriteString("\n\n")
	b.WriteString(RenderPreview(d.Bounds, l, max(m.width-4, 16)))
	b.WriteString("\n")

	r := l.Resolve(d.Bounds)
	b.WriteString(labelStyle.Render("Position: "))
	b.WriteString(fmt.Sprintf("%.1f%%, %.1f%% (%d,%d px)", l.XFrac*100, l.YFrac*100, r.X, r.Y))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Size:     "))
	b.WriteString(fmt.Sprintf("%.1f%% x %.1f%% (%dx%d px)", l.WidthFrac*100, l.HeightFrac*100, r.Width, r.Height))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Step:     "))
	b.WriteString(fmt.Sprintf("%.2f%%", m.step()*100))
	if m.protected {
		b.WriteString(labelStyle.Render("   capture protected"))
	}
	b.WriteString("\n")
	b.WriteString(m.footer("place"))
	return b.String()
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	return titleStyle.Render("Keyboard Shortcuts") + "\n\n" +
		m.help.FullHelpView(m.keys.FullHelp()) + "\n\n" +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Press ? or esc to return")
}

// footer shows the status message, or the keybind bar when there is none.
func (m Model) footer(mode string) string {
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		return statusStyle.Render(m.statusMsg)
	}
	if !m.cfg.TUI.ShowHelp {
		return ""
	}
	return buildKeybindBar(m.width, mode)
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key      string
	desc     string
	priority int // lower = more important (shown first)
}

// buildKeybindBar builds a keybind bar that fits within the given width.
// mode determines which keybinds are shown: "displays", "place", "pick"
func buildKeybindBar(width int, mode string) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind
	switch mode {
	case "displays":
		binds = []keybind{
			{"q", "quit", 1},
			{"enter", "place", 2},
			{"s", "sticker", 3},
			{"?", "help", 4},
			{"x", "clear", 5},
			{"p", "protect", 6},
			{"r", "refresh", 7},
		}
	case "place":
		binds = []keybind{
			{"esc", "done", 1},
			{"hjkl", "move", 2},
			{"+/-", "size", 3},
			{"HJKL", "stretch", 4},
			{"f", "fine", 5},
			{"s", "sticker", 6},
			{"?", "help", 7},
		}
	case "pick":
		binds = []keybind{
			{"enter", "apply", 1},
			{"esc", "back", 2},
			{"/", "filter", 3},
		}
	}

	const separator = "  "
	plain := ""
	result := ""
	for _, b := range binds {
		item := b.key + " " + b.desc
		next := plain + item
		if plain != "" {
			next = plain + separator + item
		}
		if width > 0 && lipgloss.Width(next) > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		plain = next
	}

	return style.Render(result)
}

// RunOptions configures the TUI.
type RunOptions struct {
	Context    context.Context
	Config     *config.Config
	Controller Controller
}

// Run starts the TUI with the given options.
func Run(opts RunOptions) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, opts.Config, opts.Controller)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err := p.Run()
	return err
}
