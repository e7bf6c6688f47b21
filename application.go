package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/YLivay/chunkview/reader"
	"github.com/YLivay/chunkview/table"
	"github.com/YLivay/chunkview/utils"
	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

const maxColumnWidth = 32

var (
	headerStyle   = tcell.StyleDefault.Reverse(true).Bold(true)
	altRowStyle   = tcell.StyleDefault.Background(tcell.ColorDarkSlateGray)
	selectedStyle = tcell.StyleDefault.Reverse(true)
	statusStyle   = tcell.StyleDefault.Reverse(true)
	paneStyle     = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

type Application struct {
	reader ChunkSource

	// Shown in the status bar.
	name string
	size int64

	opts      table.Options
	highlight bool

	screen tcell.Screen

	// The chunk on screen and its number, counting from 1.
	chunk   []string
	chunkNo int
	view    table.View

	// Selected row and the first row on screen, as indices into view.Rows.
	selected int
	top      int

	showDetail bool

	// Search editing state.
	editing bool
	input   []rune

	// One-off message replacing the status summary until the next key.
	status string

	// Set when the reader can no longer be used.
	fatal error
}

func NewApplication(r ChunkSource, name string, size int64, opts table.Options, highlight bool) *Application {
	return &Application{
		reader:    r,
		name:      name,
		size:      size,
		opts:      opts,
		highlight: highlight,
	}
}

func (a *Application) Run(ctx context.Context) error {
	// A screen set beforehand is expected to be initialized already.
	screen := a.screen
	if screen == nil {
		var err error
		if screen, err = tcell.NewScreen(); err != nil {
			return fmt.Errorf("failed to create terminal screen: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("failed to initialize terminal screen: %w", err)
		}
		a.screen = screen
	}

	quit := func() {
		// You have to catch panics in a defer, clean up, and
		// re-raise them - otherwise your application can
		// die without leaving any diagnostic trace.
		maybePanic := recover()
		screen.Fini()
		if maybePanic != nil {
			panic(maybePanic)
		}
	}
	defer quit()

	if err := a.start(); err != nil {
		return err
	}
	a.draw()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			// Update screen
			screen.Show()

			// Poll event. nil means the screen was finalized.
			ev := screen.PollEvent()
			if ev == nil {
				return
			}

			if !a.handle(ev) {
				return
			}
			a.draw()
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return a.fatal
	}
}

// start shows the first chunk. Its first line is taken as the header.
func (a *Application) start() error {
	chunk, err := a.reader.Next()
	if err != nil {
		return err
	}

	a.opts.Header = headerOf(chunk, a.opts.Separator)
	if len(chunk) > 0 {
		a.chunkNo = 1
	} else {
		a.status = "Empty input"
	}
	a.show(chunk)
	return nil
}

func (a *Application) show(chunk []string) {
	a.chunk = chunk
	a.selected = 0
	a.top = 0
	a.rebuild()
}

// rebuild builds the view of the current chunk again after the options
// changed. A search that no longer applies, e.g. because the header was turned
// off, is dropped.
func (a *Application) rebuild() {
	view, err := table.Build(a.chunk, a.opts)
	if errors.Is(err, table.ErrBadSearch) {
		a.status = "Search cleared: " + err.Error()
		a.opts.Search = ""
		view, err = table.Build(a.chunk, a.opts)
	}
	if err != nil {
		a.status = err.Error()
	}

	a.view = view
	a.selected = max(0, min(a.selected, len(view.Rows)-1))
}

// handle processes one event. It returns false when the application should
// quit.
func (a *Application) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
	case *tcell.EventKey:
		if a.editing {
			a.handleEdit(ev)
			break
		}

		a.status = ""
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRight, tcell.KeyPgDn:
			a.next()
		case tcell.KeyLeft, tcell.KeyPgUp:
			a.previous()
		case tcell.KeyDown:
			a.selected = min(a.selected+1, max(0, len(a.view.Rows)-1))
		case tcell.KeyUp:
			a.selected = max(a.selected-1, 0)
		case tcell.KeyEnter:
			a.showDetail = !a.showDetail
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'n':
				a.next()
			case 'p':
				a.previous()
			case 'h':
				a.opts.UseHeader = !a.opts.UseHeader
				a.rebuild()
			case 'r':
				a.opts.Regex = !a.opts.Regex
				a.rebuild()
			case '/':
				a.editing = true
				a.input = []rune(a.opts.Search)
			}
		}
	}

	return a.fatal == nil
}

func (a *Application) handleEdit(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		a.editing = false
	case tcell.KeyEnter:
		a.editing = false
		text := string(a.input)
		if _, err := table.ParseSearch(text, a.opts.Regex, a.view.Columns); err != nil {
			a.status = err.Error()
			return
		}
		a.opts.Search = text
		a.selected = 0
		a.rebuild()
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(a.input) > 0 {
			a.input = a.input[:len(a.input)-1]
		}
	case tcell.KeyRune:
		a.input = append(a.input, ev.Rune())
	}
}

func (a *Application) next() {
	chunk, err := a.reader.Next()
	if err != nil {
		a.fail(err)
		return
	}
	if len(chunk) == 0 {
		// Step back onto the chunk on screen so that Previous returns the one
		// before it.
		if _, err := a.reader.Previous(); err != nil {
			a.fail(err)
			return
		}
		a.status = "End of file"
		return
	}

	a.chunkNo++
	a.show(chunk)
}

func (a *Application) previous() {
	chunk, err := a.reader.Previous()
	if err != nil {
		a.fail(err)
		return
	}
	if len(chunk) == 0 {
		if _, err := a.reader.Next(); err != nil {
			a.fail(err)
			return
		}
		a.status = "Beginning of file"
		return
	}

	a.chunkNo--
	a.show(chunk)
}

// fail reports a reader error. Read errors can be retried, broken invariants
// end the application.
func (a *Application) fail(err error) {
	if errors.Is(err, reader.ErrInvariant) {
		a.fatal = err
	}
	a.status = "Error: " + err.Error()
}

func (a *Application) draw() {
	s := a.screen
	s.Clear()
	width, height := s.Size()
	if width <= 0 || height < 3 {
		return
	}

	statusY := height - 1
	paneHeight := 0
	if a.showDetail && len(a.view.Rows) > 0 {
		paneHeight = max(3, height/3)
	}
	bodyHeight := statusY - 1 - paneHeight
	if bodyHeight < 1 {
		paneHeight = 0
		bodyHeight = statusY - 1
	}

	if a.selected < a.top {
		a.top = a.selected
	}
	if a.selected >= a.top+bodyHeight {
		a.top = a.selected - bodyHeight + 1
	}

	end := min(a.top+bodyHeight, len(a.view.Rows))
	visible := a.view.Rows[a.top:end]
	widths := columnWidths(a.view.Columns, visible)

	fillLine(s, 0, width, headerStyle)
	drawCells(s, 0, width, a.view.Columns, widths, headerStyle)

	for i, row := range visible {
		style := tcell.StyleDefault
		idx := a.top + i
		switch {
		case idx == a.selected:
			style = selectedStyle
		case a.highlight && idx%2 == 1:
			style = altRowStyle
		}
		if style != tcell.StyleDefault {
			fillLine(s, 1+i, width, style)
		}
		drawCells(s, 1+i, width, row, widths, style)
	}

	if paneHeight > 0 {
		a.drawDetail(1+bodyHeight, width, paneHeight)
	}

	fillLine(s, statusY, width, statusStyle)
	drawText(s, 0, statusY, width, a.statusLine(), statusStyle)
}

func (a *Application) drawDetail(y, width, height int) {
	s := a.screen
	title := fmt.Sprintf("─ row %d ", a.selected+1)
	drawText(s, 0, y, width, title+strings.Repeat("─", max(0, width-utils.Width(title))), paneStyle)

	var lines []string
	row := a.view.Rows[a.selected]
	for i, label := range a.view.Columns {
		value := ""
		if i < len(row) {
			value = row[i]
		}
		lines = append(lines, utils.WordWrap(label+": "+value, width)...)
	}

	for i := 0; i < height-1 && i < len(lines); i++ {
		drawText(s, 0, y+1+i, width, lines[i], tcell.StyleDefault)
	}
}

func (a *Application) statusLine() string {
	if a.editing {
		return "Search (column:value): " + string(a.input)
	}
	if a.status != "" {
		return a.status
	}

	parts := []string{
		a.name,
		fmt.Sprintf("chunk %d", a.chunkNo),
		fmt.Sprintf("Showing %d of %d items", len(a.view.Rows), a.view.Total),
		humanize.IBytes(uint64(a.size)),
	}
	if n := len(a.view.Mismatched); n > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed rows", n))
	}
	if a.opts.Search != "" {
		mode := "search"
		if a.opts.Regex {
			mode = "regex"
		}
		parts = append(parts, mode+" "+a.opts.Search)
	}
	if a.opts.Filter != nil {
		parts = append(parts, "jq "+a.opts.Filter.String())
	}
	return " " + strings.Join(parts, " | ")
}

func columnWidths(labels []string, rows [][]string) []int {
	widths := make([]int, len(labels))
	for i, label := range labels {
		widths[i] = utils.Width(label)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], utils.Width(cell))
			}
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColumnWidth)
	}
	return widths
}

func drawCells(s tcell.Screen, y, width int, cells []string, widths []int, style tcell.Style) {
	x := 0
	for i, w := range widths {
		if x >= width {
			return
		}
		if i < len(cells) {
			drawText(s, x, y, min(w, width-x), utils.Truncate(cells[i], w), style)
		}
		x += w + 1
	}
}

func fillLine(s tcell.Screen, y, width int, style tcell.Style) {
	for x := 0; x < width; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

func drawText(s tcell.Screen, x, y, width int, text string, style tcell.Style) {
	limit := x + width
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > limit {
			return
		}
		s.SetContent(x, y, r, nil, style)
		x += w
	}
}
