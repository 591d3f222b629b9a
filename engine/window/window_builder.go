package window

// WindowBuilderOption is a functional option for configuring an engineWindow.
// Use the With* functions to create options.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithSize sets the initial window size.
//
// Parameters:
//   - width: initial width in pixels
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *engineWindow) {
		if width > 0 {
			w.width = width
		}
		if height > 0 {
			w.height = height
		}
	}
}

// WithFullscreen opens the window in borderless fullscreen on the named
// monitor (empty = primary).
//
// Parameters:
//   - monitorName: the target monitor name
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithFullscreen(monitorName string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.fullscreen = true
		w.monitorName = monitorName
	}
}

// WithDecorations controls the title bar and border. Output windows run
// undecorated so projector pixels start at the window origin.
//
// Parameters:
//   - decorated: whether the window has a frame
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithDecorations(decorated bool) WindowBuilderOption {
	return func(w *engineWindow) {
		w.decorated = decorated
	}
}
