// Package output manages the physical output configurations: canvas
// regions, resolutions, edge blending, and per-output color calibration.
// The CPU reference math here mirrors the post-process shaders so the
// calibration behavior is testable without a device.
package output

import (
	"fmt"
)

// ID identifies one output window. ID 0 is reserved for the control window.
type ID = uint64

// CanvasRegion is a rectangular sub-region of the global canvas in
// normalized [0, 1] coordinates.
type CanvasRegion struct {
	X      float32 `yaml:"x"`
	Y      float32 `yaml:"y"`
	Width  float32 `yaml:"width"`
	Height float32 `yaml:"height"`
}

// NewCanvasRegion creates a region.
func NewCanvasRegion(x, y, width, height float32) CanvasRegion {
	return CanvasRegion{X: x, Y: y, Width: width, Height: height}
}

// Intersects reports whether the two regions overlap.
func (r CanvasRegion) Intersects(other CanvasRegion) bool {
	return !(r.X+r.Width < other.X ||
		other.X+other.Width < r.X ||
		r.Y+r.Height < other.Y ||
		other.Y+other.Height < r.Y)
}

// Intersection returns the overlapping region, or false when disjoint.
func (r CanvasRegion) Intersection(other CanvasRegion) (CanvasRegion, bool) {
	if !r.Intersects(other) {
		return CanvasRegion{}, false
	}
	x := max32(r.X, other.X)
	y := max32(r.Y, other.Y)
	right := min32(r.X+r.Width, other.X+other.Width)
	bottom := min32(r.Y+r.Height, other.Y+other.Height)
	return NewCanvasRegion(x, y, right-x, bottom-y), true
}

// ToPixels converts the region to pixel coordinates on a canvas of the
// given size.
func (r CanvasRegion) ToPixels(canvasWidth, canvasHeight uint32) (x, y int32, width, height uint32) {
	x = int32(r.X * float32(canvasWidth))
	y = int32(r.Y * float32(canvasHeight))
	width = uint32(r.Width * float32(canvasWidth))
	height = uint32(r.Height * float32(canvasHeight))
	return
}

// Config is the full configuration of one output window.
type Config struct {
	ID                 ID               `yaml:"id"`
	Name               string           `yaml:"name"`
	Enabled            bool             `yaml:"enabled"`
	MonitorName        string           `yaml:"monitor_name,omitempty"`
	Resolution         [2]uint32        `yaml:"resolution"`
	Fullscreen         bool             `yaml:"fullscreen"`
	CanvasRegion       CanvasRegion     `yaml:"canvas_region"`
	EdgeBlend          EdgeBlendConfig  `yaml:"edge_blend"`
	ColorCalibration   ColorCalibration `yaml:"color_calibration"`
	ShowInPreviewPanel bool             `yaml:"show_in_preview_panel"`
}

// NewConfig creates an enabled output configuration with default blending
// and calibration.
func NewConfig(id ID, name string, region CanvasRegion, width, height uint32) Config {
	return Config{
		ID:                 id,
		Name:               name,
		Enabled:            true,
		Resolution:         [2]uint32{width, height},
		CanvasRegion:       region,
		EdgeBlend:          DefaultEdgeBlendConfig(),
		ColorCalibration:   DefaultColorCalibration(),
		ShowInPreviewPanel: true,
	}
}

// Manager owns the output configurations and the canvas size.
type Manager struct {
	Outputs    []Config  `yaml:"outputs"`
	CanvasSize [2]uint32 `yaml:"canvas_size"`

	nextID uint64
}

// NewManager creates a manager with the given canvas size.
func NewManager(canvasWidth, canvasHeight uint32) *Manager {
	return &Manager{CanvasSize: [2]uint32{canvasWidth, canvasHeight}}
}

// AddOutput appends a new enabled output and returns its ID. IDs start at 1;
// 0 belongs to the control window.
func (m *Manager) AddOutput(name string, region CanvasRegion, width, height uint32) ID {
	m.nextID++
	m.Outputs = append(m.Outputs, NewConfig(m.nextID, name, region, width, height))
	return m.nextID
}

// RemoveOutput deletes an output by ID.
func (m *Manager) RemoveOutput(id ID) bool {
	for i, o := range m.Outputs {
		if o.ID == id {
			m.Outputs = append(m.Outputs[:i], m.Outputs[i+1:]...)
			return true
		}
	}
	return false
}

// Output returns the configuration with the given ID, or nil.
func (m *Manager) Output(id ID) *Config {
	for i := range m.Outputs {
		if m.Outputs[i].ID == id {
			return &m.Outputs[i]
		}
	}
	return nil
}

// Normalize recomputes the ID counter after deserialization.
func (m *Manager) Normalize() {
	m.nextID = 0
	for _, o := range m.Outputs {
		if o.ID > m.nextID {
			m.nextID = o.ID
		}
	}
}

// CreateProjectorArray2x2 replaces the configuration with a 2x2 projector
// grid sharing the given overlap fraction, with edge blending enabled on
// every shared edge.
//
// Parameters:
//   - projectorWidth, projectorHeight: per-projector resolution
//   - overlap: shared-edge overlap as a fraction of projector size (0..0.5)
func (m *Manager) CreateProjectorArray2x2(projectorWidth, projectorHeight uint32, overlap float32) {
	effectiveWidth := float32(projectorWidth) * (1 - overlap)
	effectiveHeight := float32(projectorHeight) * (1 - overlap)
	m.CanvasSize = [2]uint32{uint32(effectiveWidth * 2), uint32(effectiveHeight * 2)}

	m.Outputs = m.Outputs[:0]
	m.nextID = 0

	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			region := NewCanvasRegion(float32(col)*0.5, float32(row)*0.5, 0.5, 0.5)
			id := m.AddOutput(fmt.Sprintf("Projector %d-%d", row+1, col+1), region, projectorWidth, projectorHeight)
			cfg := m.Output(id)
			cfg.EdgeBlend = EdgeBlendConfig{
				Left:   EdgeBlendZone{Enabled: col > 0, Width: overlap},
				Right:  EdgeBlendZone{Enabled: col < 1, Width: overlap},
				Top:    EdgeBlendZone{Enabled: row > 0, Width: overlap},
				Bottom: EdgeBlendZone{Enabled: row < 1, Width: overlap},
				Gamma:  2.2,
			}
		}
	}
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
