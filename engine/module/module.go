// Package module implements the node-graph runtime: module parts wired by
// typed connections, the per-frame trigger system, and the evaluator that
// turns trigger state into render operations.
package module

import (
	"fmt"

	"github.com/MrLongNight/mapflow-go/engine/mapping"
)

// PartID identifies one part within the module manager's ID space.
type PartID = uint64

// PartType classifies what a part does in the graph.
type PartType int

const (
	PartTypeTrigger PartType = iota
	PartTypeSource
	PartTypeMask
	PartTypeModulator
	PartTypeMesh
	PartTypeLayer
	PartTypeOutput
)

func (t PartType) String() string {
	switch t {
	case PartTypeTrigger:
		return "Trigger"
	case PartTypeSource:
		return "Source"
	case PartTypeMask:
		return "Mask"
	case PartTypeModulator:
		return "Modulator"
	case PartTypeMesh:
		return "Mesh"
	case PartTypeLayer:
		return "Layer"
	case PartTypeOutput:
		return "Output"
	default:
		return "Unknown"
	}
}

// SocketKind types a connection endpoint. A connection's endpoints must
// carry the same kind.
type SocketKind int

const (
	SocketKindTrigger SocketKind = iota
	SocketKindMedia
	SocketKindMask
	SocketKindLayer
	SocketKindGeometry
)

func (k SocketKind) String() string {
	switch k {
	case SocketKindTrigger:
		return "Trigger"
	case SocketKindMedia:
		return "Media"
	case SocketKindMask:
		return "Mask"
	case SocketKindLayer:
		return "Layer"
	case SocketKindGeometry:
		return "Geometry"
	default:
		return "Unknown"
	}
}

// SourceKind distinguishes the media source variants a Source part can play.
type SourceKind int

const (
	SourceKindMediaFile SourceKind = iota
	SourceKindShader
	SourceKindNdiInput
	SourceKindLiveInput
	SourceKindSpoutInput
)

// SourceSpec configures a Source part.
type SourceSpec struct {
	Kind SourceKind `yaml:"kind"`
	// Path is the media file path for MediaFile sources.
	Path string `yaml:"path,omitempty"`
	// Name is the shader name for Shader sources, or the sender name for
	// NDI/Spout inputs.
	Name string `yaml:"name,omitempty"`
	// Params are shader parameters for Shader sources.
	Params []ShaderParam `yaml:"params,omitempty"`
	// DeviceID selects the capture device for LiveInput sources.
	DeviceID uint32 `yaml:"device_id,omitempty"`
}

// ShaderParam is one named float parameter of a shader source.
type ShaderParam struct {
	Name  string  `yaml:"name"`
	Value float32 `yaml:"value"`
}

// OutputKindTag distinguishes the physical output variants.
type OutputKindTag int

const (
	OutputKindProjector OutputKindTag = iota
	OutputKindNdi
	OutputKindSpout
)

// OutputSpec configures an Output part.
type OutputSpec struct {
	Kind OutputKindTag `yaml:"kind"`
	// ProjectorID is the output configuration ID for projector outputs.
	ProjectorID uint64 `yaml:"projector_id,omitempty"`
	// Monitor optionally pins the projector to a named monitor.
	Monitor string `yaml:"monitor,omitempty"`
	// Name is the stream name for NDI and Spout outputs.
	Name string `yaml:"name,omitempty"`
	// MappingMode replaces the source with a per-layer numbered grid for
	// physical alignment work.
	MappingMode bool `yaml:"mapping_mode,omitempty"`
}

// LayerSpec configures a Layer part.
type LayerSpec struct {
	Opacity float32 `yaml:"opacity"`
}

// SourceProps are per-draw source adjustments carried on a render operation.
type SourceProps struct {
	FlipH      bool    `yaml:"flip_h,omitempty"`
	FlipV      bool    `yaml:"flip_v,omitempty"`
	Brightness float32 `yaml:"brightness,omitempty"`
	Contrast   float32 `yaml:"contrast,omitempty"`
	Saturation float32 `yaml:"saturation,omitempty"`
	HueShift   float32 `yaml:"hue_shift,omitempty"`
}

// DefaultSourceProps returns the neutral adjustment set.
func DefaultSourceProps() SourceProps {
	return SourceProps{Contrast: 1, Saturation: 1}
}

// Part is one node of a module graph. Exactly one of the spec fields
// matching Type is populated.
type Part struct {
	ID       PartID     `yaml:"id"`
	Type     PartType   `yaml:"type"`
	Position [2]float32 `yaml:"position"`

	Trigger *TriggerSpec `yaml:"trigger,omitempty"`
	Source  *SourceSpec  `yaml:"source,omitempty"`
	Output  *OutputSpec  `yaml:"output,omitempty"`
	Layer   *LayerSpec   `yaml:"layer,omitempty"`
	// Mesh carries warp geometry for Mesh and Layer parts.
	Mesh *mapping.Mesh `yaml:"mesh,omitempty"`
	// Props carries source adjustments for Source parts.
	Props *SourceProps `yaml:"props,omitempty"`
}

// InputSockets returns the kinds of this part's input sockets in order.
func (p *Part) InputSockets() []SocketKind {
	switch p.Type {
	case PartTypeTrigger:
		return nil
	case PartTypeSource:
		return []SocketKind{SocketKindTrigger}
	case PartTypeMask:
		return []SocketKind{SocketKindMedia}
	case PartTypeModulator:
		return []SocketKind{SocketKindTrigger}
	case PartTypeMesh:
		return []SocketKind{SocketKindMedia}
	case PartTypeLayer:
		return []SocketKind{SocketKindMedia, SocketKindMask, SocketKindGeometry}
	case PartTypeOutput:
		return []SocketKind{SocketKindLayer, SocketKindTrigger}
	default:
		return nil
	}
}

// OutputSockets returns the kinds of this part's output sockets in order.
// For trigger parts the count depends on the trigger configuration.
func (p *Part) OutputSockets() []SocketKind {
	switch p.Type {
	case PartTypeTrigger:
		count := 1
		if p.Trigger != nil {
			count = len(p.Trigger.SocketLayout())
		}
		sockets := make([]SocketKind, count)
		for i := range sockets {
			sockets[i] = SocketKindTrigger
		}
		return sockets
	case PartTypeSource:
		return []SocketKind{SocketKindMedia}
	case PartTypeMask:
		return []SocketKind{SocketKindMask}
	case PartTypeModulator:
		return []SocketKind{SocketKindTrigger}
	case PartTypeMesh:
		return []SocketKind{SocketKindGeometry}
	case PartTypeLayer:
		return []SocketKind{SocketKindLayer}
	case PartTypeOutput:
		return nil
	default:
		return nil
	}
}

// Connection wires one part's output socket to another part's input socket.
type Connection struct {
	FromPart   PartID `yaml:"from_part"`
	FromSocket int    `yaml:"from_socket"`
	ToPart     PartID `yaml:"to_part"`
	ToSocket   int    `yaml:"to_socket"`
}

// PlaybackMode controls how a module behaves when its content ends.
type PlaybackMode int

const (
	PlaybackLoopUntilManualSwitch PlaybackMode = iota
	PlaybackPlayOnce
	PlaybackAdvanceToNext
)

// Module is one subgraph: parts plus the connections between them.
type Module struct {
	ID           uint64       `yaml:"id"`
	Name         string       `yaml:"name"`
	Color        [4]float32   `yaml:"color"`
	Parts        []Part       `yaml:"parts"`
	Connections  []Connection `yaml:"connections"`
	PlaybackMode PlaybackMode `yaml:"playback_mode"`

	nextPartID PartID
}

// AddPart appends a part of the given type and returns its ID.
//
// Parameters:
//   - part: the part to add; its ID field is assigned by the module
//
// Returns:
//   - PartID: the assigned part ID
func (m *Module) AddPart(part Part) PartID {
	m.nextPartID++
	part.ID = m.nextPartID
	m.Parts = append(m.Parts, part)
	return part.ID
}

// PartByID returns the part with the given ID, or nil.
func (m *Module) PartByID(id PartID) *Part {
	for i := range m.Parts {
		if m.Parts[i].ID == id {
			return &m.Parts[i]
		}
	}
	return nil
}

// Connect validates and adds a connection. Socket kinds must match, the
// input socket must be free, and the connection must not close a cycle.
//
// Parameters:
//   - conn: the connection to add
//
// Returns:
//   - error: validation failure; the graph is unchanged on error
func (m *Module) Connect(conn Connection) error {
	from := m.PartByID(conn.FromPart)
	to := m.PartByID(conn.ToPart)
	if from == nil || to == nil {
		return fmt.Errorf("connection references unknown part %d -> %d", conn.FromPart, conn.ToPart)
	}

	fromSockets := from.OutputSockets()
	toSockets := to.InputSockets()
	if conn.FromSocket < 0 || conn.FromSocket >= len(fromSockets) {
		return fmt.Errorf("part %d has no output socket %d", conn.FromPart, conn.FromSocket)
	}
	if conn.ToSocket < 0 || conn.ToSocket >= len(toSockets) {
		return fmt.Errorf("part %d has no input socket %d", conn.ToPart, conn.ToSocket)
	}
	if fromSockets[conn.FromSocket] != toSockets[conn.ToSocket] {
		return fmt.Errorf("socket kind mismatch: %s output cannot feed %s input",
			fromSockets[conn.FromSocket], toSockets[conn.ToSocket])
	}

	for _, existing := range m.Connections {
		if existing.ToPart == conn.ToPart && existing.ToSocket == conn.ToSocket {
			return fmt.Errorf("input socket %d of part %d already connected", conn.ToSocket, conn.ToPart)
		}
	}

	if m.wouldCycle(conn) {
		return fmt.Errorf("connection %d -> %d would create a cycle", conn.FromPart, conn.ToPart)
	}

	m.Connections = append(m.Connections, conn)
	return nil
}

// Disconnect removes the connection feeding the given input socket.
func (m *Module) Disconnect(toPart PartID, toSocket int) bool {
	for i, conn := range m.Connections {
		if conn.ToPart == toPart && conn.ToSocket == toSocket {
			m.Connections = append(m.Connections[:i], m.Connections[i+1:]...)
			return true
		}
	}
	return false
}

// wouldCycle reports whether adding conn creates a path from conn.ToPart
// back to conn.FromPart. Connections are a flat list scanned directly;
// graphs stay small enough that a reverse index is not worth carrying.
func (m *Module) wouldCycle(conn Connection) bool {
	if conn.FromPart == conn.ToPart {
		return true
	}
	visited := map[PartID]bool{}
	stack := []PartID{conn.ToPart}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == conn.FromPart {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, c := range m.Connections {
			if c.FromPart == current {
				stack = append(stack, c.ToPart)
			}
		}
	}
	return false
}

// Manager owns the set of modules in a project.
type Manager struct {
	Modules []*Module `yaml:"modules"`

	nextID uint64
}

// NewManager creates an empty module manager.
func NewManager() *Manager {
	return &Manager{}
}

// CreateModule adds an empty module and returns its ID.
func (mm *Manager) CreateModule(name string) uint64 {
	mm.nextID++
	mm.Modules = append(mm.Modules, &Module{
		ID:    mm.nextID,
		Name:  name,
		Color: [4]float32{1, 1, 1, 1},
	})
	return mm.nextID
}

// Module returns the module with the given ID, or nil.
func (mm *Manager) Module(id uint64) *Module {
	for _, m := range mm.Modules {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Normalize recomputes the ID counters after deserialization so new
// modules and parts never collide with loaded ones.
func (mm *Manager) Normalize() {
	mm.nextID = 0
	for _, m := range mm.Modules {
		if m.ID > mm.nextID {
			mm.nextID = m.ID
		}
		m.nextPartID = 0
		for i := range m.Parts {
			if m.Parts[i].ID > m.nextPartID {
				m.nextPartID = m.Parts[i].ID
			}
		}
	}
}

// RemoveModule deletes a module by ID.
func (mm *Manager) RemoveModule(id uint64) bool {
	for i, m := range mm.Modules {
		if m.ID == id {
			mm.Modules = append(mm.Modules[:i], mm.Modules[i+1:]...)
			return true
		}
	}
	return false
}
