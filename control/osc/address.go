// Package osc parses the engine's OSC address space into control targets
// and formats targets back into addresses. All addresses live under the
// /mapmap/ prefix.
package osc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MrLongNight/mapflow-go/control"
)

const (
	// maxAddressLength bounds the whole OSC address.
	maxAddressLength = 1024
	// maxNameLength bounds paint/effect parameter names.
	maxNameLength = 256
)

// ParseAddress resolves an OSC address to a control target.
//
// Recognized patterns:
//   - /mapmap/master/opacity | blackout
//   - /mapmap/layer/{id}/opacity | position | rotation | scale | visibility
//   - /mapmap/paint/{id}/parameter/{name}
//   - /mapmap/effect/{id}/parameter/{name}
//   - /mapmap/playback/speed | position
//   - /mapmap/output/{id}/brightness
//   - /mapmap/output/{id}/edge_blend/{edge}
//
// Parameters:
//   - address: the raw OSC address
//
// Returns:
//   - control.ControlTarget: the resolved target
//   - error: wraps control.ErrInvalidMessage on any malformed input
func ParseAddress(address string) (control.ControlTarget, error) {
	var zero control.ControlTarget

	if len(address) > maxAddressLength {
		return zero, fmt.Errorf("%w: OSC address too long (max %d chars)", control.ErrInvalidMessage, maxAddressLength)
	}

	parts := strings.Split(strings.TrimPrefix(address, "/"), "/")
	if len(parts) == 0 || parts[0] != "mapmap" {
		return zero, fmt.Errorf("%w: OSC address must start with /mapmap: %s", control.ErrInvalidMessage, address)
	}
	if len(parts) < 2 {
		return zero, fmt.Errorf("%w: incomplete OSC address: %s", control.ErrInvalidMessage, address)
	}

	switch parts[1] {
	case "master":
		return parseMaster(parts[2:])
	case "layer":
		return parseLayer(parts[2:])
	case "paint":
		return parseParameterized(parts[2:], "paint")
	case "effect":
		return parseParameterized(parts[2:], "effect")
	case "playback":
		return parsePlayback(parts[2:])
	case "output":
		return parseOutput(parts[2:])
	default:
		return zero, fmt.Errorf("%w: unknown OSC category %q", control.ErrInvalidMessage, parts[1])
	}
}

func parseMaster(parts []string) (control.ControlTarget, error) {
	var zero control.ControlTarget
	if len(parts) == 0 {
		return zero, fmt.Errorf("%w: missing master parameter", control.ErrInvalidMessage)
	}
	switch parts[0] {
	case "opacity":
		return control.MasterOpacity(), nil
	case "blackout":
		return control.MasterBlackout(), nil
	default:
		return zero, fmt.Errorf("%w: unknown master parameter %q", control.ErrInvalidMessage, parts[0])
	}
}

func parseLayer(parts []string) (control.ControlTarget, error) {
	var zero control.ControlTarget
	if len(parts) == 0 {
		return zero, fmt.Errorf("%w: missing layer ID", control.ErrInvalidMessage)
	}
	id, err := parseID(parts[0], "layer")
	if err != nil {
		return zero, err
	}
	if len(parts) < 2 {
		return zero, fmt.Errorf("%w: missing layer parameter", control.ErrInvalidMessage)
	}
	switch parts[1] {
	case "opacity":
		return control.LayerOpacity(id), nil
	case "position":
		return control.LayerPosition(id), nil
	case "rotation":
		return control.LayerRotation(id), nil
	case "scale":
		return control.LayerScale(id), nil
	case "visibility":
		return control.LayerVisibility(id), nil
	default:
		return zero, fmt.Errorf("%w: unknown layer parameter %q", control.ErrInvalidMessage, parts[1])
	}
}

func parseParameterized(parts []string, category string) (control.ControlTarget, error) {
	var zero control.ControlTarget
	if len(parts) == 0 {
		return zero, fmt.Errorf("%w: missing %s ID", control.ErrInvalidMessage, category)
	}
	id, err := parseID(parts[0], category)
	if err != nil {
		return zero, err
	}
	if len(parts) < 3 || parts[1] != "parameter" {
		return zero, fmt.Errorf("%w: %s address must be /%s/{id}/parameter/{name}", control.ErrInvalidMessage, category, category)
	}

	name := parts[2]
	if err := validateName(name); err != nil {
		return zero, err
	}

	if category == "paint" {
		return control.PaintParameter(id, name), nil
	}
	return control.EffectParameter(id, name), nil
}

func parsePlayback(parts []string) (control.ControlTarget, error) {
	var zero control.ControlTarget
	if len(parts) == 0 {
		return zero, fmt.Errorf("%w: missing playback parameter", control.ErrInvalidMessage)
	}
	switch parts[0] {
	case "speed":
		return control.PlaybackSpeed(), nil
	case "position":
		return control.PlaybackPosition(), nil
	default:
		return zero, fmt.Errorf("%w: unknown playback parameter %q", control.ErrInvalidMessage, parts[0])
	}
}

func parseOutput(parts []string) (control.ControlTarget, error) {
	var zero control.ControlTarget
	if len(parts) == 0 {
		return zero, fmt.Errorf("%w: missing output ID", control.ErrInvalidMessage)
	}
	id, err := parseID(parts[0], "output")
	if err != nil {
		return zero, err
	}
	if len(parts) < 2 {
		return zero, fmt.Errorf("%w: missing output parameter", control.ErrInvalidMessage)
	}
	switch parts[1] {
	case "brightness":
		return control.OutputBrightness(id), nil
	case "edge_blend":
		if len(parts) < 3 {
			return zero, fmt.Errorf("%w: missing edge name", control.ErrInvalidMessage)
		}
		edge, err := control.ParseEdge(parts[2])
		if err != nil {
			return zero, err
		}
		return control.OutputEdgeBlend(id, edge), nil
	default:
		return zero, fmt.Errorf("%w: unknown output parameter %q", control.ErrInvalidMessage, parts[1])
	}
}

func parseID(s, what string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s ID %q", control.ErrInvalidMessage, what, s)
	}
	return uint32(id), nil
}

// validateName rejects oversized names and path-traversal characters.
func validateName(name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: parameter name too long (max %d chars)", control.ErrInvalidMessage, maxNameLength)
	}
	if name == "" {
		return fmt.Errorf("%w: empty parameter name", control.ErrInvalidMessage)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: parameter name %q contains forbidden characters", control.ErrInvalidMessage, name)
	}
	return nil
}

// FormatAddress renders the OSC address for a control target. Formatting a
// round-trippable target and parsing the result yields the identical target.
//
// Parameters:
//   - target: the control target
//
// Returns:
//   - string: the OSC address
func FormatAddress(target control.ControlTarget) string {
	switch target.Kind {
	case control.TargetMasterOpacity:
		return "/mapmap/master/opacity"
	case control.TargetMasterBlackout:
		return "/mapmap/master/blackout"
	case control.TargetLayerOpacity:
		return fmt.Sprintf("/mapmap/layer/%d/opacity", target.ID)
	case control.TargetLayerPosition:
		return fmt.Sprintf("/mapmap/layer/%d/position", target.ID)
	case control.TargetLayerRotation:
		return fmt.Sprintf("/mapmap/layer/%d/rotation", target.ID)
	case control.TargetLayerScale:
		return fmt.Sprintf("/mapmap/layer/%d/scale", target.ID)
	case control.TargetLayerVisibility:
		return fmt.Sprintf("/mapmap/layer/%d/visibility", target.ID)
	case control.TargetPaintParameter:
		return fmt.Sprintf("/mapmap/paint/%d/parameter/%s", target.ID, target.Name)
	case control.TargetEffectParameter:
		return fmt.Sprintf("/mapmap/effect/%d/parameter/%s", target.ID, target.Name)
	case control.TargetPlaybackSpeed:
		return "/mapmap/playback/speed"
	case control.TargetPlaybackPosition:
		return "/mapmap/playback/position"
	case control.TargetOutputBrightness:
		return fmt.Sprintf("/mapmap/output/%d/brightness", target.ID)
	case control.TargetOutputEdgeBlend:
		return fmt.Sprintf("/mapmap/output/%d/edge_blend/%s", target.ID, target.Edge)
	case control.TargetCustom:
		return "/mapmap/custom/" + target.Name
	default:
		return "/mapmap/unknown"
	}
}
