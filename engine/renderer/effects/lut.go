// Package effects runs the post-process chain: ordered passes ping-ponged
// over two intermediate targets, built-in effects, and 3D color lookup
// tables loadable from .cube files or synthesized from presets.
package effects

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrLongNight/mapflow-go/common"
)

// Standard LUT cube dimensions.
const (
	LutSize32 = 32
	LutSize64 = 64
)

// LutPreset names a built-in color grade.
type LutPreset int

const (
	PresetIdentity LutPreset = iota
	PresetGrayscale
	PresetSepia
	PresetCool
	PresetWarm
	PresetHighContrast
	PresetInverted
)

func (p LutPreset) String() string {
	switch p {
	case PresetIdentity:
		return "Identity"
	case PresetGrayscale:
		return "Grayscale"
	case PresetSepia:
		return "Sepia"
	case PresetCool:
		return "Cool"
	case PresetWarm:
		return "Warm"
	case PresetHighContrast:
		return "HighContrast"
	case PresetInverted:
		return "Inverted"
	default:
		return "Unknown"
	}
}

// Presets lists every built-in LUT preset.
func Presets() []LutPreset {
	return []LutPreset{
		PresetIdentity, PresetGrayscale, PresetSepia, PresetCool,
		PresetWarm, PresetHighContrast, PresetInverted,
	}
}

// Lut3D is a 3D color lookup table: Size^3 RGB samples in R-fastest order.
type Lut3D struct {
	Name string
	Size int
	// Data is the flat sample array, length Size^3 * 3.
	Data []float32
	// FilePath is set for LUTs loaded from disk.
	FilePath string
}

// IdentityLut creates a LUT mapping every color to itself.
//
// Parameters:
//   - size: cube dimension (commonly 32 or 64)
//
// Returns:
//   - *Lut3D: the identity LUT
func IdentityLut(size int) *Lut3D {
	data := make([]float32, 0, size*size*size*3)
	denom := float32(size - 1)
	for b := 0; b < size; b++ {
		for g := 0; g < size; g++ {
			for r := 0; r < size; r++ {
				data = append(data, float32(r)/denom, float32(g)/denom, float32(b)/denom)
			}
		}
	}
	return &Lut3D{Name: "Identity", Size: size, Data: data}
}

// PresetLut synthesizes one of the built-in grades.
//
// Parameters:
//   - preset: which grade to build
//   - size: cube dimension
//
// Returns:
//   - *Lut3D: the preset LUT
func PresetLut(preset LutPreset, size int) *Lut3D {
	lut := IdentityLut(size)
	lut.Name = preset.String()

	entries := size * size * size
	for i := 0; i < entries; i++ {
		base := i * 3
		r, g, b := lut.Data[base], lut.Data[base+1], lut.Data[base+2]

		switch preset {
		case PresetGrayscale:
			gray := 0.299*r + 0.587*g + 0.114*b
			r, g, b = gray, gray, gray
		case PresetSepia:
			r2 := 0.393*r + 0.769*g + 0.189*b
			g2 := 0.349*r + 0.686*g + 0.168*b
			b2 := 0.272*r + 0.534*g + 0.131*b
			r, g, b = min(r2, 1), min(g2, 1), min(b2, 1)
		case PresetCool:
			r *= 0.9
			b = min(b*1.1, 1)
		case PresetWarm:
			r = min(r*1.1, 1)
			b *= 0.9
		case PresetHighContrast:
			r = common.Clamp((r-0.5)*1.5+0.5, 0, 1)
			g = common.Clamp((g-0.5)*1.5+0.5, 0, 1)
			b = common.Clamp((b-0.5)*1.5+0.5, 0, 1)
		case PresetInverted:
			r, g, b = 1-r, 1-g, 1-b
		}

		lut.Data[base] = r
		lut.Data[base+1] = g
		lut.Data[base+2] = b
	}
	return lut
}

// LoadCubeFile reads a .cube LUT from disk.
func LoadCubeFile(path string) (*Lut3D, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read LUT %q: %w", path, err)
	}
	lut, err := ParseCube(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse LUT %q: %w", path, err)
	}
	if lut.Name == "" || lut.Name == "Unnamed LUT" {
		lut.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	lut.FilePath = path
	return lut, nil
}

// ParseCube parses the .cube LUT text format: an optional TITLE, a
// LUT_3D_SIZE header, and Size^3 whitespace-separated RGB rows.
//
// Parameters:
//   - content: the file contents
//
// Returns:
//   - *Lut3D: the parsed LUT
//   - error: malformed header or wrong sample count
func ParseCube(content string) (*Lut3D, error) {
	lut := &Lut3D{Name: "Unnamed LUT"}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if rest, ok := strings.CutPrefix(line, "TITLE"); ok {
			lut.Name = strings.Trim(strings.TrimSpace(rest), `"`)
			continue
		}
		if rest, ok := strings.CutPrefix(line, "LUT_3D_SIZE"); ok {
			size, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil || size < 2 {
				return nil, fmt.Errorf("invalid LUT_3D_SIZE %q", strings.TrimSpace(rest))
			}
			lut.Size = size
			continue
		}
		if strings.HasPrefix(line, "DOMAIN_MIN") || strings.HasPrefix(line, "DOMAIN_MAX") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid LUT value %q", field)
			}
			lut.Data = append(lut.Data, float32(v))
		}
	}

	if lut.Size == 0 {
		return nil, fmt.Errorf("no LUT_3D_SIZE found")
	}
	if expected := lut.Size * lut.Size * lut.Size * 3; len(lut.Data) != expected {
		return nil, fmt.Errorf("expected %d values, got %d", expected, len(lut.Data))
	}
	return lut, nil
}

// sample reads one LUT entry.
func (l *Lut3D) sample(r, g, b int) common.Vec3 {
	index := (b*l.Size*l.Size + g*l.Size + r) * 3
	return common.Vec3{X: l.Data[index], Y: l.Data[index+1], Z: l.Data[index+2]}
}

// Apply transforms one color through the LUT with trilinear interpolation.
// This is the CPU mirror of the GPU sampling path, used by tests.
//
// Parameters:
//   - color: input RGB in [0, 1]
//
// Returns:
//   - common.Vec3: graded RGB
func (l *Lut3D) Apply(color common.Vec3) common.Vec3 {
	r := common.Clamp(color.X, 0, 1) * float32(l.Size-1)
	g := common.Clamp(color.Y, 0, 1) * float32(l.Size-1)
	b := common.Clamp(color.Z, 0, 1) * float32(l.Size-1)

	r0, g0, b0 := int(r), int(g), int(b)
	r1 := min(r0+1, l.Size-1)
	g1 := min(g0+1, l.Size-1)
	b1 := min(b0+1, l.Size-1)

	rf := r - float32(r0)
	gf := g - float32(g0)
	bf := b - float32(b0)

	c000 := l.sample(r0, g0, b0)
	c001 := l.sample(r0, g0, b1)
	c010 := l.sample(r0, g1, b0)
	c011 := l.sample(r0, g1, b1)
	c100 := l.sample(r1, g0, b0)
	c101 := l.sample(r1, g0, b1)
	c110 := l.sample(r1, g1, b0)
	c111 := l.sample(r1, g1, b1)

	c00 := c000.Lerp(c100, rf)
	c01 := c001.Lerp(c101, rf)
	c10 := c010.Lerp(c110, rf)
	c11 := c011.Lerp(c111, rf)

	c0 := c00.Lerp(c10, gf)
	c1 := c01.Lerp(c11, gf)
	return c0.Lerp(c1, bf)
}

// AtlasData lays the LUT out as a 2D RGBA atlas of size Size x Size^2
// (R across, G by B-slice down) for GPU upload; the LUT shader addresses
// it by slice and interpolates between adjacent slices.
//
// Returns:
//   - []byte: RGBA8 pixel data
//   - uint32: atlas width (Size)
//   - uint32: atlas height (Size^2)
func (l *Lut3D) AtlasData() ([]byte, uint32, uint32) {
	width := uint32(l.Size)
	height := uint32(l.Size * l.Size)
	data := make([]byte, 0, int(width)*int(height)*4)

	for slice := 0; slice < l.Size; slice++ {
		for row := 0; row < l.Size; row++ {
			for col := 0; col < l.Size; col++ {
				index := (slice*l.Size*l.Size + row*l.Size + col) * 3
				data = append(data,
					byte(common.Clamp(l.Data[index], 0, 1)*255),
					byte(common.Clamp(l.Data[index+1], 0, 1)*255),
					byte(common.Clamp(l.Data[index+2], 0, 1)*255),
					255,
				)
			}
		}
	}
	return data, width, height
}
