package engine

// Grid calibration pattern generation. Outputs with no source render this
// pattern, and mapping mode replaces every source with a numbered grid so
// layers can be identified from the projection surface.

// gridCellSize is the pattern cell pitch in pixels.
const gridCellSize = 64

// GenerateGridTexture builds an RGBA grid pattern with the layer ID drawn
// in the center, used for physical alignment.
//
// Parameters:
//   - width, height: texture size in pixels
//   - layerID: the number drawn at the center
//
// Returns:
//   - []byte: RGBA pixel data
func GenerateGridTexture(width, height uint32, layerID uint64) []byte {
	data := make([]byte, int(width)*int(height)*4)

	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			i := (int(y)*int(width) + int(x)) * 4

			onGridLine := x%gridCellSize == 0 || y%gridCellSize == 0
			// Border frame two pixels wide.
			onBorder := x < 2 || y < 2 || x >= width-2 || y >= height-2
			// Center crosshair.
			onCross := (x == width/2 && y > height/2-gridCellSize/2 && y < height/2+gridCellSize/2) ||
				(y == height/2 && x > width/2-gridCellSize/2 && x < width/2+gridCellSize/2)

			switch {
			case onBorder:
				data[i], data[i+1], data[i+2], data[i+3] = 255, 255, 255, 255
			case onCross:
				data[i], data[i+1], data[i+2], data[i+3] = 255, 64, 64, 255
			case onGridLine:
				data[i], data[i+1], data[i+2], data[i+3] = 128, 128, 128, 255
			default:
				data[i], data[i+1], data[i+2], data[i+3] = 16, 16, 16, 255
			}
		}
	}

	drawNumber(data, width, height, layerID)
	return data
}

// digitRows is a 3x5 bitmap font for 0-9, one row per entry, 3 bits used.
var digitRows = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b010, 0b010, 0b010}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// drawNumber renders the decimal digits of n centered above the crosshair.
func drawNumber(data []byte, width, height uint32, n uint64) {
	const scale = 8
	digits := []int{}
	if n == 0 {
		digits = []int{0}
	}
	for v := n; v > 0; v /= 10 {
		digits = append([]int{int(v % 10)}, digits...)
	}

	totalWidth := len(digits)*4*scale - scale
	startX := int(width)/2 - totalWidth/2
	startY := int(height)/2 - 8*scale

	for d, digit := range digits {
		for row := 0; row < 5; row++ {
			bits := digitRows[digit][row]
			for col := 0; col < 3; col++ {
				if bits&(1<<(2-col)) == 0 {
					continue
				}
				for sy := 0; sy < scale; sy++ {
					for sx := 0; sx < scale; sx++ {
						x := startX + d*4*scale + col*scale + sx
						y := startY + row*scale + sy
						if x < 0 || y < 0 || x >= int(width) || y >= int(height) {
							continue
						}
						i := (y*int(width) + x) * 4
						data[i], data[i+1], data[i+2], data[i+3] = 255, 255, 0, 255
					}
				}
			}
		}
	}
}
