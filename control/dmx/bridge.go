package dmx

import (
	"log"
	"sync"
	"time"

	"github.com/MrLongNight/mapflow-go/common"
	"github.com/MrLongNight/mapflow-go/control"
)

// FixtureMapping routes one sampled layer to a block of DMX channels.
type FixtureMapping struct {
	// LayerPartID is the layer whose average color drives the fixture.
	LayerPartID uint64 `yaml:"layer_part_id"`
	// StartChannel is the 1-based DMX address of the red channel; green and
	// blue follow consecutively.
	StartChannel int `yaml:"start_channel"`
	// Dimmer scales the sampled color (0..1).
	Dimmer float32 `yaml:"dimmer"`
}

// Bridge samples layer colors on a fixed cadence and streams them to a
// universe as RGB fixture data. Sampling happens off the render thread via
// the ColorSampler boundary.
type Bridge struct {
	sender   *SacnSender
	sampler  control.ColorSampler
	interval time.Duration

	mu       sync.Mutex
	fixtures []FixtureMapping
	channels [512]byte

	quit chan struct{}
	wg   sync.WaitGroup
	run  bool
}

// NewBridge creates a stopped bridge at the default 30Hz cadence.
//
// Parameters:
//   - sender: the sACN sender to stream through
//   - sampler: the color source
//
// Returns:
//   - *Bridge: the bridge
func NewBridge(sender *SacnSender, sampler control.ColorSampler) *Bridge {
	return &Bridge{
		sender:   sender,
		sampler:  sampler,
		interval: time.Second / 30,
	}
}

// SetFixtures replaces the fixture mappings.
func (b *Bridge) SetFixtures(fixtures []FixtureMapping) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fixtures = append(b.fixtures[:0], fixtures...)
}

// SetInterval changes the sampling cadence.
func (b *Bridge) SetInterval(interval time.Duration) {
	if interval > 0 {
		b.interval = interval
	}
}

// Start launches the sampling loop. No-op when running.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run {
		return
	}
	b.run = true
	b.quit = make(chan struct{})
	b.wg.Add(1)
	go b.loop()
	log.Printf("dmx: bridge started on universe %d", b.sender.Universe())
}

// Stop terminates the sampling loop and joins it.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.run {
		b.mu.Unlock()
		return
	}
	b.run = false
	close(b.quit)
	b.mu.Unlock()

	b.wg.Wait()
	log.Printf("dmx: bridge stopped")
}

func (b *Bridge) loop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.quit:
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

// tick samples every fixture and sends one universe frame.
func (b *Bridge) tick() {
	b.mu.Lock()
	fixtures := append([]FixtureMapping(nil), b.fixtures...)
	b.mu.Unlock()

	for _, fixture := range fixtures {
		r, g, bl, err := b.sampler.SampleAverageColor(fixture.LayerPartID)
		if err != nil {
			continue // layer not rendered yet; keep previous channel values
		}
		b.ApplyFixture(fixture, r, g, bl)
	}

	b.mu.Lock()
	channels := b.channels
	b.mu.Unlock()

	if err := b.sender.SendDMX(&channels); err != nil {
		log.Printf("dmx: send failed: %v", err)
	}
}

// ApplyFixture writes one fixture's sampled color into the channel buffer.
//
// Parameters:
//   - fixture: the mapping to apply
//   - r, g, bl: sampled color in [0, 1]
func (b *Bridge) ApplyFixture(fixture FixtureMapping, r, g, bl float32) {
	idx := fixture.StartChannel - 1
	if idx < 0 || idx+2 >= 512 {
		return
	}
	dimmer := fixture.Dimmer
	if dimmer <= 0 {
		dimmer = 1
	}
	b.mu.Lock()
	b.channels[idx] = byte(common.Clamp(r*dimmer, 0, 1) * 255)
	b.channels[idx+1] = byte(common.Clamp(g*dimmer, 0, 1) * 255)
	b.channels[idx+2] = byte(common.Clamp(bl*dimmer, 0, 1) * 255)
	b.mu.Unlock()
}

// Channels returns a copy of the current channel buffer.
func (b *Bridge) Channels() [512]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channels
}
