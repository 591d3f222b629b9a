// Package hue drives Philips Hue entertainment zones from layer colors. The
// bridge wire protocol (discovery payloads, DTLS streaming, registration)
// lives behind the Transport interface; this package owns connection state,
// retry pacing, and the layer-to-lamp color routing.
package hue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/MrLongNight/mapflow-go/common"
	"github.com/MrLongNight/mapflow-go/control"
)

// ConnectionState describes the controller's bridge link.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateDiscovering
	StateRegistering
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateDiscovering:
		return "discovering"
	case StateRegistering:
		return "registering"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ErrLinkButtonTimeout is returned when the bridge button was not pressed
// within the registration window.
var ErrLinkButtonTimeout = errors.New("link button not pressed")

// BridgeInfo identifies a discovered bridge.
type BridgeInfo struct {
	ID      string
	Address string
}

// Transport is the wire boundary to the Hue system. Implementations speak
// the actual discovery/registration/streaming protocols.
type Transport interface {
	// Discover finds bridges on the network, honoring ctx's deadline.
	Discover(ctx context.Context) ([]BridgeInfo, error)

	// Register attempts one application registration against the bridge.
	// It returns ErrLinkButtonTimeout-compatible errors until the user
	// presses the link button.
	Register(ctx context.Context, bridge BridgeInfo) (username string, clientKey string, err error)

	// Connect opens the entertainment stream.
	Connect(ctx context.Context, bridge BridgeInfo, username, clientKey string) error

	// SendColors pushes one frame of lamp commands to the stream.
	SendColors(commands []control.LampCommand) error

	// Close tears the stream down.
	Close() error
}

// Config holds the persisted controller settings.
type Config struct {
	BridgeID  string `yaml:"bridge_id,omitempty"`
	Address   string `yaml:"address,omitempty"`
	Username  string `yaml:"username,omitempty"`
	ClientKey string `yaml:"client_key,omitempty"`
	// EntertainmentArea selects the streamed zone.
	EntertainmentArea string `yaml:"entertainment_area,omitempty"`
	// Lamps maps light IDs to the layer each follows.
	Lamps []LampBinding `yaml:"lamps,omitempty"`
}

// LampBinding routes one lamp to a sampled layer.
type LampBinding struct {
	LightID     string     `yaml:"light_id"`
	LayerPartID uint64     `yaml:"layer_part_id"`
	Position    [3]float64 `yaml:"position"`
	Brightness  float32    `yaml:"brightness"`
}

const (
	discoveryTimeout     = 3 * time.Second
	registrationTimeout  = 60 * time.Second
	registrationInterval = 2 * time.Second
	streamInterval       = time.Second / 50
	reconnectBackoffMax  = 30 * time.Second
)

// Controller owns the bridge connection lifecycle and the 50Hz color
// streaming loop.
type Controller struct {
	transport Transport
	sampler   control.ColorSampler

	mu     sync.Mutex
	config Config
	state  ConnectionState
	bridge BridgeInfo

	pool worker.DynamicWorkerPool

	quit chan struct{}
	wg   sync.WaitGroup
	run  bool
}

// NewController creates a disconnected controller.
//
// Parameters:
//   - transport: the protocol implementation
//   - sampler: the layer color source
//   - config: persisted settings (may be zero)
//
// Returns:
//   - *Controller: the controller
func NewController(transport Transport, sampler control.ColorSampler, config Config) *Controller {
	return &Controller{
		transport: transport,
		sampler:   sampler,
		config:    config,
		state:     StateDisconnected,
		pool:      worker.NewDynamicWorkerPool(2, 64, time.Second),
	}
}

// State returns the current connection state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the entertainment stream is live.
func (c *Controller) IsConnected() bool {
	return c.State() == StateConnected
}

// UpdateConfig replaces the controller settings. Takes effect on the next
// connection attempt.
func (c *Controller) UpdateConfig(config Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = config
}

// Config returns a copy of the current settings.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// LampPosition returns the configured 3D position of a lamp.
func (c *Controller) LampPosition(lightID string) ([3]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lamp := range c.config.Lamps {
		if lamp.LightID == lightID {
			return lamp.Position, true
		}
	}
	return [3]float64{}, false
}

func (c *Controller) setState(state ConnectionState) {
	c.mu.Lock()
	if c.state != state {
		log.Printf("hue: %s -> %s", c.state, state)
		c.state = state
	}
	c.mu.Unlock()
}

// Discover searches the network for bridges, bounded by the discovery
// timeout.
func (c *Controller) Discover(ctx context.Context) ([]BridgeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	c.setState(StateDiscovering)
	bridges, err := c.transport.Discover(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("bridge discovery failed: %w", err)
	}
	c.setState(StateDisconnected)
	return bridges, nil
}

// RegisterWithBridge polls the bridge until the user presses the link
// button or the registration window closes.
//
// Parameters:
//   - ctx: cancellation context; the 60s registration window applies on top
//   - bridge: the bridge to register with
//
// Returns:
//   - error: ErrLinkButtonTimeout when the window closes unpressed
func (c *Controller) RegisterWithBridge(ctx context.Context, bridge BridgeInfo) error {
	ctx, cancel := context.WithTimeout(ctx, registrationTimeout)
	defer cancel()

	c.setState(StateRegistering)
	ticker := time.NewTicker(registrationInterval)
	defer ticker.Stop()

	for {
		username, clientKey, err := c.transport.Register(ctx, bridge)
		if err == nil {
			c.mu.Lock()
			c.config.BridgeID = bridge.ID
			c.config.Address = bridge.Address
			c.config.Username = username
			c.config.ClientKey = clientKey
			c.bridge = bridge
			c.mu.Unlock()
			c.setState(StateDisconnected)
			return nil
		}

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return fmt.Errorf("%w within %s", ErrLinkButtonTimeout, registrationTimeout)
		case <-ticker.C:
		}
	}
}

// Start launches the streaming loop: connect (with backoff on failure),
// then push sampled colors at 50Hz until Stop.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.run {
		c.mu.Unlock()
		return
	}
	c.run = true
	c.quit = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop()
}

// Stop terminates the streaming loop and closes the transport.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.run {
		c.mu.Unlock()
		return
	}
	c.run = false
	close(c.quit)
	c.mu.Unlock()

	c.wg.Wait()
	if err := c.transport.Close(); err != nil {
		log.Printf("hue: close failed: %v", err)
	}
	c.setState(StateDisconnected)
}

func (c *Controller) loop() {
	defer c.wg.Done()

	backoff := time.Second
	for {
		select {
		case <-c.quit:
			return
		default:
		}

		c.mu.Lock()
		bridge := BridgeInfo{ID: c.config.BridgeID, Address: c.config.Address}
		username, clientKey := c.config.Username, c.config.ClientKey
		c.mu.Unlock()

		if username == "" {
			// Not registered; nothing to stream.
			select {
			case <-c.quit:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
		err := c.transport.Connect(ctx, bridge, username, clientKey)
		cancel()
		if err != nil {
			c.setState(StateDisconnected)
			log.Printf("hue: connect failed, retrying in %s: %v", backoff, err)
			select {
			case <-c.quit:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, reconnectBackoffMax)
			continue
		}

		backoff = time.Second
		c.setState(StateConnected)
		c.stream()
	}
}

// stream runs the 50Hz push loop until the link drops or Stop is called.
func (c *Controller) stream() {
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			commands := c.sampleLamps()
			if len(commands) == 0 {
				continue
			}
			if err := c.transport.SendColors(commands); err != nil {
				log.Printf("hue: stream send failed: %v", err)
				c.setState(StateDisconnected)
				return
			}
		}
	}
}

// sampleLamps reads every bound layer's average color through the worker
// pool and builds the lamp command list.
func (c *Controller) sampleLamps() []control.LampCommand {
	c.mu.Lock()
	lamps := append([]LampBinding(nil), c.config.Lamps...)
	c.mu.Unlock()

	if len(lamps) == 0 {
		return nil
	}

	commands := make([]control.LampCommand, len(lamps))
	valid := make([]bool, len(lamps))

	var wg sync.WaitGroup
	for i, lamp := range lamps {
		wg.Add(1)
		idx, binding := i, lamp
		c.pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				r, g, b, err := c.sampler.SampleAverageColor(binding.LayerPartID)
				if err != nil {
					return nil, err
				}
				brightness := binding.Brightness
				if brightness <= 0 {
					brightness = 1
				}
				commands[idx] = control.LampCommand{
					LightID:    binding.LightID,
					R:          common.Clamp(r, 0, 1),
					G:          common.Clamp(g, 0, 1),
					B:          common.Clamp(b, 0, 1),
					Brightness: brightness,
				}
				valid[idx] = true
				return nil, nil
			},
		})
	}
	wg.Wait()

	out := commands[:0]
	for i, ok := range valid {
		if ok {
			out = append(out, commands[i])
		}
	}
	return out
}
