package hue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/control"
)

// fakeTransport scripts the bridge protocol for controller tests.
type fakeTransport struct {
	mu            sync.Mutex
	bridges       []BridgeInfo
	discoverErr   error
	registerAfter int // Register succeeds after this many attempts
	registerCalls int
	connectErr    error
	sent          [][]control.LampCommand
	closed        bool
}

func (f *fakeTransport) Discover(ctx context.Context) ([]BridgeInfo, error) {
	return f.bridges, f.discoverErr
}

func (f *fakeTransport) Register(ctx context.Context, bridge BridgeInfo) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.registerCalls > f.registerAfter {
		return "user-1", "key-1", nil
	}
	return "", "", errors.New("link button not pressed")
}

func (f *fakeTransport) Connect(ctx context.Context, bridge BridgeInfo, username, clientKey string) error {
	return f.connectErr
}

func (f *fakeTransport) SendColors(commands []control.LampCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, commands)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type constantSampler struct{}

func (constantSampler) SampleAverageColor(uint64) (float32, float32, float32, error) {
	return 0.5, 0.25, 1, nil
}

func TestControllerStartsDisconnected(t *testing.T) {
	transport := &fakeTransport{}
	controller := NewController(transport, constantSampler{}, Config{})
	assert.Equal(t, StateDisconnected, controller.State())
	assert.False(t, controller.IsConnected())
}

func TestDiscoverReturnsBridges(t *testing.T) {
	transport := &fakeTransport{bridges: []BridgeInfo{{ID: "abc", Address: "192.168.1.10"}}}
	controller := NewController(transport, constantSampler{}, Config{})

	bridges, err := controller.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, bridges, 1)
	assert.Equal(t, "abc", bridges[0].ID)
	assert.Equal(t, StateDisconnected, controller.State())
}

func TestDiscoverFailureSurfaces(t *testing.T) {
	transport := &fakeTransport{discoverErr: errors.New("network unreachable")}
	controller := NewController(transport, constantSampler{}, Config{})

	_, err := controller.Discover(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, controller.State())
}

func TestRegisterStoresCredentials(t *testing.T) {
	transport := &fakeTransport{registerAfter: 0}
	controller := NewController(transport, constantSampler{}, Config{})

	bridge := BridgeInfo{ID: "abc", Address: "192.168.1.10"}
	err := controller.RegisterWithBridge(context.Background(), bridge)
	require.NoError(t, err)

	config := controller.Config()
	assert.Equal(t, "user-1", config.Username)
	assert.Equal(t, "key-1", config.ClientKey)
	assert.Equal(t, "abc", config.BridgeID)
}

func TestStreamingPushesSampledColors(t *testing.T) {
	transport := &fakeTransport{}
	config := Config{
		Username:  "user-1",
		ClientKey: "key-1",
		Lamps: []LampBinding{
			{LightID: "1", LayerPartID: 7, Brightness: 0.8},
			{LightID: "2", LayerPartID: 9},
		},
	}
	controller := NewController(transport, constantSampler{}, config)
	controller.Start()
	defer controller.Stop()

	require.Eventually(t, func() bool {
		return controller.IsConnected() && transport.sentCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	transport.mu.Lock()
	first := transport.sent[0]
	transport.mu.Unlock()

	require.Len(t, first, 2)
	byID := map[string]control.LampCommand{}
	for _, cmd := range first {
		byID[cmd.LightID] = cmd
	}
	assert.InDelta(t, 0.5, float64(byID["1"].R), 1e-6)
	assert.InDelta(t, 0.25, float64(byID["1"].G), 1e-6)
	assert.InDelta(t, 1.0, float64(byID["1"].B), 1e-6)
	assert.InDelta(t, 0.8, float64(byID["1"].Brightness), 1e-6)
	// Unset brightness defaults to full.
	assert.InDelta(t, 1.0, float64(byID["2"].Brightness), 1e-6)
}

func TestStopClosesTransport(t *testing.T) {
	transport := &fakeTransport{}
	controller := NewController(transport, constantSampler{}, Config{Username: "u", ClientKey: "k"})
	controller.Start()
	controller.Stop()

	assert.True(t, transport.closed)
	assert.Equal(t, StateDisconnected, controller.State())
}

func TestLampPositionLookup(t *testing.T) {
	config := Config{Lamps: []LampBinding{{LightID: "5", Position: [3]float64{1, 2, 3}}}}
	controller := NewController(&fakeTransport{}, constantSampler{}, config)

	pos, ok := controller.LampPosition("5")
	require.True(t, ok)
	assert.Equal(t, [3]float64{1, 2, 3}, pos)

	_, ok = controller.LampPosition("99")
	assert.False(t, ok)
}
