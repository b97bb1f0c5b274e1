package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetrouting/pkg/logger"
	"fleetrouting/services/planner-svc/internal/store"
)

func init() {
	logger.Init("error")
}

type fakeCreator struct {
	created []*store.Shipment
	err     error
}

func (f *fakeCreator) Create(_ context.Context, s *store.Shipment) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, s)
	return nil
}

func TestDecodeOrder(t *testing.T) {
	payload := []byte(`{
		"order_id": "ord-1",
		"origin": {"lat": 55.01, "lng": 37.0},
		"destination": {"lat": 55.02, "lng": 37.1},
		"demand": 12.5
	}`)

	s, err := decodeOrder(payload)

	require.NoError(t, err)
	assert.Equal(t, "ord-1", s.ID)
	assert.Equal(t, 55.01, s.OriginLat)
	assert.Equal(t, 37.1, s.DestinationLng)
	assert.Equal(t, 12.5, s.Demand)
	assert.Equal(t, store.ShipmentPending, s.Status)
}

func TestDecodeOrder_MissingDemandDefaultsToZero(t *testing.T) {
	payload := []byte(`{
		"order_id": "ord-2",
		"origin": {"lat": 1, "lng": 2},
		"destination": {"lat": 3, "lng": 4}
	}`)

	s, err := decodeOrder(payload)

	require.NoError(t, err)
	assert.Zero(t, s.Demand)
}

func TestDecodeOrder_NegativeDemandClamped(t *testing.T) {
	payload := []byte(`{
		"order_id": "ord-3",
		"origin": {"lat": 1, "lng": 2},
		"destination": {"lat": 3, "lng": 4},
		"demand": -7
	}`)

	s, err := decodeOrder(payload)

	require.NoError(t, err)
	assert.Zero(t, s.Demand)
}

func TestDecodeOrder_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"order_id":`},
		{"missing order id", `{"origin": {"lat": 1, "lng": 2}, "destination": {"lat": 3, "lng": 4}}`},
		{"missing origin", `{"order_id": "x", "destination": {"lat": 3, "lng": 4}}`},
		{"partial coordinates", `{"order_id": "x", "origin": {"lat": 1}, "destination": {"lat": 3, "lng": 4}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeOrder([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestHandle_StoresShipment(t *testing.T) {
	creator := &fakeCreator{}
	c := &Consumer{shipments: creator}

	err := c.handle(context.Background(), []byte(`{
		"order_id": "ord-1",
		"origin": {"lat": 1, "lng": 2},
		"destination": {"lat": 3, "lng": 4},
		"demand": 5
	}`))

	require.NoError(t, err)
	require.Len(t, creator.created, 1)
	assert.Equal(t, "ord-1", creator.created[0].ID)
}

func TestHandle_StoreFailurePropagates(t *testing.T) {
	creator := &fakeCreator{err: errors.New("db down")}
	c := &Consumer{shipments: creator}

	err := c.handle(context.Background(), []byte(`{
		"order_id": "ord-1",
		"origin": {"lat": 1, "lng": 2},
		"destination": {"lat": 3, "lng": 4}
	}`))

	assert.ErrorContains(t, err, "failed to store shipment")
}

func TestHandle_MalformedEventDoesNotStore(t *testing.T) {
	creator := &fakeCreator{}
	c := &Consumer{shipments: creator}

	err := c.handle(context.Background(), []byte(`not json`))

	assert.Error(t, err)
	assert.Empty(t, creator.created)
}
