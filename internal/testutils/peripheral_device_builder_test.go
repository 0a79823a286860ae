package testutils

import (
	"context"
	"errors"
	"testing"

	"github.com/srg/stillmon/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// PeripheralDeviceBuilderTestSuite tests the fake peripheral used across packages
type PeripheralDeviceBuilderTestSuite struct {
	suite.Suite
}

func (s *PeripheralDeviceBuilderTestSuite) TestProfileFromJSON() {
	// GOAL: Verify FromJSON builds services and characteristics in order with parsed properties
	//
	// TEST SCENARIO: JSON profile with two services → connect → services and properties match

	dev := CreateMockPeripheralDeviceFromJSON(`{
		"name": "Still-BT",
		"services": [
			{"uuid": "180a", "characteristics": [{"uuid": "2a29", "properties": "read"}]},
			{"uuid": "6e400001-b5a3-f393-e0a9-e50e24dcca9e", "characteristics": [
				{"uuid": "6e400003-b5a3-f393-e0a9-e50e24dcca9e", "properties": "notify"},
				{"uuid": "6e400002-b5a3-f393-e0a9-e50e24dcca9e", "properties": "write,write-without-response"}
			]}
		]
	}`).Build()

	s.Equal("Still-BT", dev.Name())
	s.Require().NoError(dev.Connect(context.Background(), nil))

	services := dev.GetConnection().Services()
	s.Require().Len(services, 2)
	s.Equal("180a", services[0].UUID())
	s.Equal("6e400001b5a3f393e0a9e50e24dcca9e", services[1].UUID())

	chars := services[1].GetCharacteristics()
	s.Require().Len(chars, 2)
	s.True(device.CanNotify(chars[0].GetProperties()))
	s.False(device.CanWrite(chars[0].GetProperties()))
	s.NotNil(chars[1].GetProperties().WriteWithoutResponse())
	s.Nil(chars[1].GetProperties().Notify())
}

func (s *PeripheralDeviceBuilderTestSuite) TestNotifyAndWrite() {
	dev := CreateSerialPeripheral().Build()
	s.Require().NoError(dev.Connect(context.Background(), nil))

	svc, err := dev.GetConnection().GetService("0000ffe0-0000-1000-8000-00805f9b34fb")
	s.Require().NoError(err)
	char := svc.GetCharacteristics()[0]

	var got []byte
	s.Require().NoError(char.Subscribe(func(b []byte) { got = append(got, b...) }))
	s.True(dev.Subscribed("ffe1"))
	s.True(dev.Notify("ffe1", []byte("<Z00000100>")))
	s.Equal("<Z00000100>", string(got))

	s.Require().NoError(char.Write([]byte("Z0\r"), false))
	s.Equal([]string{"Z0\r"}, dev.WrittenStrings())

	boom := errors.New("gatt write failed")
	dev.FailWrites(boom)
	s.ErrorIs(char.Write([]byte("R0\r"), false), boom)
}

func (s *PeripheralDeviceBuilderTestSuite) TestLinkLoss() {
	dev := CreateSerialPeripheral().Build()
	s.Require().NoError(dev.Connect(context.Background(), nil))
	ctx := dev.GetConnection().ConnectionContext()

	dev.DropLink()

	<-ctx.Done()
	s.ErrorIs(context.Cause(ctx), device.ErrNotConnected, "link loss MUST cancel with ErrNotConnected")
	s.False(dev.IsConnected())
}

func (s *PeripheralDeviceBuilderTestSuite) TestMissingService() {
	dev := CreateSerialPeripheral().Build()
	s.Require().NoError(dev.Connect(context.Background(), nil))

	_, err := dev.GetConnection().GetService("fff0")
	var nf *device.NotFoundError
	s.ErrorAs(err, &nf)
}

func TestPeripheralDeviceBuilderTestSuite(t *testing.T) {
	suite.Run(t, new(PeripheralDeviceBuilderTestSuite))
}

func TestFakeScanner(t *testing.T) {
	ads := []device.Advertisement{
		CreateMockAdvertisement("Still-BT", "AA:BB:CC:DD:EE:FF", -40).WithServices("ffe0").Build(),
		CreateMockAdvertisementFromJSON(`{"name":"Thermo","address":"11:22:33:44:55:66","connectable":false}`).Build(),
	}

	var seen []string
	err := NewFakeScanner(ads...).Scan(context.Background(), false, func(a device.Advertisement) {
		seen = append(seen, a.Addr())
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66"}, seen)
	assert.Equal(t, []string{"ffe0"}, ads[0].Services())
	assert.False(t, ads[1].Connectable())
}
