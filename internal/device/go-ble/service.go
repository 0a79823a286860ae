package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/stillmon/internal/bledb"
	"github.com/srg/stillmon/internal/device"
)

// BLEService represents a GATT service and its characteristics in discovery order
type BLEService struct {
	uuid            string
	knownName       string
	Characteristics []*BLECharacteristic
}

func newService(s *ble.Service, conn *BLEConnection) *BLEService {
	rawUUID := s.UUID.String()
	svc := &BLEService{
		uuid:            device.NormalizeUUID(rawUUID),
		knownName:       bledb.LookupService(rawUUID),
		Characteristics: make([]*BLECharacteristic, 0, len(s.Characteristics)),
	}
	for _, c := range s.Characteristics {
		svc.Characteristics = append(svc.Characteristics, NewCharacteristic(c, conn))
	}
	return svc
}

func (s *BLEService) UUID() string {
	return s.uuid
}

func (s *BLEService) KnownName() string {
	return s.knownName
}

func (s *BLEService) GetCharacteristics() []device.Characteristic {
	result := make([]device.Characteristic, 0, len(s.Characteristics))
	for _, char := range s.Characteristics {
		result = append(result, char)
	}
	return result
}
