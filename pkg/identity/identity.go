package identity

import (
	"errors"
	"os"

	"github.com/benmeehan/geo-reporter/pkg/file"
	"github.com/google/uuid"
)

// Identity holds the device's unique identifier.
type Identity struct {
	ID   string `json:"device_id,omitempty"`
	Name string `json:"device_name,omitempty"`
}

// DeviceInfoInterface defines methods for managing device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	GetDeviceID() string
}

// DeviceInfo manages the device identity file.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) *DeviceInfo {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
	}
}

// LoadDeviceInfo reads the identity file. A missing file or an empty ID
// results in a freshly generated ID that is written back.
func (d *DeviceInfo) LoadDeviceInfo() error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if d.Identity.ID != "" {
		return nil
	}

	d.Identity.ID = uuid.NewString()
	return d.fileOps.WriteJsonFile(d.DeviceInfoFile, d.Identity)
}

// GetDeviceID returns the current device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}
