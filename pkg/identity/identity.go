package identity

import (
	"fmt"

	"github.com/benmeehan/location-agent/pkg/file"
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

// DeviceInfo manages the device identity stored in a JSON file.
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

// LoadDeviceInfo reads the identity file. When the file is missing or carries no
// id, a new id is generated and written back.
func (d *DeviceInfo) LoadDeviceInfo() error {
	exists, err := d.fileOps.IsFileExists(d.DeviceInfoFile)
	if err != nil {
		return fmt.Errorf("failed to stat identity file: %w", err)
	}
	if exists {
		if err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity); err != nil {
			return fmt.Errorf("failed to read identity file: %w", err)
		}
	}
	if d.Identity.ID != "" {
		return nil
	}

	d.Identity.ID = uuid.New().String()
	if err := d.fileOps.WriteJsonFile(d.DeviceInfoFile, d.Identity); err != nil {
		return fmt.Errorf("failed to save identity file: %w", err)
	}
	return nil
}

// GetDeviceID returns the device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}
