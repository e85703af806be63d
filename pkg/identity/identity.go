package identity

import "fmt"

// Name length constants.
const (
	// MaxNameLength is the hard limit of the provisioning transport's
	// advertised name.
	MaxNameLength = 32

	// MaxProjectLength is the maximum project name portion kept in the
	// derived name.
	MaxProjectLength = 25

	// HardwareIDMask selects the low 24 bits of the hardware identifier
	// for the name suffix.
	HardwareIDMask = 0xffffff
)

// DeviceIdentity is the device's derived identity. It is built once at
// startup and never mutated afterwards.
type DeviceIdentity struct {
	// ProjectName is the build metadata project name, untruncated.
	ProjectName string

	// HardwareID is the 48-bit hardware-unique identifier.
	HardwareID uint64

	// Name is the derived device name, at most MaxNameLength characters.
	Name string
}

// Derive builds a DeviceIdentity from build metadata and the hardware
// identifier. The name is "<project[:25]>-<id&0xffffff as %06x>", which is
// at most 32 characters.
func Derive(projectName string, hardwareID uint64) DeviceIdentity {
	project := projectName
	if len(project) > MaxProjectLength {
		project = project[:MaxProjectLength]
	}

	return DeviceIdentity{
		ProjectName: projectName,
		HardwareID:  hardwareID,
		Name:        fmt.Sprintf("%s-%06x", project, hardwareID&HardwareIDMask),
	}
}
