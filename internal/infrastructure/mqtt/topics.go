package mqtt

import "fmt"

// Topic prefixes for the Lumen MQTT surface.
//
// All topics use the flat scheme: lumen/{category}/{id}[/suffix]
const (
	// TopicPrefix is the base for all Lumen topics.
	TopicPrefix = "lumen"

	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "lumen/device"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lumen/system"
)

// Topics provides builders for Lumen MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("AA:BB:CC:DD:EE:FF:11:22")
//	// Returns: "lumen/device/AA:BB:CC:DD:EE:FF:11:22/state"
type Topics struct{}

// DeviceState returns the retained state topic for a device.
// Published on every refresh cycle and after every optimistic command.
//
// Example: lumen/device/AA:BB:CC:DD:EE:FF:11:22/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixDevice, deviceID)
}

// DeviceCommand returns the command topic for a device.
// External systems publish capability commands here for Lumen to forward
// to the cloud.
//
// Example: lumen/device/AA:BB:CC:DD:EE:FF:11:22/command
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixDevice, deviceID)
}

// SystemStatus returns the system status topic.
// Carries the retained online/offline payload and the LWT.
//
// Example: lumen/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemReauth returns the topic signalling that the cloud API key was
// rejected and operator action is required.
//
// Example: lumen/system/reauth
func (Topics) SystemReauth() string {
	return fmt.Sprintf("%s/reauth", TopicPrefixSystem)
}

// SystemRateLimit returns the topic for rate limit quota snapshots.
//
// Example: lumen/system/ratelimit
func (Topics) SystemRateLimit() string {
	return fmt.Sprintf("%s/ratelimit", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching all device state topics.
//
// Pattern: lumen/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixDevice)
}

// AllDeviceCommands returns a pattern matching all device command topics.
//
// Pattern: lumen/device/+/command
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/+/command", TopicPrefixDevice)
}

// AllTopics returns a pattern matching all Lumen topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: lumen/#
func (Topics) AllTopics() string {
	return "lumen/#"
}
