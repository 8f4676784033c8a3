package relay

import "time"

// Kind identifies the category of telemetry an event carries.
type Kind string

const (
	KindPHReading     Kind = "phReading"
	KindServoAction   Kind = "servoAction"
	KindRainStatus    Kind = "rainStatus"
	KindImageDetected Kind = "imageDetected"
)

// Channel returns the wire channel name dashboard clients listen on
// for this kind of event.
func (k Kind) Channel() string {
	switch k {
	case KindPHReading:
		return "phUpdate"
	case KindServoAction:
		return "servoLog"
	case KindRainStatus:
		return "curahHujanUpdate"
	case KindImageDetected:
		return "newImageUrl"
	}
	return string(k)
}

// Event is the unit of broadcast. Events are immutable once constructed
// and carry no identity beyond their content; the relay performs no
// deduplication.
type Event struct {
	Kind       Kind
	Payload    any
	Source     string
	OccurredAt time.Time
}

// ServoLog is the payload broadcast on the servoLog channel.
type ServoLog struct {
	Waktu string `json:"waktu"`
	Jenis string `json:"jenis"`
}

// ImageNotice is the payload broadcast on the newImageUrl channel.
type ImageNotice struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}
