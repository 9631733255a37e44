package neom8

// Position is a single decoded horizontal fix.
// The zero value means "no fix": the receiver had no valid solution, the
// sentence was malformed, or acquisition timed out.
type Position struct {
	Latitude  float64 `json:"latitude"`  // decimal degrees, south negative
	Longitude float64 `json:"longitude"` // decimal degrees, west negative
	ErrorM    float64 `json:"errorM"`    // 1σ horizontal error estimate, meters
	Time      string  `json:"time"`      // UTC hh:mm:ss
}

// Velocity is a single decoded speed/course fix. Course is nil when the
// ground speed is too low for the receiver to compute a meaningful course.
type Velocity struct {
	SpeedKnots float64  `json:"speedKnots"`
	CourseDeg  *float64 `json:"courseDeg"`
	MagVarDeg  float64  `json:"magVarDeg"` // magnetic variation, west negative
	Date       string   `json:"date"`      // ddmmyy
	Time       string   `json:"time"`      // UTC hh:mm:ss
}

// Altitude is a single decoded vertical fix.
type Altitude struct {
	AltitudeM float64 `json:"altitudeM"` // above mean sea level
	GeoidSepM float64 `json:"geoidSepM"` // geoid separation
	ErrorM    float64 `json:"errorM"`    // 1σ vertical error estimate, meters
	Time      string  `json:"time"`      // UTC hh:mm:ss
}

// Fix combines position, velocity and altitude decoded from one receive
// cycle, plus a combined 3D error at 2σ confidence. The zero value means
// "no fix"; partial data is never mixed in.
type Fix struct {
	Valid      bool     `json:"valid"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	AltitudeM  float64  `json:"altitudeM"`
	GeoidSepM  float64  `json:"geoidSepM"`
	ErrorM     float64  `json:"errorM"` // 2σ 3D position error, meters
	SpeedKnots float64  `json:"speedKnots"`
	CourseDeg  *float64 `json:"courseDeg"`
	MagVarDeg  float64  `json:"magVarDeg"`
	Date       string   `json:"date"`
	Time       string   `json:"time"`
}

// AckResult is the receiver's answer to a configuration command.
type AckResult int

const (
	// AckTimeout means no acknowledgement arrived within the deadline.
	AckTimeout AckResult = iota
	// Ack means the receiver accepted the command.
	Ack
	// Nack means the receiver rejected the command.
	Nack
)

func (r AckResult) String() string {
	switch r {
	case Ack:
		return "ACK"
	case Nack:
		return "NACK"
	default:
		return "timeout"
	}
}
