package world

import "math"

// Pose is the last known player location (spec §3 "PlayerPose").
type Pose struct {
	X, Y, Z    float64
	Yaw, Pitch float32
}

// positionEpsilon is the minimum positional delta (spec §3, §4.6) below
// which a new pose is not considered a change worth broadcasting.
const positionEpsilon = 0.01

// ChangedBeyondEpsilon reports whether p differs from prev by more than
// positionEpsilon on any axis (spec §4.6: "broadcast on change beyond
// epsilon").
func (p Pose) ChangedBeyondEpsilon(prev Pose) bool {
	return math.Abs(p.X-prev.X) > positionEpsilon ||
		math.Abs(p.Y-prev.Y) > positionEpsilon ||
		math.Abs(p.Z-prev.Z) > positionEpsilon
}
