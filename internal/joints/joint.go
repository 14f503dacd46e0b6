package joints

import (
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Role tags what body part a joint drives. The bridge only emits manual joints.
type Role string

const (
	RoleManual Role = "manual"
)

// TrackingState reports how trustworthy a joint's pose is.
type TrackingState string

const (
	NotTracked TrackingState = "not_tracked"
	Tracked    TrackingState = "tracked"
	Inferred   TrackingState = "inferred"
)

// InvalidName is the name of the placeholder joint installed when no
// tracked objects are available.
const InvalidName = "INVALID"

// Identity is the unit quaternion with no rotation.
var Identity = quat.Number{Real: 1}

// Pose is the full per-frame state of a joint.
type Pose struct {
	Position            r3.Vec
	Orientation         quat.Number
	Velocity            r3.Vec
	Acceleration        r3.Vec
	AngularVelocity     r3.Vec
	AngularAcceleration r3.Vec
	State               TrackingState
}

// Joint is a named, posed point exposed to the host. Name and Role never
// change after construction; the pose is replaced as a whole.
type Joint struct {
	Name string
	Role Role

	mu   sync.RWMutex
	pose Pose
}

func newJoint(name string) *Joint {
	return &Joint{
		Name: name,
		Role: RoleManual,
		pose: Pose{Orientation: Identity, State: NotTracked},
	}
}

// Pose returns a consistent copy of the joint's pose.
func (j *Joint) Pose() Pose {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.pose
}

// Set replaces the pose in one step so readers never see a mix of two frames.
func (j *Joint) Set(p Pose) {
	j.mu.Lock()
	j.pose = p
	j.mu.Unlock()
}

// State returns the current tracking state.
func (j *Joint) State() TrackingState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.pose.State
}

// View is the JSON form of a joint.
type View struct {
	Name                string        `json:"name"`
	Role                Role          `json:"role"`
	State               TrackingState `json:"tracking_state"`
	Position            [3]float64    `json:"position"`
	Orientation         [4]float64    `json:"orientation"` // x, y, z, w
	Velocity            [3]float64    `json:"velocity"`
	Acceleration        [3]float64    `json:"acceleration"`
	AngularVelocity     [3]float64    `json:"angular_velocity"`
	AngularAcceleration [3]float64    `json:"angular_acceleration"`
}

// View captures the joint for serialisation.
func (j *Joint) View() View {
	p := j.Pose()
	return View{
		Name:                j.Name,
		Role:                j.Role,
		State:               p.State,
		Position:            vec(p.Position),
		Orientation:         [4]float64{p.Orientation.Imag, p.Orientation.Jmag, p.Orientation.Kmag, p.Orientation.Real},
		Velocity:            vec(p.Velocity),
		Acceleration:        vec(p.Acceleration),
		AngularVelocity:     vec(p.AngularVelocity),
		AngularAcceleration: vec(p.AngularAcceleration),
	}
}

func vec(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
