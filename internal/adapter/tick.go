package adapter

import (
	"fmt"

	"github.com/banshee-data/touchlink/internal/handler"
	"github.com/banshee-data/touchlink/internal/joints"
)

// Update runs one frame: the handler advances, then each joint of the
// current snapshot receives the pose of the object at the same index. It
// does nothing until the device is loaded and the service is healthy.
func (d *Device) Update() {
	if !d.loaded.Load() || !d.handler.IsInitialized() || !d.Status().Ready() {
		return
	}

	if err := guard(d.tick); err != nil {
		d.failedTicks.Add(1)
		d.host.Log(fmt.Sprintf("Couldn't update TouchLink Service! %v", err), SeverityError)
		return
	}
	d.frames.Add(1)
}

func (d *Device) tick() error {
	if err := d.handler.Update(); err != nil {
		return err
	}
	objects, err := d.handler.TrackedObjects()
	if err != nil {
		return err
	}

	// Objects are matched to joints by position. Extra entries on either
	// side are left alone until the next resync.
	d.joints.ForEachIndexed(func(i int, j *joints.Joint) bool {
		if i >= len(objects) {
			return false
		}
		j.Set(poseOf(objects[i]))
		return true
	})
	return nil
}

func poseOf(o handler.Object) joints.Pose {
	return joints.Pose{
		Position:            o.Position,
		Orientation:         o.Orientation,
		Velocity:            o.Velocity,
		Acceleration:        o.Acceleration,
		AngularVelocity:     o.AngularVelocity,
		AngularAcceleration: o.AngularAcceleration,
		State:               joints.Tracked,
	}
}
