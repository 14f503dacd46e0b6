package adapter

import (
	"fmt"

	"github.com/banshee-data/touchlink/internal/handler"
)

// Resync rebuilds the joint list from the handler's current object set.
//
// The new list is published as a fresh snapshot, so a frame in flight keeps
// working on the list it already loaded. The host update lock is still
// taken when it is free, and released again before the status refresh. If
// the handler fails, the previous list stays published.
func (d *Device) Resync() {
	d.host.Log("Refreshing tracked objects vector, locking the update thread...", SeverityInfo)

	lock := d.host.UpdateLock()
	locked := lock != nil && lock.TryLock()
	if !locked {
		d.host.Log("Couldn't lock the update thread, refreshing anyway", SeverityWarning)
	}
	release := func() {
		if locked {
			lock.Unlock()
			locked = false
		}
	}
	defer release()

	var objects []handler.Object
	err := guard(func() error {
		var err error
		objects, err = d.handler.TrackedObjects()
		return err
	})
	if err != nil {
		d.failedResyncs.Add(1)
		d.host.Log(fmt.Sprintf("Couldn't connect to the TouchLink Service! %v", err), SeverityError)
		return
	}

	names := make([]string, 0, len(objects))
	if len(objects) == 0 {
		d.host.Log("Didn't find any valid objects within the TouchLink Service!", SeverityWarning)
	}
	for _, o := range objects {
		d.host.Log(fmt.Sprintf("Found a valid, usable tracked object: %s", o), SeverityInfo)
		names = append(names, o.Name)
	}

	snap := d.joints.ReplaceAll(names)
	d.resyncs.Add(1)
	logf("published joint snapshot %s (generation %d, %d joints)", snap.ID, snap.Generation, snap.Len())

	release()
	d.host.Log("Refreshing the UI...", SeverityInfo)
	d.host.RefreshStatusInterface()
}
