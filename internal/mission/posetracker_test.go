package mission

import (
	"sync"
	"testing"

	"github.com/ferrule-robotics/missiond/internal/geom"
)

func TestPoseTrackerFreshness(t *testing.T) {
	tr := NewPoseTracker()

	if _, fresh := tr.Estimate(); fresh {
		t.Fatal("new tracker reported a fresh estimate")
	}

	tr.Update(geom.Pose{X: 1, Y: 2, Yaw: 0.5})
	pose, fresh := tr.Estimate()
	if !fresh {
		t.Fatal("tracker not fresh after Update")
	}
	if pose.X != 1 || pose.Y != 2 || pose.Yaw != 0.5 {
		t.Errorf("pose = %+v, want {1 2 0.5}", pose)
	}

	// Freshness never reverts; later updates only overwrite the pose.
	tr.Update(geom.Pose{X: 3})
	pose, fresh = tr.Estimate()
	if !fresh {
		t.Fatal("freshness reverted after second Update")
	}
	if pose.X != 3 || pose.Y != 0 {
		t.Errorf("pose = %+v, want {3 0 0}", pose)
	}
}

func TestPoseTrackerSnapshotNotTorn(t *testing.T) {
	// Updates write correlated triples; a reader must never observe a
	// position from one update paired with a heading from another.
	tr := NewPoseTracker()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			v := float64(i)
			tr.Update(geom.Pose{X: v, Y: v, Yaw: v})
		}
	}()

	for i := 0; i < 10000; i++ {
		pose, fresh := tr.Estimate()
		if !fresh {
			continue
		}
		if pose.X != pose.Y || pose.X != pose.Yaw {
			t.Fatalf("torn estimate: %+v", pose)
		}
	}
	close(stop)
	wg.Wait()
}
