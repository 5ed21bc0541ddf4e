package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/smithy-go"

	"ec2cluster/internal/platform/ec2"
)

// fakeClient is an in-memory ec2.Client. Instances auto-advance one
// lifecycle step per observation (pending to running, shutting-down to
// terminated) so wait loops converge after a poll or two.
type fakeClient struct {
	mu sync.Mutex

	nextID           int
	instances        map[string]*fakeInstance
	securityGroups   map[string]string
	placementGroups  map[string]bool
	capacityFailures map[string]int
	runErrs          map[string]error
	calls            []string
}

type fakeInstance struct {
	id        string
	name      string
	cluster   string
	state     ec2.InstanceState
	publicIP  string
	privateIP string
	sgIDs     []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		instances:        map[string]*fakeInstance{},
		securityGroups:   map[string]string{},
		placementGroups:  map[string]bool{},
		capacityFailures: map[string]int{},
		runErrs:          map[string]error{},
	}
}

func (f *fakeClient) failCapacity(nodeName string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capacityFailures[nodeName] = times
}

func (f *fakeClient) failRun(nodeName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runErrs[nodeName] = err
}

// seed plants a running instance directly, bypassing RunInstance.
func (f *fakeClient) seed(name, cluster string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(name, cluster, ec2.StateRunning, nil).id
}

// seedState plants an instance in an arbitrary state. States outside
// the advance() transitions stay put, which models a stuck node.
func (f *fakeClient) seedState(name, cluster string, state ec2.InstanceState) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(name, cluster, state, nil).id
}

func (f *fakeClient) addLocked(name, cluster string, state ec2.InstanceState, sgIDs []string) *fakeInstance {
	f.nextID++
	inst := &fakeInstance{
		id:        fmt.Sprintf("i-%08d", f.nextID),
		name:      name,
		cluster:   cluster,
		state:     state,
		publicIP:  fmt.Sprintf("203.0.113.%d", f.nextID),
		privateIP: fmt.Sprintf("10.0.0.%d", f.nextID),
		sgIDs:     append([]string(nil), sgIDs...),
	}
	f.instances[inst.id] = inst
	return inst
}

func (f *fakeClient) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeClient) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) callCount(call string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

func (inst *fakeInstance) advance() {
	switch inst.state {
	case ec2.StatePending:
		inst.state = ec2.StateRunning
	case ec2.StateShuttingDown:
		inst.state = ec2.StateTerminated
	}
}

func (inst *fakeInstance) observe() *ec2.Instance {
	return &ec2.Instance{
		ID:               inst.id,
		State:            inst.state,
		PublicIP:         inst.publicIP,
		PrivateIP:        inst.privateIP,
		SecurityGroupIDs: append([]string(nil), inst.sgIDs...),
	}
}

func capacityErr() error {
	return &smithy.GenericAPIError{Code: "InsufficientInstanceCapacity", Message: "no capacity"}
}

func (f *fakeClient) RunInstance(_ context.Context, spec ec2.NodeSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RunInstance:" + spec.Name)

	if err := f.runErrs[spec.Name]; err != nil {
		return "", err
	}
	if f.capacityFailures[spec.Name] > 0 {
		f.capacityFailures[spec.Name]--
		return "", capacityErr()
	}
	inst := f.addLocked(spec.Name, spec.ClusterName, ec2.StatePending, spec.SecurityGroupIDs)
	return inst.id, nil
}

func (f *fakeClient) InstanceByName(_ context.Context, name string, states ...ec2.InstanceState) (*ec2.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(states) == 0 {
		states = []ec2.InstanceState{ec2.StatePending, ec2.StateRunning}
	}
	for _, inst := range f.instances {
		if inst.name != name {
			continue
		}
		inst.advance()
		for _, s := range states {
			if inst.state == s {
				return inst.observe(), nil
			}
		}
	}
	return nil, nil
}

func (f *fakeClient) InstanceByID(_ context.Context, id string) (*ec2.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok {
		return nil, nil
	}
	inst.advance()
	return inst.observe(), nil
}

func (f *fakeClient) TerminateInstance(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TerminateInstance:" + id)
	inst, ok := f.instances[id]
	if !ok {
		return &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound"}
	}
	if inst.state != ec2.StateTerminated {
		inst.state = ec2.StateShuttingDown
	}
	inst.name = ""
	return nil
}

func (f *fakeClient) DetachSecurityGroup(_ context.Context, instanceID, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DetachSecurityGroup:" + instanceID)
	inst, ok := f.instances[instanceID]
	if !ok {
		return &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound"}
	}
	kept := inst.sgIDs[:0]
	for _, id := range inst.sgIDs {
		if id != groupID {
			kept = append(kept, id)
		}
	}
	inst.sgIDs = kept
	return nil
}

func (f *fakeClient) EnsureSecurityGroup(_ context.Context, name, vpcID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EnsureSecurityGroup:" + name)
	if id, ok := f.securityGroups[name]; ok {
		return id, nil
	}
	f.nextID++
	id := fmt.Sprintf("sg-%08d", f.nextID)
	f.securityGroups[name] = id
	return id, nil
}

func (f *fakeClient) SecurityGroupID(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.securityGroups[name], nil
}

func (f *fakeClient) DeleteSecurityGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteSecurityGroup:" + name)
	delete(f.securityGroups, name)
	return nil
}

func (f *fakeClient) EnsurePlacementGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EnsurePlacementGroup:" + name)
	f.placementGroups[name] = true
	return nil
}

func (f *fakeClient) DeletePlacementGroup(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeletePlacementGroup:" + name)
	delete(f.placementGroups, name)
	return nil
}
