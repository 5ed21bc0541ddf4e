package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ec2cluster/internal/cluster"
	"ec2cluster/internal/config"
	"ec2cluster/internal/platform/ec2"
	"ec2cluster/internal/shell"
)

// stubClient is a minimal in-memory ec2.Client for handler wiring
// tests. Instances advance one lifecycle step per observation so the
// engine's wait loops return on their first poll.
type stubClient struct {
	mu        sync.Mutex
	nextID    int
	instances map[string]*stubInstance
	sgs       map[string]string
	pgs       map[string]bool
}

type stubInstance struct {
	id, name string
	state    ec2.InstanceState
}

func newStubClient() *stubClient {
	return &stubClient{
		instances: map[string]*stubInstance{},
		sgs:       map[string]string{},
		pgs:       map[string]bool{},
	}
}

func (s *stubClient) RunInstance(_ context.Context, spec ec2.NodeSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	inst := &stubInstance{id: fmt.Sprintf("i-%04d", s.nextID), name: spec.Name, state: ec2.StatePending}
	s.instances[inst.id] = inst
	return inst.id, nil
}

func (s *stubClient) observe(inst *stubInstance) *ec2.Instance {
	switch inst.state {
	case ec2.StatePending:
		inst.state = ec2.StateRunning
	case ec2.StateShuttingDown:
		inst.state = ec2.StateTerminated
	}
	n := 0
	fmt.Sscanf(inst.id, "i-%d", &n)
	return &ec2.Instance{
		ID:        inst.id,
		State:     inst.state,
		PublicIP:  fmt.Sprintf("203.0.113.%d", n),
		PrivateIP: fmt.Sprintf("10.0.0.%d", n),
	}
}

func (s *stubClient) InstanceByName(_ context.Context, name string, states ...ec2.InstanceState) (*ec2.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(states) == 0 {
		states = []ec2.InstanceState{ec2.StatePending, ec2.StateRunning}
	}
	for _, inst := range s.instances {
		if inst.name != name {
			continue
		}
		obs := s.observe(inst)
		for _, st := range states {
			if obs.State == st {
				return obs, nil
			}
		}
	}
	return nil, nil
}

func (s *stubClient) InstanceByID(_ context.Context, id string) (*ec2.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, nil
	}
	return s.observe(inst), nil
}

func (s *stubClient) TerminateInstance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instances[id]; ok {
		inst.state = ec2.StateShuttingDown
		inst.name = ""
	}
	return nil
}

func (s *stubClient) DetachSecurityGroup(context.Context, string, string) error { return nil }

func (s *stubClient) EnsureSecurityGroup(_ context.Context, name, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.sgs[name]; ok {
		return id, nil
	}
	id := fmt.Sprintf("sg-%04d", len(s.sgs)+1)
	s.sgs[name] = id
	return id, nil
}

func (s *stubClient) SecurityGroupID(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sgs[name], nil
}

func (s *stubClient) DeleteSecurityGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sgs, name)
	return nil
}

func (s *stubClient) EnsurePlacementGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pgs[name] = true
	return nil
}

func (s *stubClient) DeletePlacementGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pgs, name)
	return nil
}

// stubRunner records remote commands and answers like a healthy node.
type stubRunner struct {
	nodes       int
	waited      bool
	masterCalls []string
	allCalls    []string
}

func (r *stubRunner) NodeCount() int { return r.nodes }

func (r *stubRunner) WaitForSSHReady(context.Context) error {
	r.waited = true
	return nil
}

func (r *stubRunner) RunOnMaster(_ context.Context, cmd string) (shell.Result, error) {
	r.masterCalls = append(r.masterCalls, cmd)
	res := shell.Result{NodeIndex: 1, Addr: "203.0.113.1"}
	if strings.Contains(cmd, "id_rsa.pub") {
		res.Stdout = "ssh-rsa AAAAstub master\n"
	}
	return res, nil
}

func (r *stubRunner) RunOnAll(_ context.Context, cmd string) ([]shell.Result, error) {
	r.allCalls = append(r.allCalls, cmd)
	results := make([]shell.Result, r.nodes)
	for i := range results {
		results[i] = shell.Result{NodeIndex: i + 1, Addr: fmt.Sprintf("203.0.113.%d", i+1)}
	}
	return results, nil
}

// swapFactories installs test doubles and restores the real factories
// when the test ends.
func swapFactories(t *testing.T, client ec2.Client, runner remoteRunner) {
	t.Helper()
	origClient := newEC2Client
	origRunner := newRemoteRunner
	t.Cleanup(func() {
		newEC2Client = origClient
		newRemoteRunner = origRunner
	})

	newEC2Client = func(context.Context, string) (ec2.Client, error) {
		return client, nil
	}
	newRemoteRunner = func(*config.ClusterConfig, *cluster.IPSet, string) (remoteRunner, error) {
		return runner, nil
	}
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	body := `cluster_template_name: dl
node_count: 3
cluster_id: 7
region: us-east-1
vpc_id: vpc-0123456789abcdef0
subnet_id: subnet-0123456789abcdef0
ami_id: ami-0123456789abcdef0
instance_type: p3.8xlarge
key_name: training-key
slots_per_node: 4
`
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
