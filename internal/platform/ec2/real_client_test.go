package ec2

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAPI records calls and returns canned outputs.
type mockAPI struct {
	API

	runInput       *awsec2.RunInstancesInput
	describeInput  *awsec2.DescribeInstancesInput
	describeOutput *awsec2.DescribeInstancesOutput
	terminated     []string
	deletedTags    *awsec2.DeleteTagsInput
}

func (m *mockAPI) RunInstances(_ context.Context, params *awsec2.RunInstancesInput, _ ...func(*awsec2.Options)) (*awsec2.RunInstancesOutput, error) {
	m.runInput = params
	return &awsec2.RunInstancesOutput{
		Instances: []ec2types.Instance{{InstanceId: aws.String("i-0abc")}},
	}, nil
}

func (m *mockAPI) DescribeInstances(_ context.Context, params *awsec2.DescribeInstancesInput, _ ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error) {
	m.describeInput = params
	if m.describeOutput != nil {
		return m.describeOutput, nil
	}
	return &awsec2.DescribeInstancesOutput{}, nil
}

func (m *mockAPI) TerminateInstances(_ context.Context, params *awsec2.TerminateInstancesInput, _ ...func(*awsec2.Options)) (*awsec2.TerminateInstancesOutput, error) {
	m.terminated = append(m.terminated, params.InstanceIds...)
	return &awsec2.TerminateInstancesOutput{}, nil
}

func (m *mockAPI) DeleteTags(_ context.Context, params *awsec2.DeleteTagsInput, _ ...func(*awsec2.Options)) (*awsec2.DeleteTagsOutput, error) {
	m.deletedTags = params
	return &awsec2.DeleteTagsOutput{}, nil
}

func newTestClient(t *testing.T, api API) *RealClient {
	t.Helper()
	client, err := NewRealClient(context.Background(), "us-east-1", WithAPI(api))
	require.NoError(t, err)
	return client
}

func TestRunInstanceTagsAndShape(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{}
	client := newTestClient(t, mock)

	id, err := client.RunInstance(context.Background(), NodeSpec{
		Name:             "demo-2node-cluster1-node1",
		ClusterName:      "demo-2node-cluster1",
		SubnetID:         "subnet-123",
		AMIID:            "ami-123",
		InstanceType:     "m5.large",
		KeyName:          "mykey",
		SecurityGroupIDs: []string{"sg-1"},
		EBSType:          "gp3",
		EBSSizeGB:        100,
		EBSOptimized:     true,
		Tags:             map[string]string{"team": "research"},
	})
	require.NoError(t, err)
	assert.Equal(t, "i-0abc", id)

	require.NotNil(t, mock.runInput)
	require.Len(t, mock.runInput.TagSpecifications, 1)

	tags := map[string]string{}
	for _, tag := range mock.runInput.TagSpecifications[0].Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	assert.Equal(t, "demo-2node-cluster1-node1", tags["Name"])
	assert.Equal(t, "demo-2node-cluster1", tags[ClusterTagKey])
	assert.Equal(t, "research", tags["team"])

	assert.EqualValues(t, 1, aws.ToInt32(mock.runInput.MinCount))
	assert.EqualValues(t, 1, aws.ToInt32(mock.runInput.MaxCount))
	assert.Nil(t, mock.runInput.Placement)
	assert.Nil(t, mock.runInput.IamInstanceProfile)
}

func TestRunInstancePlacementAndIOPS(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{}
	client := newTestClient(t, mock)

	_, err := client.RunInstance(context.Background(), NodeSpec{
		Name:           "n",
		ClusterName:    "c",
		SubnetID:       "subnet-123",
		AMIID:          "ami-123",
		InstanceType:   "p3.16xlarge",
		KeyName:        "mykey",
		PlacementGroup: "c-placement-group",
		IAMRole:        "worker-role",
		EBSType:        "io1",
		EBSSizeGB:      500,
		EBSIOPS:        8000,
	})
	require.NoError(t, err)

	require.NotNil(t, mock.runInput.Placement)
	assert.Equal(t, "c-placement-group", aws.ToString(mock.runInput.Placement.GroupName))
	assert.Equal(t, "worker-role", aws.ToString(mock.runInput.IamInstanceProfile.Name))

	ebs := mock.runInput.BlockDeviceMappings[0].Ebs
	assert.EqualValues(t, 8000, aws.ToInt32(ebs.Iops))
}

func TestInstanceByNameAbsent(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{}
	client := newTestClient(t, mock)

	inst, err := client.InstanceByName(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, inst)

	// Default lookup restricts to the states that mean "node exists".
	var stateFilter []string
	for _, f := range mock.describeInput.Filters {
		if aws.ToString(f.Name) == "instance-state-name" {
			stateFilter = f.Values
		}
	}
	assert.ElementsMatch(t, []string{"pending", "running"}, stateFilter)
}

func TestInstanceByNameFound(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{
		describeOutput: &awsec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{
				{
					Instances: []ec2types.Instance{
						{
							InstanceId:       aws.String("i-0abc"),
							State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
							PublicIpAddress:  aws.String("54.1.2.3"),
							PrivateIpAddress: aws.String("10.0.0.4"),
							SecurityGroups: []ec2types.GroupIdentifier{
								{GroupId: aws.String("sg-1")},
								{GroupId: aws.String("sg-2")},
							},
						},
					},
				},
			},
		},
	}
	client := newTestClient(t, mock)

	inst, err := client.InstanceByName(context.Background(), "node1")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "i-0abc", inst.ID)
	assert.Equal(t, StateRunning, inst.State)
	assert.Equal(t, "54.1.2.3", inst.PublicIP)
	assert.Equal(t, "10.0.0.4", inst.PrivateIP)
	assert.Equal(t, []string{"sg-1", "sg-2"}, inst.SecurityGroupIDs)
}

func TestTerminateInstanceRemovesNameTag(t *testing.T) {
	t.Parallel()

	mock := &mockAPI{}
	client := newTestClient(t, mock)

	require.NoError(t, client.TerminateInstance(context.Background(), "i-0abc"))
	assert.Equal(t, []string{"i-0abc"}, mock.terminated)

	require.NotNil(t, mock.deletedTags)
	assert.Equal(t, []string{"i-0abc"}, mock.deletedTags.Resources)
	require.Len(t, mock.deletedTags.Tags, 1)
	assert.Equal(t, "Name", aws.ToString(mock.deletedTags.Tags[0].Key))
}
