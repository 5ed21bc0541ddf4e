package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// API is the subset of the AWS SDK EC2 client the wrapper calls.
// Narrowing the SDK surface keeps the real client mockable.
type API interface {
	RunInstances(ctx context.Context, params *awsec2.RunInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.RunInstancesOutput, error)
	DescribeInstances(ctx context.Context, params *awsec2.DescribeInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *awsec2.TerminateInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.TerminateInstancesOutput, error)
	DeleteTags(ctx context.Context, params *awsec2.DeleteTagsInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteTagsOutput, error)
	ModifyInstanceAttribute(ctx context.Context, params *awsec2.ModifyInstanceAttributeInput, optFns ...func(*awsec2.Options)) (*awsec2.ModifyInstanceAttributeOutput, error)
	CreateSecurityGroup(ctx context.Context, params *awsec2.CreateSecurityGroupInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateSecurityGroupOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *awsec2.DescribeSecurityGroupsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeSecurityGroupsOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, params *awsec2.AuthorizeSecurityGroupIngressInput, optFns ...func(*awsec2.Options)) (*awsec2.AuthorizeSecurityGroupIngressOutput, error)
	DeleteSecurityGroup(ctx context.Context, params *awsec2.DeleteSecurityGroupInput, optFns ...func(*awsec2.Options)) (*awsec2.DeleteSecurityGroupOutput, error)
	CreatePlacementGroup(ctx context.Context, params *awsec2.CreatePlacementGroupInput, optFns ...func(*awsec2.Options)) (*awsec2.CreatePlacementGroupOutput, error)
	DescribePlacementGroups(ctx context.Context, params *awsec2.DescribePlacementGroupsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribePlacementGroupsOutput, error)
	DeletePlacementGroup(ctx context.Context, params *awsec2.DeletePlacementGroupInput, optFns ...func(*awsec2.Options)) (*awsec2.DeletePlacementGroupOutput, error)
}

// RealClient implements Client against the AWS EC2 API.
type RealClient struct {
	api API
}

// ClientOption configures a RealClient.
type ClientOption func(*options)

type options struct {
	api             API
	accessKeyID     string
	secretAccessKey string
}

// WithAPI substitutes the underlying SDK client, used by tests.
func WithAPI(api API) ClientOption {
	return func(o *options) { o.api = api }
}

// WithStaticCredentials bypasses the default credential chain. The region
// is still taken from NewRealClient; no ambient process-global state is
// consulted beyond the standard chain when this option is absent.
func WithStaticCredentials(accessKeyID, secretAccessKey string) ClientOption {
	return func(o *options) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
	}
}

// NewRealClient builds an EC2-backed client for one region.
func NewRealClient(ctx context.Context, region string, opts ...ClientOption) (*RealClient, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.api != nil {
		return &RealClient{api: o.api}, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if o.accessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.accessKeyID, o.secretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &RealClient{api: awsec2.NewFromConfig(cfg)}, nil
}

// RunInstance launches a single instance per the spec and returns its id.
func (c *RealClient) RunInstance(ctx context.Context, spec NodeSpec) (string, error) {
	ebs := &ec2types.EbsBlockDevice{
		VolumeSize: aws.Int32(spec.EBSSizeGB),
		VolumeType: ec2types.VolumeType(spec.EBSType),
	}
	if spec.EBSIOPS > 0 {
		ebs.Iops = aws.Int32(spec.EBSIOPS)
	}

	tags := []ec2types.Tag{
		{Key: aws.String("Name"), Value: aws.String(spec.Name)},
		{Key: aws.String(ClusterTagKey), Value: aws.String(spec.ClusterName)},
	}
	for key, value := range spec.Tags {
		tags = append(tags, ec2types.Tag{Key: aws.String(key), Value: aws.String(value)})
	}

	input := &awsec2.RunInstancesInput{
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		ImageId:      aws.String(spec.AMIID),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		KeyName:      aws.String(spec.KeyName),
		SubnetId:     aws.String(spec.SubnetID),
		EbsOptimized: aws.Bool(spec.EBSOptimized),
		Monitoring:   &ec2types.RunInstancesMonitoringEnabled{Enabled: aws.Bool(false)},
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{
			{DeviceName: aws.String("/dev/xvda"), Ebs: ebs},
		},
		SecurityGroupIds: spec.SecurityGroupIDs,
		TagSpecifications: []ec2types.TagSpecification{
			{ResourceType: ec2types.ResourceTypeInstance, Tags: tags},
		},
	}
	if spec.PlacementGroup != "" {
		input.Placement = &ec2types.Placement{GroupName: aws.String(spec.PlacementGroup)}
	}
	if spec.IAMRole != "" {
		input.IamInstanceProfile = &ec2types.IamInstanceProfileSpecification{
			Name: aws.String(spec.IAMRole),
		}
	}

	out, err := c.api.RunInstances(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to launch instance %s: %w", spec.Name, err)
	}
	if len(out.Instances) == 0 {
		return "", fmt.Errorf("launch of %s returned no instances", spec.Name)
	}
	return aws.ToString(out.Instances[0].InstanceId), nil
}

// InstanceByName looks up the instance carrying the Name tag. Returns nil
// when nothing matches, which the engine reads as "absent".
func (c *RealClient) InstanceByName(ctx context.Context, name string, states ...InstanceState) (*Instance, error) {
	if len(states) == 0 {
		states = []InstanceState{StatePending, StateRunning}
	}
	stateNames := make([]string, len(states))
	for i, s := range states {
		stateNames[i] = string(s)
	}

	out, err := c.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{name}},
			{Name: aws.String("instance-state-name"), Values: stateNames},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", name, err)
	}

	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			return fromSDKInstance(inst), nil
		}
	}
	return nil, nil
}

func fromSDKInstance(inst ec2types.Instance) *Instance {
	result := &Instance{
		ID:        aws.ToString(inst.InstanceId),
		State:     StateAbsent,
		PublicIP:  aws.ToString(inst.PublicIpAddress),
		PrivateIP: aws.ToString(inst.PrivateIpAddress),
	}
	if inst.State != nil {
		result.State = InstanceState(inst.State.Name)
	}
	for _, sg := range inst.SecurityGroups {
		result.SecurityGroupIDs = append(result.SecurityGroupIDs, aws.ToString(sg.GroupId))
	}
	return result
}

// TerminateInstance starts termination and removes the Name tag, so a
// replacement node with the same name can launch while this one winds down.
func (c *RealClient) TerminateInstance(ctx context.Context, id string) error {
	_, err := c.api.TerminateInstances(ctx, &awsec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return fmt.Errorf("failed to terminate instance %s: %w", id, err)
	}

	_, err = c.api.DeleteTags(ctx, &awsec2.DeleteTagsInput{
		Resources: []string{id},
		Tags:      []ec2types.Tag{{Key: aws.String("Name")}},
	})
	if err != nil {
		return fmt.Errorf("failed to remove Name tag from %s: %w", id, err)
	}
	return nil
}

// DetachSecurityGroup drops one group from the instance's group set.
func (c *RealClient) DetachSecurityGroup(ctx context.Context, instanceID, groupID string) error {
	inst, err := c.InstanceByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if inst == nil {
		return fmt.Errorf("instance %s not found", instanceID)
	}

	remaining := make([]string, 0, len(inst.SecurityGroupIDs))
	for _, sg := range inst.SecurityGroupIDs {
		if sg != groupID {
			remaining = append(remaining, sg)
		}
	}

	_, err = c.api.ModifyInstanceAttribute(ctx, &awsec2.ModifyInstanceAttributeInput{
		InstanceId: aws.String(instanceID),
		Groups:     remaining,
	})
	if err != nil {
		return fmt.Errorf("failed to detach security group %s from %s: %w", groupID, instanceID, err)
	}
	return nil
}

// InstanceByID looks up an instance by id. Returns nil when the provider
// no longer tracks it.
func (c *RealClient) InstanceByID(ctx context.Context, id string) (*Instance, error) {
	out, err := c.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}
	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			return fromSDKInstance(inst), nil
		}
	}
	return nil, nil
}

// EnsureSecurityGroup creates the intra-cluster group with a
// self-referencing allow-all rule, or returns the existing group's id.
func (c *RealClient) EnsureSecurityGroup(ctx context.Context, name, vpcID string) (string, error) {
	id, err := c.SecurityGroupID(ctx, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	created, err := c.api.CreateSecurityGroup(ctx, &awsec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(name),
		VpcId:       aws.String(vpcID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", name, err)
	}
	id = aws.ToString(created.GroupId)

	_, err = c.api.AuthorizeSecurityGroupIngress(ctx, &awsec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(id),
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol:       aws.String("-1"),
				UserIdGroupPairs: []ec2types.UserIdGroupPair{{GroupId: aws.String(id)}},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to authorize intra-cluster ingress on %s: %w", name, err)
	}
	return id, nil
}

// SecurityGroupID resolves a group name to an id, empty if absent.
func (c *RealClient) SecurityGroupID(ctx context.Context, name string) (string, error) {
	out, err := c.api.DescribeSecurityGroups(ctx, &awsec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe security group %s: %w", name, err)
	}
	if len(out.SecurityGroups) == 0 {
		return "", nil
	}
	return aws.ToString(out.SecurityGroups[0].GroupId), nil
}

// DeleteSecurityGroup removes the named group if it exists.
func (c *RealClient) DeleteSecurityGroup(ctx context.Context, name string) error {
	id, err := c.SecurityGroupID(ctx, name)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}

	_, err = c.api.DeleteSecurityGroup(ctx, &awsec2.DeleteSecurityGroupInput{
		GroupId: aws.String(id),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete security group %s: %w", name, err)
	}
	return nil
}

// EnsurePlacementGroup creates a cluster-strategy placement group if absent.
func (c *RealClient) EnsurePlacementGroup(ctx context.Context, name string) error {
	exists, err := c.placementGroupExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = c.api.CreatePlacementGroup(ctx, &awsec2.CreatePlacementGroupInput{
		GroupName: aws.String(name),
		Strategy:  ec2types.PlacementStrategyCluster,
	})
	if err != nil {
		return fmt.Errorf("failed to create placement group %s: %w", name, err)
	}
	return nil
}

// DeletePlacementGroup removes the placement group if it exists.
func (c *RealClient) DeletePlacementGroup(ctx context.Context, name string) error {
	exists, err := c.placementGroupExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	_, err = c.api.DeletePlacementGroup(ctx, &awsec2.DeletePlacementGroupInput{
		GroupName: aws.String(name),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete placement group %s: %w", name, err)
	}
	return nil
}

func (c *RealClient) placementGroupExists(ctx context.Context, name string) (bool, error) {
	out, err := c.api.DescribePlacementGroups(ctx, &awsec2.DescribePlacementGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to describe placement group %s: %w", name, err)
	}
	return len(out.PlacementGroups) > 0, nil
}
