// Package config defines the cluster configuration file format, its
// statically declared field schema, loading, overrides, and validation.
//
// A config file names one cluster identity (template name, node count,
// cluster id) plus everything needed to launch its nodes. Any field can
// be overridden from the command line; overrides that touch the
// identity triple simply address a different cluster.
package config

// ClusterConfig is the parsed configuration for one cluster identity.
type ClusterConfig struct {
	ClusterTemplateName string `mapstructure:"cluster_template_name" yaml:"cluster_template_name"`
	NodeCount           int    `mapstructure:"node_count" yaml:"node_count"`
	ClusterID           int    `mapstructure:"cluster_id" yaml:"cluster_id"`

	Region   string `mapstructure:"region" yaml:"region"`
	VPCID    string `mapstructure:"vpc_id" yaml:"vpc_id"`
	SubnetID string `mapstructure:"subnet_id" yaml:"subnet_id"`
	AMIID    string `mapstructure:"ami_id" yaml:"ami_id"`

	InstanceType string `mapstructure:"instance_type" yaml:"instance_type"`
	IAMRole      string `mapstructure:"iam_role" yaml:"iam_role"`
	KeyName      string `mapstructure:"key_name" yaml:"key_name"`

	EBSType      string `mapstructure:"ebs_type" yaml:"ebs_type"`
	EBSSizeGB    int    `mapstructure:"ebs_size_gb" yaml:"ebs_size_gb"`
	EBSIOPS      int    `mapstructure:"ebs_iops" yaml:"ebs_iops"`
	EBSOptimized bool   `mapstructure:"ebs_optimized" yaml:"ebs_optimized"`

	SecurityGroupIDs  []string          `mapstructure:"security_group_ids" yaml:"security_group_ids"`
	UsePlacementGroup bool              `mapstructure:"use_placement_group" yaml:"use_placement_group"`
	AdditionalTags    map[string]string `mapstructure:"additional_tags" yaml:"additional_tags"`

	Username                 string `mapstructure:"username" yaml:"username"`
	ClusterCreateTimeoutSecs int    `mapstructure:"cluster_create_timeout_secs" yaml:"cluster_create_timeout_secs"`
	SSHToPrivateIP           bool   `mapstructure:"ssh_to_private_ip" yaml:"ssh_to_private_ip"`
	UseBastion               bool   `mapstructure:"use_bastion" yaml:"use_bastion"`
	SlotsPerNode             int    `mapstructure:"slots_per_node" yaml:"slots_per_node"`
}
