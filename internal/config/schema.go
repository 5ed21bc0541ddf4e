package config

// FieldType is the declared type of a schema field, used for CLI flag
// generation and describe-config output.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeInt        FieldType = "int"
	TypeBool       FieldType = "bool"
	TypeStringList FieldType = "list of string"
	TypeStringMap  FieldType = "map of string to string"
)

// Field is one schema entry. The schema is the single source of truth
// for field names, types, defaults, and required-ness; validation, flag
// generation, and documentation output all read from it.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Default     string
	Required    bool
}

// Schema lists every ClusterConfig field in file order.
var Schema = []Field{
	{Name: "cluster_template_name", Type: TypeString, Required: true,
		Description: "Base name shared by all clusters launched from this config."},
	{Name: "node_count", Type: TypeInt, Required: true,
		Description: "Number of nodes, including the master. Part of the cluster identity."},
	{Name: "cluster_id", Type: TypeInt, Required: true,
		Description: "Numeric id distinguishing concurrent clusters from the same template."},
	{Name: "region", Type: TypeString, Required: true,
		Description: "AWS region, e.g. us-east-1."},
	{Name: "vpc_id", Type: TypeString, Required: true,
		Description: "VPC the nodes launch into."},
	{Name: "subnet_id", Type: TypeString, Required: true,
		Description: "Subnet for all nodes. One subnet keeps the cluster in one AZ."},
	{Name: "ami_id", Type: TypeString, Required: true,
		Description: "AMI for every node."},
	{Name: "instance_type", Type: TypeString, Default: "m5.large",
		Description: "EC2 instance type for every node."},
	{Name: "iam_role", Type: TypeString,
		Description: "Instance profile name attached to each node."},
	{Name: "key_name", Type: TypeString, Required: true,
		Description: "EC2 key pair used for SSH access."},
	{Name: "ebs_type", Type: TypeString, Default: "gp3",
		Description: "Root volume type: gp2, gp3, io1 or io2."},
	{Name: "ebs_size_gb", Type: TypeInt, Default: "100",
		Description: "Root volume size in GiB."},
	{Name: "ebs_iops", Type: TypeInt,
		Description: "Provisioned IOPS. Required for io1 volumes."},
	{Name: "ebs_optimized", Type: TypeBool, Default: "true",
		Description: "Launch EBS-optimized instances. Some older types do not support it."},
	{Name: "security_group_ids", Type: TypeStringList,
		Description: "Extra security groups attached to every node."},
	{Name: "use_placement_group", Type: TypeBool, Default: "false",
		Description: "Launch all nodes into a cluster placement group."},
	{Name: "additional_tags", Type: TypeStringMap,
		Description: "Extra tags for every node. The Name tag is reserved."},
	{Name: "username", Type: TypeString, Default: "ubuntu",
		Description: "SSH login user on the AMI."},
	{Name: "cluster_create_timeout_secs", Type: TypeInt, Default: "0",
		Description: "Capacity retry window in seconds, measured from the last acquired node. 0 retries forever."},
	{Name: "ssh_to_private_ip", Type: TypeBool, Default: "false",
		Description: "Connect to nodes via private IPs. Use when running inside the VPC."},
	{Name: "use_bastion", Type: TypeBool, Default: "false",
		Description: "Tunnel worker SSH sessions through the master. Use when only the master is reachable."},
	{Name: "slots_per_node", Type: TypeInt, Default: "8",
		Description: "Process slots per hostfile line, normally the GPU count."},
}

// FieldByName looks up a schema entry. The second return is false for
// unknown names.
func FieldByName(name string) (Field, bool) {
	for _, f := range Schema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
