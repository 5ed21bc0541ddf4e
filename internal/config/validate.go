package config

import "fmt"

// ValidEBSTypes are the root volume types the launch path supports.
var ValidEBSTypes = map[string]bool{
	"gp2": true,
	"gp3": true,
	"io1": true,
	"io2": true,
}

// Validate checks required fields and cross-field constraints. It
// assumes defaults have already been applied.
func (c *ClusterConfig) Validate() error {
	for _, f := range Schema {
		if !f.Required {
			continue
		}
		if err := c.checkRequired(f.Name); err != nil {
			return err
		}
	}

	if c.NodeCount < 1 {
		return fmt.Errorf("node_count must be at least 1, got %d", c.NodeCount)
	}
	if c.ClusterID < 0 {
		return fmt.Errorf("cluster_id cannot be negative, got %d", c.ClusterID)
	}
	if !ValidEBSTypes[c.EBSType] {
		return fmt.Errorf("invalid ebs_type %q: must be one of gp2, gp3, io1, io2", c.EBSType)
	}
	if c.EBSType == "io1" && c.EBSIOPS <= 0 {
		return fmt.Errorf("ebs_iops is required when ebs_type is io1")
	}
	if c.EBSSizeGB < 1 {
		return fmt.Errorf("ebs_size_gb must be positive, got %d", c.EBSSizeGB)
	}
	if c.ClusterCreateTimeoutSecs < 0 {
		return fmt.Errorf("cluster_create_timeout_secs cannot be negative, got %d", c.ClusterCreateTimeoutSecs)
	}
	if c.SlotsPerNode < 1 {
		return fmt.Errorf("slots_per_node must be positive, got %d", c.SlotsPerNode)
	}
	if _, reserved := c.AdditionalTags["Name"]; reserved {
		return fmt.Errorf("additional_tags cannot set the reserved Name tag")
	}
	return nil
}

func (c *ClusterConfig) checkRequired(name string) error {
	missing := func() error { return fmt.Errorf("%s is required", name) }

	switch name {
	case "cluster_template_name":
		if c.ClusterTemplateName == "" {
			return missing()
		}
	case "node_count":
		if c.NodeCount == 0 {
			return missing()
		}
	case "cluster_id":
		// Zero is a legal id; nothing to check.
	case "region":
		if c.Region == "" {
			return missing()
		}
	case "vpc_id":
		if c.VPCID == "" {
			return missing()
		}
	case "subnet_id":
		if c.SubnetID == "" {
			return missing()
		}
	case "ami_id":
		if c.AMIID == "" {
			return missing()
		}
	case "key_name":
		if c.KeyName == "" {
			return missing()
		}
	}
	return nil
}
