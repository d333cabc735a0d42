package compute

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// EC2Client implements Client against a single EC2 instance.
type EC2Client struct {
	api        *ec2.Client
	instanceID string
}

// NewEC2Client resolves AWS credentials from the default chain (env,
// shared config, instance role) for the given region.
func NewEC2Client(ctx context.Context, region, instanceID string) (*EC2Client, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("ec2: empty instance id")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("ec2: load aws config: %w", err)
	}
	return &EC2Client{api: ec2.NewFromConfig(cfg), instanceID: instanceID}, nil
}

func (c *EC2Client) Describe(ctx context.Context) (InstanceStatus, error) {
	out, err := c.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{c.instanceID},
	})
	if err != nil {
		return StatusUnknown, fmt.Errorf("ec2: describe %s: %w", c.instanceID, err)
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return StatusUnknown, fmt.Errorf("ec2: instance %s not found", c.instanceID)
	}
	st := out.Reservations[0].Instances[0].State
	if st == nil {
		return StatusUnknown, fmt.Errorf("ec2: instance %s has no state", c.instanceID)
	}
	switch st.Name {
	case ec2types.InstanceStateNameStopped:
		return StatusStopped, nil
	case ec2types.InstanceStateNamePending:
		return StatusPending, nil
	case ec2types.InstanceStateNameRunning:
		return StatusRunning, nil
	case ec2types.InstanceStateNameStopping, ec2types.InstanceStateNameShuttingDown:
		return StatusStopping, nil
	default:
		return StatusUnknown, nil
	}
}

func (c *EC2Client) Start(ctx context.Context) error {
	_, err := c.api.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{c.instanceID},
	})
	if err != nil {
		return fmt.Errorf("ec2: start %s: %w", c.instanceID, err)
	}
	return nil
}

func (c *EC2Client) Stop(ctx context.Context) error {
	_, err := c.api.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{c.instanceID},
	})
	if err != nil {
		return fmt.Errorf("ec2: stop %s: %w", c.instanceID, err)
	}
	return nil
}
