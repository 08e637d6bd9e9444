// Package ec2 implements the inventory provider over the AWS EC2 API.
package ec2

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/flotilla-io/flotilla/internal/logging"
	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// API is the EC2 client surface the provider needs. *awsec2.Client
// implements it; tests substitute a fake.
type API interface {
	DescribeInstances(ctx context.Context, params *awsec2.DescribeInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, params *awsec2.StartInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *awsec2.StopInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.StopInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *awsec2.TerminateInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.TerminateInstancesOutput, error)
	DescribeKeyPairs(ctx context.Context, params *awsec2.DescribeKeyPairsInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeKeyPairsOutput, error)
	CreateKeyPair(ctx context.Context, params *awsec2.CreateKeyPairInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateKeyPairOutput, error)
	CreateTags(ctx context.Context, params *awsec2.CreateTagsInput, optFns ...func(*awsec2.Options)) (*awsec2.CreateTagsOutput, error)
}

// Provider implements ports.InventoryProvider for one EC2 region.
type Provider struct {
	api    API
	region string
	logger *slog.Logger

	// Defaults applied to hydrated nodes; the resolver may override both
	// per node specification.
	username string
	keyFile  string
}

// Option configures the Provider.
type Option func(*Provider)

// WithLogger configures a logger for provider events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithDefaults sets the username and key file assigned to hydrated nodes
// unless a node specification overrides them.
func WithDefaults(username, keyFile string) Option {
	return func(p *Provider) {
		p.username = username
		p.keyFile = keyFile
	}
}

// New connects to a region using the shared AWS credential chain (profile
// may be empty for the default profile).
func New(ctx context.Context, region, profile string, opts ...Option) (*Provider, error) {
	if region == "" {
		return nil, fleet.ErrNoRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return NewFromAPI(awsec2.NewFromConfig(cfg), region, opts...), nil
}

// NewFromAPI creates a provider over an existing EC2 client.
func NewFromAPI(api API, region string, opts ...Option) *Provider {
	p := &Provider{
		api:    api,
		region: region,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Region returns the region this provider is bound to.
func (p *Provider) Region() string {
	return p.region
}

// Refresh hydrates fleet nodes from all reservations in the region.
func (p *Provider) Refresh(ctx context.Context) ([]*fleet.Node, error) {
	paginator := awsec2.NewDescribeInstancesPaginator(p.api, &awsec2.DescribeInstancesInput{})

	var nodes []*fleet.Node
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				nodes = append(nodes, p.hydrate(instance))
			}
		}
	}
	p.logger.Debug("hydrated inventory", "region", p.region, "count", len(nodes))
	return nodes, nil
}

// hydrate snapshots one cloud instance into a Node. The display name is left
// empty: names are assigned by the resolver, not taken from the cloud.
func (p *Provider) hydrate(instance types.Instance) *fleet.Node {
	node := &fleet.Node{
		ID:           aws.ToString(instance.InstanceId),
		InstanceType: string(instance.InstanceType),
		Image:        aws.ToString(instance.ImageId),
		KeyName:      aws.ToString(instance.KeyName),
		PublicIP:     aws.ToString(instance.PublicIpAddress),
		PrivateIP:    aws.ToString(instance.PrivateIpAddress),
		PublicDNS:    aws.ToString(instance.PublicDnsName),
		VPC:          aws.ToString(instance.VpcId),
		Username:     p.username,
		KeyFile:      p.keyFile,
		Tags:         make(map[string]string, len(instance.Tags)),
	}
	if instance.State != nil {
		node.State = string(instance.State.Name)
	}
	if instance.LaunchTime != nil {
		node.LaunchTime = *instance.LaunchTime
	}
	for _, tag := range instance.Tags {
		node.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return node
}

// CreateAbsentNode synthesizes a placeholder for a template node
// specification with no matching instance.
func (p *Provider) CreateAbsentNode(spec fleet.NodeSpec) *fleet.Node {
	node := &fleet.Node{
		Name:     spec.Name,
		Username: spec.Username,
		KeyFile:  spec.KeyFile,
	}
	if node.Username == "" {
		node.Username = p.username
	}
	if node.KeyFile == "" {
		node.KeyFile = p.keyFile
	}
	return node
}

// Start starts the node's backing instance. Running or pending instances are
// left alone.
func (p *Provider) Start(ctx context.Context, node *fleet.Node) error {
	if node.Absent() {
		return fleet.ErrNodeAbsent
	}
	switch node.State {
	case "running", "pending":
		p.logger.Info("nothing to do", "node", node.DisplayName(), "state", node.State)
		return nil
	}

	p.logger.Info("starting node", "node", node.DisplayName(), "id", node.ID)
	_, err := p.api.StartInstances(ctx, &awsec2.StartInstancesInput{
		InstanceIds: []string{node.ID},
	})
	if err != nil {
		return fmt.Errorf("starting %s: %w", node.ID, err)
	}
	return nil
}

// Stop stops the node's backing instance. Stopped instances are left alone.
func (p *Provider) Stop(ctx context.Context, node *fleet.Node) error {
	if node.Absent() {
		return fleet.ErrNodeAbsent
	}
	if node.State == "stopped" {
		return nil
	}

	p.logger.Info("stopping node", "node", node.DisplayName(), "id", node.ID)
	_, err := p.api.StopInstances(ctx, &awsec2.StopInstancesInput{
		InstanceIds: []string{node.ID},
	})
	if err != nil {
		return fmt.Errorf("stopping %s: %w", node.ID, err)
	}
	return nil
}

// Terminate terminates the node's backing instance, first renaming its name
// tag so a later template reload does not rematch the dying instance.
func (p *Provider) Terminate(ctx context.Context, node *fleet.Node) error {
	if node.Absent() {
		return fleet.ErrNodeAbsent
	}

	if name, ok := node.Tags["name"]; ok && name != "" {
		_, err := p.api.CreateTags(ctx, &awsec2.CreateTagsInput{
			Resources: []string{node.ID},
			Tags: []types.Tag{
				{Key: aws.String("name"), Value: aws.String(name + "_terminated")},
			},
		})
		if err != nil {
			p.logger.Warn("renaming name tag before terminate", "node", node.DisplayName(), "err", err)
		}
	}

	p.logger.Info("terminating node", "node", node.DisplayName(), "id", node.ID)
	_, err := p.api.TerminateInstances(ctx, &awsec2.TerminateInstancesInput{
		InstanceIds: []string{node.ID},
	})
	if err != nil {
		return fmt.Errorf("terminating %s: %w", node.ID, err)
	}
	return nil
}

// CreateKeyPair creates a named key pair and saves the private key to
// `<dir>/<name>.pem` with owner-only permissions. An existing local key is
// reused; a key existing only in the cloud is an error, since its private
// half cannot be recovered.
func (p *Provider) CreateKeyPair(ctx context.Context, name, dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", err
	}

	keyPath := filepath.Join(dir, name+".pem")
	if _, err := os.Stat(keyPath); err == nil {
		p.logger.Info("found key pair locally", "key", name, "path", keyPath)
		return name, keyPath, nil
	}

	existing, err := p.api.DescribeKeyPairs(ctx, &awsec2.DescribeKeyPairsInput{})
	if err != nil {
		return "", "", fmt.Errorf("listing key pairs: %w", err)
	}
	for _, kp := range existing.KeyPairs {
		if aws.ToString(kp.KeyName) == name {
			return "", "", fmt.Errorf("key %s already exists on this account but not locally", name)
		}
	}

	created, err := p.api.CreateKeyPair(ctx, &awsec2.CreateKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil {
		return "", "", fmt.Errorf("creating key pair: %w", err)
	}

	if err := os.WriteFile(keyPath, []byte(aws.ToString(created.KeyMaterial)), 0o600); err != nil {
		return "", "", fmt.Errorf("saving key material: %w", err)
	}
	return name, keyPath, nil
}
