package identity

import (
	"net"
	"os"
	"strings"

	"github.com/cuemby/quorum-rescue/pkg/corosync"
	"github.com/cuemby/quorum-rescue/pkg/errdefs"
	"github.com/cuemby/quorum-rescue/pkg/log"
	"github.com/cuemby/quorum-rescue/pkg/types"
	"github.com/go-playground/validator/v10"
	sockaddr "github.com/hashicorp/go-sockaddr"
	"github.com/rs/zerolog"
)

// LoopbackAddress is the ring address of last resort
const LoopbackAddress = "127.0.0.1"

const discoveryHint = "check the node name with 'hostname' and its addresses with 'ip -4 addr'"

// Discoverer builds a NodeIdentity from host introspection and the
// previous configuration. The lookup functions are replaceable for tests.
type Discoverer struct {
	DefaultClusterName string

	Hostname  func() (string, error)
	PrivateIP func() (string, error)
	PublicIP  func() (string, error)

	logger zerolog.Logger
}

// NewDiscoverer creates a discoverer backed by the host network stack
func NewDiscoverer(defaultClusterName string) *Discoverer {
	return &Discoverer{
		DefaultClusterName: defaultClusterName,
		Hostname:           os.Hostname,
		PrivateIP:          sockaddr.GetPrivateIP,
		PublicIP:           sockaddr.GetPublicIP,
		logger:             log.WithComponent("identity"),
	}
}

var validate = validator.New()

// Discover returns the identity this node should carry after repair.
// Values found in existingText (cluster name, node id, node name, ring0
// address) win over discovered ones so repair converges on the identity the
// node had before the incident. A node entry is only reused when its name
// matches this host or it is the only node listed; otherwise another host's
// id and address could be taken over. existingText may be empty.
func (d *Discoverer) Discover(existingText string) (types.NodeIdentity, error) {
	var prior corosync.Prior
	if existingText != "" {
		p, err := corosync.Scrape(existingText)
		if err != nil {
			d.logger.Warn().Err(err).Msg("existing configuration unreadable, discovering identity from scratch")
		} else {
			prior = p
		}
	}

	hostname, err := d.shortHostname()
	if err != nil {
		return types.NodeIdentity{}, err
	}

	id := types.NodeIdentity{
		ClusterName: d.DefaultClusterName,
		NodeName:    hostname,
		NodeID:      1,
	}
	if prior.ClusterName != "" {
		id.ClusterName = prior.ClusterName
	}

	if node, ok := prior.Node(hostname); ok {
		if node.Name != "" {
			id.NodeName = node.Name
		}
		if node.NodeID >= 1 {
			id.NodeID = node.NodeID
		}
		if IsIPv4(node.RingAddr) {
			id.RingAddress = node.RingAddr
		}
	}

	if id.RingAddress == "" {
		id.RingAddress = d.ringAddress()
	}

	if err := validate.Struct(id); err != nil {
		return types.NodeIdentity{}, errdefs.Wrap(errdefs.KindInvalidGeneratedConfig, err,
			"invalid node identity "+id.String(), discoveryHint)
	}

	d.logger.Info().
		Str("cluster_name", id.ClusterName).
		Str("node_name", id.NodeName).
		Int("node_id", id.NodeID).
		Str("ring_address", id.RingAddress).
		Msg("node identity resolved")
	return id, nil
}

func (d *Discoverer) shortHostname() (string, error) {
	name, err := d.Hostname()
	if err != nil {
		return "", errdefs.Wrap(errdefs.KindInvalidGeneratedConfig, err, "failed to read hostname", discoveryHint)
	}
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return "", errdefs.New(errdefs.KindInvalidGeneratedConfig, "hostname is empty", discoveryHint)
	}
	return name, nil
}

// ringAddress prefers a private address, then a public one, then loopback
func (d *Discoverer) ringAddress() string {
	for _, lookup := range []struct {
		name string
		fn   func() (string, error)
	}{
		{"private", d.PrivateIP},
		{"public", d.PublicIP},
	} {
		if lookup.fn == nil {
			continue
		}
		out, err := lookup.fn()
		if err != nil {
			d.logger.Debug().Err(err).Str("lookup", lookup.name).Msg("address lookup failed")
			continue
		}
		for _, candidate := range strings.Fields(out) {
			if IsIPv4(candidate) {
				return candidate
			}
		}
	}

	d.logger.Warn().Msg("no routable IPv4 address found, falling back to loopback")
	return LoopbackAddress
}

// IsIPv4 reports whether s is a dotted-quad IPv4 address
func IsIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && !strings.Contains(s, ":")
}
